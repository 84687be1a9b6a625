package contract_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type fixture struct {
	store      *memstore.Store
	formation  *contract.Formation
	jobs       *job.Machine
	dispatcher *notification.Dispatcher

	client     valueobject.AuthenticatedUser
	freelancer valueobject.AuthenticatedUser
	job        *entity.Job
	proposal   *entity.Proposal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	dispatcher := notification.NewDispatcher(store, nil)
	jobs := job.NewMachine(nil)

	f := &fixture{
		store:      store,
		formation:  contract.NewFormation(jobs, dispatcher, nil),
		jobs:       jobs,
		dispatcher: dispatcher,
		client:     valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleClient},
		freelancer: valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleFreelancer},
	}

	budget, err := valueobject.NewBudget(5000_00, "ETB")
	require.NoError(t, err)
	f.job, err = entity.NewJob(f.client.ID, "Лендинг", "Одностраничный сайт", "web", budget)
	require.NoError(t, err)
	require.NoError(t, f.job.Publish())

	f.proposal, err = entity.NewProposal(f.job.ID, f.freelancer.ID, "Сделаю за неделю", 4800_00)
	require.NoError(t, err)
	require.NoError(t, f.proposal.AcceptByClient())

	require.NoError(t, store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Jobs().Create(ctx, f.job); err != nil {
			return err
		}
		return tx.Proposals().Create(ctx, f.proposal)
	}))
	return f
}

func (f *fixture) form(t *testing.T) *entity.Contract {
	t.Helper()
	var c *entity.Contract
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = f.formation.FormFromAcceptedProposal(ctx, tx, f.proposal)
		return err
	}))
	return c
}

func (f *fixture) jobStatus(t *testing.T) valueobject.JobStatus {
	t.Helper()
	var status valueobject.JobStatus
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		j, err := tx.Jobs().FindByID(ctx, f.job.ID)
		if err != nil {
			return err
		}
		status = j.Status
		return nil
	}))
	return status
}

func TestFormation_CreatesContractAndMarksJob(t *testing.T) {
	f := newFixture(t)
	c := f.form(t)

	assert.Equal(t, valueobject.ContractStatusActive, c.Status)
	assert.Equal(t, valueobject.Money(4800_00), c.AgreedAmount)
	assert.Equal(t, "ETB", c.Currency)
	assert.Equal(t, valueobject.JobStatusContracted, f.jobStatus(t))

	for _, user := range []valueobject.AuthenticatedUser{f.client, f.freelancer} {
		n, err := notification.NewCountUnreadUseCase(f.store).Execute(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	err := f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.formation.FormFromAcceptedProposal(ctx, tx, f.proposal)
		return err
	})
	assert.True(t, apperror.IsConflict(err))
}

func TestFormation_RequiresAcceptedProposal(t *testing.T) {
	f := newFixture(t)
	pending, err := entity.NewProposal(f.job.ID, uuid.New(), "Ещё вариант", 100_00)
	require.NoError(t, err)

	err = f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.formation.FormFromAcceptedProposal(ctx, tx, pending)
		return err
	})
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, valueobject.JobStatusOpen, f.jobStatus(t))
}

func TestCancelContract(t *testing.T) {
	f := newFixture(t)
	c := f.form(t)
	cancel := contract.NewCancelContractUseCase(f.store, f.formation, f.jobs, f.dispatcher)

	_, err := cancel.Execute(context.Background(), valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleClient}, c.ID)
	assert.True(t, apperror.IsForbidden(err))

	cancelled, err := cancel.Execute(context.Background(), f.freelancer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, valueobject.JobStatusCancelled, f.jobStatus(t))

	_, err = cancel.Execute(context.Background(), f.client, c.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestCancelContract_NotAfterWorkStarted(t *testing.T) {
	f := newFixture(t)
	c := f.form(t)
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.jobs.Start(ctx, tx, f.job.ID)
		return err
	}))

	_, err := contract.NewCancelContractUseCase(f.store, f.formation, f.jobs, f.dispatcher).Execute(context.Background(), f.client, c.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, valueobject.JobStatusInProgress, f.jobStatus(t))
}

func TestGetAndListContracts(t *testing.T) {
	f := newFixture(t)
	c := f.form(t)

	got, err := contract.NewGetContractUseCase(f.store).Execute(context.Background(), f.freelancer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = contract.NewGetContractUseCase(f.store).Execute(context.Background(), valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleFreelancer}, c.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = contract.NewGetContractUseCase(f.store).Execute(context.Background(), f.client, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	items, total, err := contract.NewListMyContractsUseCase(f.store).Execute(context.Background(), f.client, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

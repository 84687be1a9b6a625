package job

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
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type stubCloser struct {
	freelancerID uuid.UUID
	calls        int
}

func (s *stubCloser) CompleteForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Contract, error) {
	s.calls++
	return &entity.Contract{JobID: jobID, FreelancerID: s.freelancerID}, nil
}

type stubReleaser struct {
	err   error
	calls int
}

func (s *stubReleaser) ReleaseForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.EscrowPayment, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &entity.EscrowPayment{JobID: jobID}, nil
}

var (
	client     = valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleClient}
	otherUser  = valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleClient}
	freelancer = valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleFreelancer}
)

func createDraft(t *testing.T, store *memstore.Store) *entity.Job {
	t.Helper()
	job, err := NewCreateJobUseCase(store, "ETB").Execute(context.Background(), client, JobInput{
		Title:        "Лендинг",
		Description:  "Нужен лендинг для кофейни",
		Category:     "web",
		BudgetAmount: 5000_00,
	})
	require.NoError(t, err)
	return job
}

func forceStatus(t *testing.T, store *memstore.Store, jobID uuid.UUID, status valueobject.JobStatus) {
	t.Helper()
	err := store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		job, err := tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		from := job.Status
		job.Status = status
		return tx.Jobs().Update(ctx, job, from)
	})
	require.NoError(t, err)
}

func TestCreateJob_OnlyClients(t *testing.T) {
	store := memstore.New()
	_, err := NewCreateJobUseCase(store, "ETB").Execute(context.Background(), freelancer, JobInput{Title: "x", Description: "y"})
	assert.True(t, apperror.IsForbidden(err))

	job := createDraft(t, store)
	assert.Equal(t, valueobject.JobStatusDraft, job.Status)
	assert.Equal(t, "ETB", job.Budget.Currency)
}

func TestPublishJob(t *testing.T) {
	store := memstore.New()
	publish := NewPublishJobUseCase(store, NewMachine(nil))
	job := createDraft(t, store)

	_, err := publish.Execute(context.Background(), otherUser, job.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = publish.Execute(context.Background(), client, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	published, err := publish.Execute(context.Background(), client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusOpen, published.Status)

	_, err = publish.Execute(context.Background(), client, job.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestGetJob_DraftHiddenFromOthers(t *testing.T) {
	store := memstore.New()
	get := NewGetJobUseCase(store)
	job := createDraft(t, store)

	_, err := get.Execute(context.Background(), freelancer, job.ID)
	assert.True(t, apperror.IsNotFound(err))

	found, err := get.Execute(context.Background(), client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, found.ID)
}

func TestDeleteJob(t *testing.T) {
	store := memstore.New()
	del := NewDeleteJobUseCase(store)
	job := createDraft(t, store)

	assert.True(t, apperror.IsForbidden(del.Execute(context.Background(), otherUser, job.ID)))
	require.NoError(t, del.Execute(context.Background(), client, job.ID))

	_, err := NewGetJobUseCase(store).Execute(context.Background(), client, job.ID)
	assert.True(t, apperror.IsNotFound(err))

	contracted := createDraft(t, store)
	forceStatus(t, store, contracted.ID, valueobject.JobStatusContracted)
	assert.True(t, apperror.IsConflict(del.Execute(context.Background(), client, contracted.ID)))
}

func TestUpdateJob_RejectedAfterContract(t *testing.T) {
	store := memstore.New()
	update := NewUpdateJobUseCase(store, "ETB")
	job := createDraft(t, store)

	updated, err := update.Execute(context.Background(), client, job.ID, JobInput{Title: "Сайт", Description: "Новый", BudgetAmount: 100})
	require.NoError(t, err)
	assert.Equal(t, "Сайт", updated.Title)

	forceStatus(t, store, job.ID, valueobject.JobStatusContracted)
	_, err = update.Execute(context.Background(), client, job.ID, JobInput{Title: "Сайт", Description: "Новый"})
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestListJobs(t *testing.T) {
	store := memstore.New()
	list := NewListJobsUseCase(store)
	createDraft(t, store)
	open := createDraft(t, store)
	forceStatus(t, store, open.ID, valueobject.JobStatusOpen)

	jobs, total, err := list.ListOpen(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, open.ID, jobs[0].ID)

	_, total, err = list.ListMine(context.Background(), client, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCompleteJob(t *testing.T) {
	store := memstore.New()
	closer := &stubCloser{freelancerID: freelancer.ID}
	releaser := &stubReleaser{}
	complete := NewCompleteJobUseCase(store, NewMachine(nil), closer, releaser, notification.NewDispatcher(store, nil))
	job := createDraft(t, store)

	_, err := complete.Execute(context.Background(), client, job.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	forceStatus(t, store, job.ID, valueobject.JobStatusInProgress)

	_, err = complete.Execute(context.Background(), freelancer, job.ID)
	assert.True(t, apperror.IsForbidden(err))

	done, err := complete.Execute(context.Background(), client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, done.Status)
	assert.Equal(t, 1, closer.calls)
	assert.Equal(t, 1, releaser.calls)

	count, err := notification.NewCountUnreadUseCase(store).Execute(context.Background(), freelancer)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompleteJob_RollsBackWhenReleaseBlocked(t *testing.T) {
	store := memstore.New()
	releaser := &stubReleaser{err: apperror.InvalidTransition("по платежу открыт спор")}
	complete := NewCompleteJobUseCase(store, NewMachine(nil), &stubCloser{freelancerID: freelancer.ID}, releaser, notification.NewDispatcher(store, nil))
	job := createDraft(t, store)
	forceStatus(t, store, job.ID, valueobject.JobStatusInProgress)

	_, err := complete.Execute(context.Background(), client, job.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	found, err := NewGetJobUseCase(store).Execute(context.Background(), client, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusInProgress, found.Status)
}

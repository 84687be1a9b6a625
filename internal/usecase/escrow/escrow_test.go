package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitiateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Verify(ctx context.Context, txRef string) (*Verification, error) {
	args := m.Called(ctx, txRef)
	v, _ := args.Get(0).(*Verification)
	return v, args.Error(1)
}

type fixture struct {
	store     *memstore.Store
	gateway   *mockGateway
	machine   *Machine
	initiate  *InitiateEscrowUseCase
	reconcile *ReconcileUseCase
	release   *ReleaseEscrowUseCase
	refund    *RefundEscrowUseCase
	sweep     *SweepPendingUseCase

	client     valueobject.AuthenticatedUser
	freelancer valueobject.AuthenticatedUser
	admin      valueobject.AuthenticatedUser
	job        *entity.Job
	contract   *entity.Contract
}

const agreed = valueobject.Money(4800_00)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	gw := &mockGateway{}
	dispatcher := notification.NewDispatcher(store, nil)
	machine := NewMachine(ledger.NewPoster(nil), dispatcher, nil)
	cfg := Config{FeePercent: 10, PendingTTL: time.Hour}
	reconcile := NewReconcileUseCase(store, gw, machine, job.NewMachine(nil), dispatcher, nil)

	f := &fixture{
		store:      store,
		gateway:    gw,
		machine:    machine,
		initiate:   NewInitiateEscrowUseCase(store, gw, cfg),
		reconcile:  reconcile,
		release:    NewReleaseEscrowUseCase(store, machine),
		refund:     NewRefundEscrowUseCase(store, machine),
		sweep:      NewSweepPendingUseCase(store, gw, reconcile, machine, cfg),
		client:     valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleClient},
		freelancer: valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleFreelancer},
		admin:      valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleAdmin},
	}

	err := store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		budget, _ := valueobject.NewBudget(5000_00, "ETB")
		j, err := entity.NewJob(f.client.ID, "Мобильное приложение", "MVP на Flutter", "mobile", budget)
		if err != nil {
			return err
		}
		j.Status = valueobject.JobStatusContracted
		if err := tx.Jobs().Create(ctx, j); err != nil {
			return err
		}
		p, err := entity.NewProposal(j.ID, f.freelancer.ID, "Сделаю за месяц", agreed)
		if err != nil {
			return err
		}
		if err := p.AcceptByClient(); err != nil {
			return err
		}
		if err := tx.Proposals().Create(ctx, p); err != nil {
			return err
		}
		c, err := entity.NewContract(j, p)
		if err != nil {
			return err
		}
		f.job, f.contract = j, c
		return tx.Contracts().Create(ctx, c)
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) paid(t *testing.T) *entity.EscrowPayment {
	t.Helper()
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay", nil).Once()
	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)
	res, err := f.reconcile.Execute(context.Background(), payment.TxRef, valueobject.GatewayStatusSuccess, agreed)
	require.NoError(t, err)
	require.Equal(t, OutcomePaid, res.Outcome)
	return res.Payment
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

func (f *fixture) balance(t *testing.T, userID uuid.UUID) (valueobject.Money, int) {
	t.Helper()
	var (
		balance valueobject.Money
		count   int
	)
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		w, err := tx.Wallets().FindByUserID(ctx, userID)
		if apperror.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		balance = w.Balance
		_, count, err = tx.Wallets().ListTransactions(ctx, w.ID, 100, 0)
		return err
	}))
	return balance, count
}

func (f *fixture) setJobStatus(t *testing.T, status valueobject.JobStatus) {
	t.Helper()
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		j, err := tx.Jobs().FindByID(ctx, f.job.ID)
		if err != nil {
			return err
		}
		from := j.Status
		j.Status = status
		return tx.Jobs().Update(ctx, j, from)
	}))
}

func TestInitiate_Preconditions(t *testing.T) {
	f := newFixture(t)

	_, err := f.initiate.Execute(context.Background(), f.freelancer, f.contract.ID, agreed)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.initiate.Execute(context.Background(), f.client, uuid.New(), agreed)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed-1)
	assert.True(t, apperror.IsValidation(err))

	f.gateway.AssertNotCalled(t, "InitiateCheckout", mock.Anything, mock.Anything)
}

func TestInitiate_GatewayFailureKeepsPendingAndRetriesSameRef(t *testing.T) {
	f := newFixture(t)

	var firstRef string
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { firstRef = args.Get(1).(CheckoutRequest).TxRef }).
		Return("", errors.New("timeout")).Once()
	_, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	assert.True(t, apperror.IsGateway(err))
	require.NotEmpty(t, firstRef)

	f.gateway.On("InitiateCheckout", mock.Anything, mock.MatchedBy(func(req CheckoutRequest) bool {
		return req.TxRef == firstRef && req.Amount == agreed && req.Currency == "ETB"
	})).Return("https://checkout.example/pay", nil).Once()

	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusPending, payment.Status)
	assert.Equal(t, firstRef, payment.TxRef)
	require.NotNil(t, payment.CheckoutURL)
	assert.Equal(t, valueobject.Money(480_00), payment.PlatformFee)

	again, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, again.ID)
	assert.Equal(t, "https://checkout.example/pay", *again.CheckoutURL)

	f.gateway.AssertNumberOfCalls(t, "InitiateCheckout", 2)
}

func TestReconcile_DoubleWebhookIsIdempotent(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)

	assert.Equal(t, valueobject.EscrowStatusPaid, payment.Status)
	assert.NotNil(t, payment.PaidAt)
	assert.Equal(t, valueobject.JobStatusInProgress, f.jobStatus(t))

	res, err := f.reconcile.Execute(context.Background(), payment.TxRef, valueobject.GatewayStatusSuccess, agreed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Equal(t, valueobject.JobStatusInProgress, f.jobStatus(t))

	_, freelancerTxs := f.balance(t, f.freelancer.ID)
	_, platformTxs := f.balance(t, valueobject.PlatformUserID)
	assert.Zero(t, freelancerTxs)
	assert.Zero(t, platformTxs)

	_, err = f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestReconcile_AmountMismatchKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay", nil).Once()
	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)

	_, err = f.reconcile.Execute(context.Background(), payment.TxRef, valueobject.GatewayStatusSuccess, agreed-100)
	assert.True(t, apperror.IsGateway(err))
	assert.Equal(t, valueobject.JobStatusContracted, f.jobStatus(t))

	res, err := f.reconcile.Execute(context.Background(), payment.TxRef, valueobject.GatewayStatusFailed, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, valueobject.JobStatusContracted, f.jobStatus(t))

	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay2", nil).Once()
	fresh, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)
	assert.NotEqual(t, payment.TxRef, fresh.TxRef)
}

func TestReconcile_VerifiesWithGateway(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay", nil).Once()
	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)

	f.gateway.On("Verify", mock.Anything, payment.TxRef).
		Return(&Verification{TxRef: payment.TxRef, Status: valueobject.GatewayStatusSuccess, PaidAmount: agreed}, nil).Once()

	res, err := f.reconcile.VerifyAndExecute(context.Background(), payment.TxRef)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
}

func TestRelease_AfterCompletionOnlyOnce(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)

	_, err := f.release.Execute(context.Background(), f.freelancer, payment.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.release.Execute(context.Background(), f.client, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	f.setJobStatus(t, valueobject.JobStatusCompleted)

	released, err := f.release.Execute(context.Background(), f.client, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusReleased, released.Status)

	freelancerBalance, _ := f.balance(t, f.freelancer.ID)
	platformBalance, _ := f.balance(t, valueobject.PlatformUserID)
	assert.Equal(t, valueobject.Money(4320_00), freelancerBalance)
	assert.Equal(t, valueobject.Money(480_00), platformBalance)

	_, err = f.release.Execute(context.Background(), f.admin, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = f.refund.Execute(context.Background(), f.admin, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	freelancerBalance, _ = f.balance(t, f.freelancer.ID)
	assert.Equal(t, valueobject.Money(4320_00), freelancerBalance)
}

func TestRelease_BlockedByOpenDispute(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)

	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		d, err := entity.NewDispute(payment, f.client.ID, valueobject.DisputeTypeQuality, "Не работает оплата")
		if err != nil {
			return err
		}
		return tx.Disputes().Create(ctx, d)
	}))
	f.setJobStatus(t, valueobject.JobStatusCompleted)

	_, err := f.release.Execute(context.Background(), f.admin, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	balance, count := f.balance(t, f.freelancer.ID)
	assert.Zero(t, balance)
	assert.Zero(t, count)
}

func TestRefund_RequiresGround(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)

	_, err := f.refund.Execute(context.Background(), f.client, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestReconcile_LatePaymentOnCancelledContractIsRefunded(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay", nil).Once()
	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)

	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.Contracts().FindByIDForUpdate(ctx, f.contract.ID)
		if err != nil {
			return err
		}
		if err := c.Cancel(); err != nil {
			return err
		}
		return tx.Contracts().Update(ctx, c, valueobject.ContractStatusActive)
	}))
	f.setJobStatus(t, valueobject.JobStatusCancelled)

	res, err := f.reconcile.Execute(context.Background(), payment.TxRef, valueobject.GatewayStatusSuccess, agreed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefunded, res.Outcome)
	assert.Equal(t, valueobject.EscrowStatusRefunded, res.Payment.Status)

	clientBalance, _ := f.balance(t, f.client.ID)
	assert.Equal(t, agreed, clientBalance)
	assert.Equal(t, valueobject.JobStatusCancelled, f.jobStatus(t))
}

func TestSweep_ExpiresStaleAndSkipsUnreachable(t *testing.T) {
	f := newFixture(t)
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).Return("https://checkout.example/pay", nil).Once()
	payment, err := f.initiate.Execute(context.Background(), f.client, f.contract.ID, agreed)
	require.NoError(t, err)

	f.gateway.On("Verify", mock.Anything, payment.TxRef).Return(nil, errors.New("connection refused")).Once()
	f.sweep.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	res, err := f.sweep.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Expired)

	f.gateway.On("Verify", mock.Anything, payment.TxRef).
		Return(&Verification{TxRef: payment.TxRef, Status: valueobject.GatewayStatusPending}, nil).Once()

	res, err = f.sweep.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)

	got, err := NewGetEscrowUseCase(f.store).Execute(context.Background(), f.client, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusFailed, got.Status)
	assert.Equal(t, valueobject.JobStatusContracted, f.jobStatus(t))
}

func TestGetEscrow_PartiesOnly(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)
	stranger := valueobject.AuthenticatedUser{ID: uuid.New(), Role: valueobject.RoleFreelancer}

	_, err := NewGetEscrowUseCase(f.store).Execute(context.Background(), stranger, payment.ID)
	assert.True(t, apperror.IsForbidden(err))

	got, err := NewGetEscrowUseCase(f.store).ForContract(context.Background(), f.freelancer, f.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
}

func TestRelease_AdminCannotBypassCompletion(t *testing.T) {
	f := newFixture(t)
	payment := f.paid(t)
	require.Equal(t, valueobject.JobStatusInProgress, f.jobStatus(t))

	_, err := f.release.Execute(context.Background(), f.admin, payment.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	balance, count := f.balance(t, f.freelancer.ID)
	assert.Zero(t, balance)
	assert.Zero(t, count)

	dispatcher := notification.NewDispatcher(f.store, nil)
	jobs := job.NewMachine(nil)
	complete := job.NewCompleteJobUseCase(f.store, jobs, contract.NewFormation(jobs, dispatcher, nil), f.machine, dispatcher)

	completed, err := complete.Execute(context.Background(), f.client, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCompleted, completed.Status)

	got, err := NewGetEscrowUseCase(f.store).Execute(context.Background(), f.admin, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusReleased, got.Status)

	balance, _ = f.balance(t, f.freelancer.ID)
	assert.Equal(t, valueobject.Money(4320_00), balance)
}

func TestSweep_WalksEveryPageOfPending(t *testing.T) {
	f := newFixture(t)
	sweep := NewSweepPendingUseCase(f.store, f.gateway, f.reconcile, f.machine, Config{FeePercent: 10, PendingTTL: time.Hour, SweepBatch: 2})
	sweep.now = func() time.Time { return time.Now().Add(time.Minute) }

	// Два платежа с одинаковым created_at: порядок внутри страницы решает id.
	createdAt := time.Now().UTC().Add(-10 * time.Minute)
	refs := map[string]bool{}
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		for i := 0; i < 5; i++ {
			c := *f.contract
			c.ID = uuid.New()
			p, err := entity.NewEscrowPayment(&c, agreed, 10, entity.NewTxRef())
			if err != nil {
				return err
			}
			if i < 2 {
				p.CreatedAt = createdAt
			}
			refs[p.TxRef] = false
			if err := tx.Escrows().Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	f.gateway.On("Verify", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { refs[args.String(1)] = true }).
		Return(&Verification{Status: valueobject.GatewayStatusPending}, nil)

	res, err := sweep.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Checked)
	assert.Zero(t, res.Expired)
	f.gateway.AssertNumberOfCalls(t, "Verify", 5)
	for ref, seen := range refs {
		assert.True(t, seen, ref)
	}
}

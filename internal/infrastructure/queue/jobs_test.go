package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
)

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) VerifyAndExecute(ctx context.Context, txRef string) (*escrow.ReconcileResult, error) {
	args := m.Called(ctx, txRef)
	res, _ := args.Get(0).(*escrow.ReconcileResult)
	return res, args.Error(1)
}

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Execute(ctx context.Context) (*escrow.SweepResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*escrow.SweepResult)
	return res, args.Error(1)
}

func reconcileJob(txRef string) *river.Job[ReconcileArgs] {
	return &river.Job[ReconcileArgs]{Args: ReconcileArgs{TxRef: txRef}}
}

func TestReconcileWorker_Success(t *testing.T) {
	r := new(mockReconciler)
	r.On("VerifyAndExecute", mock.Anything, "escrow-1").
		Return(&escrow.ReconcileResult{Outcome: escrow.OutcomePaid}, nil).Once()

	err := NewReconcileWorker(r).Work(context.Background(), reconcileJob("escrow-1"))

	require.NoError(t, err)
	r.AssertExpectations(t)
}

func TestReconcileWorker_GatewayErrorIsRetried(t *testing.T) {
	gwErr := apperror.New(apperror.ErrCodeGateway, "шлюз недоступен")
	r := new(mockReconciler)
	r.On("VerifyAndExecute", mock.Anything, "escrow-1").Return(nil, gwErr).Once()

	err := NewReconcileWorker(r).Work(context.Background(), reconcileJob("escrow-1"))

	require.Error(t, err)
	assert.Same(t, gwErr, err)
}

func TestReconcileWorker_UnknownPaymentIsCancelled(t *testing.T) {
	r := new(mockReconciler)
	r.On("VerifyAndExecute", mock.Anything, "missing").Return(nil, apperror.ErrEscrowNotFound).Once()

	err := NewReconcileWorker(r).Work(context.Background(), reconcileJob("missing"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrEscrowNotFound))
	assert.NotSame(t, apperror.ErrEscrowNotFound, err)
}

func TestReconcileWorker_AmountMismatchIsCancelled(t *testing.T) {
	mismatch := apperror.New(apperror.ErrCodeGateway, "сумма не совпала")
	r := new(mockReconciler)
	r.On("VerifyAndExecute", mock.Anything, "escrow-1").
		Return(&escrow.ReconcileResult{Outcome: escrow.OutcomeAmountMismatch}, mismatch).Once()

	err := NewReconcileWorker(r).Work(context.Background(), reconcileJob("escrow-1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, mismatch)
	assert.NotSame(t, mismatch, err)
}

func TestSweepWorker(t *testing.T) {
	s := new(mockSweeper)
	s.On("Execute", mock.Anything).Return(&escrow.SweepResult{Checked: 3, Settled: 1, Expired: 1, Skipped: 1}, nil).Once()

	err := NewSweepWorker(s).Work(context.Background(), &river.Job[SweepArgs]{})

	require.NoError(t, err)
	s.AssertExpectations(t)
}

func TestSweepWorker_PropagatesError(t *testing.T) {
	s := new(mockSweeper)
	s.On("Execute", mock.Anything).Return(nil, errors.New("db down")).Once()

	err := NewSweepWorker(s).Work(context.Background(), &river.Job[SweepArgs]{})

	assert.EqualError(t, err, "db down")
}

func TestArgsKinds(t *testing.T) {
	assert.Equal(t, "escrow_reconcile", ReconcileArgs{}.Kind())
	assert.Equal(t, "escrow_sweep", SweepArgs{}.Kind())
	assert.True(t, ReconcileArgs{}.InsertOpts().UniqueOpts.ByArgs)
}

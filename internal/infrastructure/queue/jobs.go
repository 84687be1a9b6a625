package queue

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
)

// ReconcileArgs: отложенная сверка платежа со шлюзом. Ставится, когда
// webhook пришёл, а шлюз в момент проверки не ответил.
type ReconcileArgs struct {
	TxRef string `json:"tx_ref"`
}

func (ReconcileArgs) Kind() string { return "escrow_reconcile" }

func (ReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: 12,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
		},
	}
}

type Reconciler interface {
	VerifyAndExecute(ctx context.Context, txRef string) (*escrow.ReconcileResult, error)
}

type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	reconciler Reconciler
}

func NewReconcileWorker(r Reconciler) *ReconcileWorker {
	return &ReconcileWorker{reconciler: r}
}

func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	result, err := w.reconciler.VerifyAndExecute(ctx, job.Args.TxRef)
	if err != nil {
		// Платёж не найден или сумма не сошлась: повтор ничего не изменит.
		if apperror.IsNotFound(err) || (result != nil && result.Outcome == escrow.OutcomeAmountMismatch) {
			return river.JobCancel(err)
		}
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"tx_ref":  job.Args.TxRef,
		"outcome": string(result.Outcome),
	}).Info("queued reconcile finished")
	return nil
}

// SweepArgs: периодическая сверка зависших PENDING платежей.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "escrow_sweep" }

type Sweeper interface {
	Execute(ctx context.Context) (*escrow.SweepResult, error)
}

type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	sweeper Sweeper
}

func NewSweepWorker(s Sweeper) *SweepWorker {
	return &SweepWorker{sweeper: s}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	_, err := w.sweeper.Execute(ctx)
	return err
}

// Таймаут одного прохода меньше интервала, чтобы проходы не накладывались.
func (w *SweepWorker) Timeout(*river.Job[SweepArgs]) time.Duration {
	return 2 * time.Minute
}

package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
)

const defaultSweepBatch = 100

type SweepResult struct {
	Checked int
	Settled int
	Expired int
	Skipped int
}

type SweepPendingUseCase struct {
	uow       repository.UnitOfWork
	gateway   Gateway
	reconcile *ReconcileUseCase
	machine   *Machine
	cfg       Config
	now       func() time.Time
}

func NewSweepPendingUseCase(uow repository.UnitOfWork, gateway Gateway, reconcile *ReconcileUseCase, machine *Machine, cfg Config) *SweepPendingUseCase {
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	return &SweepPendingUseCase{
		uow:       uow,
		gateway:   gateway,
		reconcile: reconcile,
		machine:   machine,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Execute сверяет ожидающие платежи со шлюзом, страницами по SweepBatch, пока
// не пройдёт все. Платёж, который шлюз считает неоплаченным дольше PendingTTL,
// закрывается как FAILED. Если шлюз недоступен, платёж остаётся PENDING до
// следующего прохода.
func (uc *SweepPendingUseCase) Execute(ctx context.Context) (*SweepResult, error) {
	now := uc.now().UTC()
	result := &SweepResult{}

	var cursor *repository.PendingCursor
	for ctx.Err() == nil {
		pending, err := uc.nextPage(ctx, now, cursor)
		if err != nil {
			return nil, err
		}
		for _, ref := range pending {
			if ctx.Err() != nil {
				break
			}
			uc.check(ctx, now, ref, result)
		}
		if len(pending) < uc.cfg.SweepBatch {
			break
		}
		last := pending[len(pending)-1]
		cursor = &repository.PendingCursor{CreatedAt: last.createdAt, ID: last.id}
	}

	logger.Log.WithFields(logrus.Fields{
		"checked": result.Checked,
		"settled": result.Settled,
		"expired": result.Expired,
		"skipped": result.Skipped,
	}).Info("escrow sweep finished")
	return result, nil
}

func (uc *SweepPendingUseCase) nextPage(ctx context.Context, now time.Time, cursor *repository.PendingCursor) ([]*pendingRef, error) {
	var pending []*pendingRef
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		payments, err := tx.Escrows().ListPendingCreatedBefore(ctx, now, cursor, uc.cfg.SweepBatch)
		if err != nil {
			return err
		}
		for _, p := range payments {
			pending = append(pending, &pendingRef{id: p.ID, txRef: p.TxRef, createdAt: p.CreatedAt})
		}
		return nil
	})
	return pending, err
}

func (uc *SweepPendingUseCase) check(ctx context.Context, now time.Time, ref *pendingRef, result *SweepResult) {
	result.Checked++

	v, err := uc.gateway.Verify(ctx, ref.txRef)
	if err != nil {
		result.Skipped++
		logger.Log.WithFields(logrus.Fields{
			"tx_ref": ref.txRef,
			"error":  err.Error(),
		}).Warn("sweep: gateway verify failed")
		return
	}

	if v.Status == valueobject.GatewayStatusPending {
		if uc.cfg.PendingTTL <= 0 || now.Sub(ref.createdAt) < uc.cfg.PendingTTL {
			return
		}
		expired, err := uc.expire(ctx, ref.txRef)
		if err != nil {
			result.Skipped++
			return
		}
		if expired {
			result.Expired++
		}
		return
	}

	if _, err := uc.reconcile.Execute(ctx, ref.txRef, v.Status, v.PaidAmount); err != nil {
		result.Skipped++
		return
	}
	result.Settled++
}

func (uc *SweepPendingUseCase) expire(ctx context.Context, txRef string) (bool, error) {
	expired := false
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		payment, err := tx.Escrows().FindByTxRefForUpdate(ctx, txRef)
		if err != nil {
			return err
		}
		if !payment.IsPending() {
			return nil
		}
		expired = true
		return uc.machine.expire(ctx, tx, payment, "платёж не был оплачен вовремя и закрыт")
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"tx_ref": txRef,
			"error":  err.Error(),
		}).Warn("sweep: expire failed")
	}
	return expired, err
}

type pendingRef struct {
	id        uuid.UUID
	txRef     string
	createdAt time.Time
}

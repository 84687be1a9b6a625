package escrow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type Outcome string

const (
	OutcomePaid           Outcome = "paid"
	OutcomeFailed         Outcome = "failed"
	OutcomeRefunded       Outcome = "refunded"
	OutcomeStillPending   Outcome = "pending"
	OutcomeNoop           Outcome = "noop"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)

type ReconcileResult struct {
	Payment *entity.EscrowPayment
	Outcome Outcome
}

type ReconcileUseCase struct {
	uow        repository.UnitOfWork
	gateway    Gateway
	machine    *Machine
	jobs       *job.Machine
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewReconcileUseCase(
	uow repository.UnitOfWork,
	gateway Gateway,
	machine *Machine,
	jobs *job.Machine,
	dispatcher *notification.Dispatcher,
	m *metrics.Registry,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		uow:        uow,
		gateway:    gateway,
		machine:    machine,
		jobs:       jobs,
		dispatcher: dispatcher,
		metrics:    m,
	}
}

// Execute применяет подтверждённый статус шлюза к платежу. Вызов идемпотентен:
// платёж не в статусе PENDING не меняется, поэтому повторный webhook ничего не делает.
func (uc *ReconcileUseCase) Execute(ctx context.Context, txRef string, status valueobject.GatewayStatus, paidAmount valueobject.Money) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		payment, err := tx.Escrows().FindByTxRefForUpdate(ctx, txRef)
		if err != nil {
			return err
		}
		result.Payment = payment

		if !payment.IsPending() {
			result.Outcome = OutcomeNoop
			return nil
		}

		switch status {
		case valueobject.GatewayStatusSuccess:
			if paidAmount != payment.Amount {
				result.Outcome = OutcomeAmountMismatch
				return apperror.New(apperror.ErrCodeGateway,
					fmt.Sprintf("шлюз подтвердил сумму %s, ожидалось %s", paidAmount.Major(), payment.Amount.Major()))
			}
			return uc.markPaid(ctx, tx, payment, result)

		case valueobject.GatewayStatusFailed:
			if err := uc.machine.save(ctx, tx, payment, func(p *entity.EscrowPayment) error {
				return p.MarkFailed("платёжный шлюз отклонил транзакцию")
			}); err != nil {
				return err
			}
			result.Outcome = OutcomeFailed
			return uc.dispatcher.Stage(ctx, tx, notification.Event{
				UserID:  payment.ClientID,
				Type:    entity.NotificationEscrowFailed,
				Title:   "Платёж не прошёл",
				Message: "Платёжный шлюз отклонил транзакцию, попробуйте внести эскроу ещё раз",
				Link:    "/contracts/" + payment.ContractID.String(),
			})

		default:
			result.Outcome = OutcomeStillPending
			return nil
		}
	})

	uc.observe(txRef, result, err)
	if err != nil {
		return result, err
	}
	return result, nil
}

func (uc *ReconcileUseCase) markPaid(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment, result *ReconcileResult) error {
	if err := uc.machine.save(ctx, tx, payment, (*entity.EscrowPayment).MarkPaid); err != nil {
		return err
	}

	contract, err := tx.Contracts().FindByIDForUpdate(ctx, payment.ContractID)
	if err != nil {
		return err
	}
	// Оплата пришла после отмены контракта: деньги сразу возвращаются клиенту.
	if contract.IsCancelled() {
		result.Outcome = OutcomeRefunded
		return uc.machine.Refund(ctx, tx, payment)
	}

	if _, err := uc.jobs.Start(ctx, tx, payment.JobID); err != nil {
		return err
	}
	result.Outcome = OutcomePaid

	link := "/contracts/" + payment.ContractID.String()
	return uc.dispatcher.Stage(ctx, tx,
		notification.Event{
			UserID:  payment.FreelancerID,
			Type:    entity.NotificationEscrowPaid,
			Title:   "Эскроу оплачен",
			Message: "Клиент внёс средства, можно приступать к работе",
			Link:    link,
		},
		notification.Event{
			UserID:  payment.ClientID,
			Type:    entity.NotificationEscrowPaid,
			Title:   "Платёж подтверждён",
			Message: fmt.Sprintf("Средства %s %s заморожены на эскроу", payment.Amount.Major(), payment.Currency),
			Link:    link,
		},
	)
}

// VerifyAndExecute запрашивает статус у шлюза и применяет его. Используется
// обработчиком webhook и периодической сверкой: телу webhook не доверяем.
func (uc *ReconcileUseCase) VerifyAndExecute(ctx context.Context, txRef string) (*ReconcileResult, error) {
	v, err := uc.gateway.Verify(ctx, txRef)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.Reconcile("gateway_error")
		}
		if apperror.IsGateway(err) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось проверить статус платежа")
	}
	return uc.Execute(ctx, txRef, v.Status, v.PaidAmount)
}

func (uc *ReconcileUseCase) observe(txRef string, result *ReconcileResult, err error) {
	outcome := string(result.Outcome)
	if outcome == "" || (err != nil && result.Outcome != OutcomeAmountMismatch) {
		outcome = "error"
	}
	if uc.metrics != nil {
		uc.metrics.Reconcile(outcome)
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"tx_ref":  txRef,
		"outcome": outcome,
	})
	if err != nil {
		entry.WithField("error", err.Error()).Warn("escrow reconcile failed")
		return
	}
	entry.Info("escrow reconciled")
}

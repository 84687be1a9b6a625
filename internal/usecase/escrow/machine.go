package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

// Machine проводит переходы эскроу вместе с проводками в кошельках.
// Смена статуса и проводки фиксируются одной транзакцией.
type Machine struct {
	poster     *ledger.Poster
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewMachine(poster *ledger.Poster, dispatcher *notification.Dispatcher, m *metrics.Registry) *Machine {
	return &Machine{poster: poster, dispatcher: dispatcher, metrics: m}
}

func (m *Machine) save(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment, apply func(*entity.EscrowPayment) error) error {
	from := payment.Status
	if err := apply(payment); err != nil {
		return err
	}
	if err := tx.Escrows().Update(ctx, payment, from); err != nil {
		return err
	}

	to := payment.Status
	tx.AfterCommit(func() {
		if m.metrics != nil {
			m.metrics.Transition("escrow", string(from), string(to))
		}
		logger.Log.WithFields(logrus.Fields{
			"escrow_id": payment.ID,
			"tx_ref":    payment.TxRef,
			"from":      from,
			"to":        to,
		}).Info("escrow transition")
	})
	return nil
}

// Release переводит средства исполнителю за вычетом комиссии платформы.
func (m *Machine) Release(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment) error {
	if payment.IsPaid() {
		open, err := tx.Disputes().FindOpenByEscrow(ctx, payment.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperror.InvalidTransition("по платежу открыт спор, средства заморожены до решения")
		}
	}

	if err := m.save(ctx, tx, payment, (*entity.EscrowPayment).Release); err != nil {
		return err
	}

	postings := []ledger.Posting{{
		UserID:      payment.FreelancerID,
		Type:        valueobject.TransactionEscrowRelease,
		Amount:      payment.FreelancerPayout(),
		Currency:    payment.Currency,
		Reference:   payment.ReleaseReference(),
		Description: "Оплата по контракту " + payment.ContractID.String(),
	}}
	if payment.PlatformFee > 0 {
		postings = append(postings, ledger.Posting{
			UserID:      valueobject.PlatformUserID,
			Type:        valueobject.TransactionPlatformFee,
			Amount:      payment.PlatformFee,
			Currency:    payment.Currency,
			Reference:   payment.FeeReference(),
			Description: "Комиссия платформы по эскроу " + payment.ID.String(),
		})
	}
	if err := m.poster.PostMany(ctx, tx, postings...); err != nil {
		return err
	}

	link := "/escrow/" + payment.ID.String()
	return m.dispatcher.Stage(ctx, tx,
		notification.Event{
			UserID:  payment.FreelancerID,
			Type:    entity.NotificationEscrowReleased,
			Title:   "Средства переведены",
			Message: fmt.Sprintf("На ваш кошелёк зачислено %s %s", payment.FreelancerPayout().Major(), payment.Currency),
			Link:    link,
		},
		notification.Event{
			UserID:  payment.ClientID,
			Type:    entity.NotificationEscrowReleased,
			Title:   "Средства переведены исполнителю",
			Message: fmt.Sprintf("Эскроу на %s %s закрыт", payment.Amount.Major(), payment.Currency),
			Link:    link,
		},
	)
}

// Refund возвращает всю сумму эскроу клиенту. Основания возврата проверяет вызывающий код.
func (m *Machine) Refund(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment) error {
	if err := m.save(ctx, tx, payment, (*entity.EscrowPayment).Refund); err != nil {
		return err
	}

	if _, err := m.poster.Post(ctx, tx, ledger.Posting{
		UserID:      payment.ClientID,
		Type:        valueobject.TransactionEscrowRefund,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Reference:   payment.RefundReference(),
		Description: "Возврат эскроу " + payment.ID.String(),
	}); err != nil {
		return err
	}

	link := "/escrow/" + payment.ID.String()
	return m.dispatcher.Stage(ctx, tx,
		notification.Event{
			UserID:  payment.ClientID,
			Type:    entity.NotificationEscrowRefunded,
			Title:   "Средства возвращены",
			Message: fmt.Sprintf("На ваш кошелёк возвращено %s %s", payment.Amount.Major(), payment.Currency),
			Link:    link,
		},
		notification.Event{
			UserID:  payment.FreelancerID,
			Type:    entity.NotificationEscrowRefunded,
			Title:   "Эскроу возвращён клиенту",
			Message: "Средства по контракту возвращены клиенту",
			Link:    link,
		},
	)
}

// ReleaseForJob закрывает оплаченный эскроу заказа при его завершении.
func (m *Machine) ReleaseForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.EscrowPayment, error) {
	contract, err := tx.Contracts().FindByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, apperror.ErrContractNotFound
	}

	live, err := tx.Escrows().FindLiveByContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	if live == nil {
		return nil, apperror.InvalidTransition("по контракту нет оплаченного эскроу")
	}

	payment, err := tx.Escrows().FindByIDForUpdate(ctx, live.ID)
	if err != nil {
		return nil, err
	}
	if err := m.Release(ctx, tx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// expire закрывает платёж, который не был оплачен за отведённое время.
func (m *Machine) expire(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment, reason string) error {
	if err := m.save(ctx, tx, payment, func(p *entity.EscrowPayment) error { return p.MarkFailed(reason) }); err != nil {
		return err
	}
	return m.dispatcher.Stage(ctx, tx, notification.Event{
		UserID:  payment.ClientID,
		Type:    entity.NotificationEscrowFailed,
		Title:   "Платёж не прошёл",
		Message: reason,
		Link:    "/contracts/" + payment.ContractID.String(),
	})
}

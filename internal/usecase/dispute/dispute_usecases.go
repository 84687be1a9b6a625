package dispute

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
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type OpenDisputeInput struct {
	EscrowID uuid.UUID
	Type     valueobject.DisputeType
	Reason   string
}

type OpenDisputeUseCase struct {
	uow        repository.UnitOfWork
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewOpenDisputeUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher, m *metrics.Registry) *OpenDisputeUseCase {
	return &OpenDisputeUseCase{uow: uow, dispatcher: dispatcher, metrics: m}
}

// Execute открывает спор по оплаченному эскроу. Пока спор открыт, средства
// нельзя ни перевести, ни вернуть.
func (uc *OpenDisputeUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, input OpenDisputeInput) (*entity.Dispute, error) {
	var d *entity.Dispute
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		payment, err := tx.Escrows().FindByIDForUpdate(ctx, input.EscrowID)
		if err != nil {
			return err
		}
		if !payment.IsParty(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "открыть спор может только сторона контракта")
		}

		open, err := tx.Disputes().FindOpenByEscrow(ctx, payment.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperror.Conflict("по этому платежу уже открыт спор")
		}

		d, err = entity.NewDispute(payment, actor.ID, input.Type, input.Reason)
		if err != nil {
			return err
		}
		if err := tx.Disputes().Create(ctx, d); err != nil {
			return err
		}

		tx.AfterCommit(func() {
			if uc.metrics != nil {
				uc.metrics.Transition("dispute", "new", string(d.Status))
			}
		})

		counterparty := payment.ClientID
		if actor.ID == payment.ClientID {
			counterparty = payment.FreelancerID
		}
		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  counterparty,
			Type:    entity.NotificationDisputeOpened,
			Title:   "Открыт спор",
			Message: fmt.Sprintf("По эскроу на %s %s открыт спор: %s", payment.Amount.Major(), payment.Currency, d.Reason),
			Link:    disputeLink(d),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"escrow_id":  d.EscrowPaymentID,
		"type":       d.Type,
	}).Info("dispute opened")
	return d, nil
}

type ResolveDisputeInput struct {
	Outcome valueobject.DisputeOutcome
	Note    string
}

type ResolveDisputeUseCase struct {
	uow        repository.UnitOfWork
	escrow     *escrow.Machine
	jobs       *job.Machine
	contracts  *contract.Formation
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewResolveDisputeUseCase(
	uow repository.UnitOfWork,
	escrowMachine *escrow.Machine,
	jobs *job.Machine,
	contracts *contract.Formation,
	dispatcher *notification.Dispatcher,
	m *metrics.Registry,
) *ResolveDisputeUseCase {
	return &ResolveDisputeUseCase{
		uow:        uow,
		escrow:     escrowMachine,
		jobs:       jobs,
		contracts:  contracts,
		dispatcher: dispatcher,
		metrics:    m,
	}
}

// Execute закрывает спор решением администратора. Решение, движение средств
// и статусы заказа с контрактом фиксируются одной транзакцией.
func (uc *ResolveDisputeUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, disputeID uuid.UUID, input ResolveDisputeInput) (*entity.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "решать споры может только администратор")
	}

	var d *entity.Dispute
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.Disputes().FindByIDForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		payment, err := tx.Escrows().FindByIDForUpdate(ctx, d.EscrowPaymentID)
		if err != nil {
			return err
		}

		if err := save(ctx, tx, uc.metrics, d, func(d *entity.Dispute) error {
			return d.Resolve(input.Outcome, actor.ID, input.Note)
		}); err != nil {
			return err
		}

		switch input.Outcome {
		case valueobject.DisputeOutcomeRelease:
			if err := uc.escrow.Release(ctx, tx, payment); err != nil {
				return err
			}
			if err := uc.closeJob(ctx, tx, d.JobID, uc.jobs.Finish, uc.contracts.CompleteForJob); err != nil {
				return err
			}
		case valueobject.DisputeOutcomeRefund:
			if err := uc.escrow.Refund(ctx, tx, payment); err != nil {
				return err
			}
			if err := uc.closeJob(ctx, tx, d.JobID, uc.jobs.Cancel, uc.contracts.CancelForJob); err != nil {
				return err
			}
		}

		return stageClosed(ctx, tx, uc.dispatcher, payment, d, entity.NotificationDisputeResolved, "Спор решён",
			fmt.Sprintf("Спор по эскроу решён: %s", outcomeText(input.Outcome)))
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"dispute_id": d.ID,
		"escrow_id":  d.EscrowPaymentID,
		"outcome":    input.Outcome,
		"admin_id":   actor.ID,
	}).Info("dispute resolved")
	return d, nil
}

// closeJob переводит заказ и контракт в конечное состояние, если они ещё активны.
func (uc *ResolveDisputeUseCase) closeJob(
	ctx context.Context,
	tx repository.Tx,
	jobID uuid.UUID,
	moveJob func(context.Context, repository.Tx, uuid.UUID) (*entity.Job, error),
	moveContract func(context.Context, repository.Tx, uuid.UUID) (*entity.Contract, error),
) error {
	j, err := tx.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == valueobject.JobStatusInProgress || j.Status == valueobject.JobStatusContracted {
		if _, err := moveJob(ctx, tx, jobID); err != nil {
			return err
		}
	}

	c, err := tx.Contracts().FindByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	if c != nil && c.Status == valueobject.ContractStatusActive {
		if _, err := moveContract(ctx, tx, jobID); err != nil {
			return err
		}
	}
	return nil
}

type RejectDisputeUseCase struct {
	uow        repository.UnitOfWork
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewRejectDisputeUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher, m *metrics.Registry) *RejectDisputeUseCase {
	return &RejectDisputeUseCase{uow: uow, dispatcher: dispatcher, metrics: m}
}

// Execute отклоняет спор. Эскроу остаётся PAID и снова может быть переведён.
func (uc *RejectDisputeUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, disputeID uuid.UUID, note string) (*entity.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "решать споры может только администратор")
	}

	var d *entity.Dispute
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.Disputes().FindByIDForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		payment, err := tx.Escrows().FindByID(ctx, d.EscrowPaymentID)
		if err != nil {
			return err
		}
		if err := save(ctx, tx, uc.metrics, d, func(d *entity.Dispute) error {
			return d.Reject(actor.ID, note)
		}); err != nil {
			return err
		}
		return stageClosed(ctx, tx, uc.dispatcher, payment, d, entity.NotificationDisputeRejected, "Спор отклонён",
			"Администратор отклонил спор, средства остаются в эскроу")
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

type GetDisputeUseCase struct {
	uow repository.UnitOfWork
}

func NewGetDisputeUseCase(uow repository.UnitOfWork) *GetDisputeUseCase {
	return &GetDisputeUseCase{uow: uow}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, disputeID uuid.UUID) (*entity.Dispute, error) {
	var d *entity.Dispute
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		d, err = tx.Disputes().FindByID(ctx, disputeID)
		if err != nil {
			return err
		}
		if actor.IsAdmin() {
			return nil
		}
		payment, err := tx.Escrows().FindByID(ctx, d.EscrowPaymentID)
		if err != nil {
			return err
		}
		if !payment.IsParty(actor.ID) {
			return apperror.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListMine возвращает споры по контрактам пользователя.
func (uc *GetDisputeUseCase) ListMine(ctx context.Context, actor valueobject.AuthenticatedUser, limit, offset int) ([]*entity.Dispute, int, error) {
	return uc.list(ctx, repository.DisputeFilter{PartyID: &actor.ID}, limit, offset)
}

// ListOpen: очередь открытых споров для администратора.
func (uc *GetDisputeUseCase) ListOpen(ctx context.Context, actor valueobject.AuthenticatedUser, limit, offset int) ([]*entity.Dispute, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperror.ErrForbidden
	}
	status := valueobject.DisputeStatusOpen
	return uc.list(ctx, repository.DisputeFilter{Status: &status}, limit, offset)
}

func (uc *GetDisputeUseCase) list(ctx context.Context, filter repository.DisputeFilter, limit, offset int) ([]*entity.Dispute, int, error) {
	filter.Limit, filter.Offset = pagination.Normalize(limit, offset)

	var (
		items []*entity.Dispute
		total int
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, total, err = tx.Disputes().List(ctx, filter)
		return err
	})
	return items, total, err
}

func save(ctx context.Context, tx repository.Tx, m *metrics.Registry, d *entity.Dispute, apply func(*entity.Dispute) error) error {
	from := d.Status
	if err := apply(d); err != nil {
		return err
	}
	if err := tx.Disputes().Update(ctx, d, from); err != nil {
		return err
	}
	to := d.Status
	tx.AfterCommit(func() {
		if m != nil {
			m.Transition("dispute", string(from), string(to))
		}
	})
	return nil
}

func stageClosed(
	ctx context.Context,
	tx repository.Tx,
	dispatcher *notification.Dispatcher,
	payment *entity.EscrowPayment,
	d *entity.Dispute,
	notificationType entity.NotificationType,
	title, message string,
) error {
	link := disputeLink(d)
	return dispatcher.Stage(ctx, tx,
		notification.Event{UserID: payment.ClientID, Type: notificationType, Title: title, Message: message, Link: link},
		notification.Event{UserID: payment.FreelancerID, Type: notificationType, Title: title, Message: message, Link: link},
	)
}

func outcomeText(outcome valueobject.DisputeOutcome) string {
	if outcome == valueobject.DisputeOutcomeRefund {
		return "средства возвращены клиенту"
	}
	return "средства переведены исполнителю"
}

func disputeLink(d *entity.Dispute) string {
	return "/disputes/" + d.ID.String()
}

package proposal

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
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

// locked: отклик и его заказ под блокировкой строк.
// Заказ блокируется первым, поэтому все операции над откликами одного заказа
// выполняются строго по очереди.
type locked struct {
	proposal *entity.Proposal
	job      *entity.Job
}

func lock(ctx context.Context, tx repository.Tx, proposalID uuid.UUID) (*locked, error) {
	p, err := tx.Proposals().FindByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	job, err := tx.Jobs().FindByIDForUpdate(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	p, err = tx.Proposals().FindByIDForUpdate(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return &locked{proposal: p, job: job}, nil
}

type transitions struct {
	metrics *metrics.Registry
}

func (t transitions) save(ctx context.Context, tx repository.Tx, p *entity.Proposal, apply func(*entity.Proposal) error) error {
	from := p.Status
	if err := apply(p); err != nil {
		return err
	}
	if err := tx.Proposals().Update(ctx, p, from); err != nil {
		return err
	}
	to := p.Status
	tx.AfterCommit(func() {
		if t.metrics != nil {
			t.metrics.Transition("proposal", string(from), string(to))
		}
	})
	return nil
}

type CounterOfferUseCase struct {
	uow         repository.UnitOfWork
	dispatcher  *notification.Dispatcher
	transitions transitions
}

func NewCounterOfferUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher, m *metrics.Registry) *CounterOfferUseCase {
	return &CounterOfferUseCase{uow: uow, dispatcher: dispatcher, transitions: transitions{metrics: m}}
}

// Execute: PENDING -> OFFERED. Клиент может предложить другую сумму.
func (uc *CounterOfferUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, proposalID uuid.UUID, amount *valueobject.Money) (*entity.Proposal, error) {
	var p *entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := lock(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		p = l.proposal
		if !l.job.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		if l.job.Status != valueobject.JobStatusOpen {
			return apperror.InvalidTransition("заказ больше не принимает отклики")
		}
		if err := uc.transitions.save(ctx, tx, p, func(p *entity.Proposal) error { return p.CounterOffer(amount) }); err != nil {
			return err
		}

		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  p.FreelancerID,
			Type:    entity.NotificationProposalOffered,
			Title:   "Встречное предложение",
			Message: fmt.Sprintf("Клиент предлагает %s %s за заказ «%s»", p.ProposedAmount.Major(), l.job.Budget.Currency, l.job.Title),
			Link:    proposalLink(p),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type AcceptResult struct {
	Proposal *entity.Proposal
	Contract *entity.Contract
}

type AcceptProposalUseCase struct {
	uow         repository.UnitOfWork
	formation   *contract.Formation
	dispatcher  *notification.Dispatcher
	transitions transitions
}

func NewAcceptProposalUseCase(uow repository.UnitOfWork, formation *contract.Formation, dispatcher *notification.Dispatcher, m *metrics.Registry) *AcceptProposalUseCase {
	return &AcceptProposalUseCase{uow: uow, formation: formation, dispatcher: dispatcher, transitions: transitions{metrics: m}}
}

// Execute принимает отклик одной транзакцией: отклик становится ACCEPTED,
// все открытые конкуренты отклоняются и формируется контракт.
// Клиент принимает PENDING напрямую, исполнитель — встречное предложение.
func (uc *AcceptProposalUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, proposalID uuid.UUID) (*AcceptResult, error) {
	result := &AcceptResult{}
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := lock(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		p := l.proposal
		result.Proposal = p

		var accept func(*entity.Proposal) error
		switch {
		case l.job.IsOwnedBy(actor.ID):
			accept = (*entity.Proposal).AcceptByClient
		case p.IsOwnedBy(actor.ID):
			accept = (*entity.Proposal).AcceptByFreelancer
		default:
			return apperror.ErrForbidden
		}

		switch l.job.Status {
		case valueobject.JobStatusOpen:
		case valueobject.JobStatusDraft:
			return apperror.InvalidTransition("заказ ещё не опубликован")
		case valueobject.JobStatusCancelled:
			return apperror.InvalidTransition("заказ отменён")
		default:
			return apperror.Conflict("по заказу уже принято другое предложение")
		}

		if err := uc.transitions.save(ctx, tx, p, accept); err != nil {
			return err
		}

		events, err := uc.rejectSiblings(ctx, tx, l.job, p)
		if err != nil {
			return err
		}

		result.Contract, err = uc.formation.FormFromAcceptedProposal(ctx, tx, p)
		if err != nil {
			return err
		}

		notifyID := p.FreelancerID
		if actor.ID == p.FreelancerID {
			notifyID = l.job.ClientID
		}
		events = append(events, notification.Event{
			UserID:  notifyID,
			Type:    entity.NotificationProposalAccepted,
			Title:   "Предложение принято",
			Message: fmt.Sprintf("Предложение по заказу «%s» принято", l.job.Title),
			Link:    "/contracts/" + result.Contract.ID.String(),
		})
		return uc.dispatcher.Stage(ctx, tx, events...)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id": result.Proposal.ID,
		"job_id":      result.Proposal.JobID,
		"contract_id": result.Contract.ID,
	}).Info("proposal accepted")
	return result, nil
}

func (uc *AcceptProposalUseCase) rejectSiblings(ctx context.Context, tx repository.Tx, job *entity.Job, accepted *entity.Proposal) ([]notification.Event, error) {
	siblings, err := tx.Proposals().FindByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	var events []notification.Event
	for _, s := range siblings {
		if s.ID == accepted.ID || !s.Status.IsOpen() {
			continue
		}
		if err := uc.transitions.save(ctx, tx, s, func(p *entity.Proposal) error {
			_, err := p.RejectAsSibling()
			return err
		}); err != nil {
			return nil, err
		}
		events = append(events, notification.Event{
			UserID:  s.FreelancerID,
			Type:    entity.NotificationProposalRejected,
			Title:   "Отклик отклонён",
			Message: fmt.Sprintf("Клиент выбрал другого исполнителя для заказа «%s»", job.Title),
			Link:    proposalLink(s),
		})
	}
	return events, nil
}

type RejectProposalUseCase struct {
	uow         repository.UnitOfWork
	dispatcher  *notification.Dispatcher
	transitions transitions
}

func NewRejectProposalUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher, m *metrics.Registry) *RejectProposalUseCase {
	return &RejectProposalUseCase{uow: uow, dispatcher: dispatcher, transitions: transitions{metrics: m}}
}

// Execute: клиент отклоняет ожидающий отклик, исполнитель — встречное предложение.
func (uc *RejectProposalUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, proposalID uuid.UUID) (*entity.Proposal, error) {
	var p *entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := lock(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		p = l.proposal

		var (
			reject   func(*entity.Proposal) error
			notifyID uuid.UUID
			message  string
		)
		switch {
		case l.job.IsOwnedBy(actor.ID):
			reject = (*entity.Proposal).RejectByClient
			notifyID = p.FreelancerID
			message = fmt.Sprintf("Клиент отклонил ваш отклик на заказ «%s»", l.job.Title)
		case p.IsOwnedBy(actor.ID):
			reject = (*entity.Proposal).DeclineOffer
			notifyID = l.job.ClientID
			message = fmt.Sprintf("Исполнитель отказался от встречного предложения по заказу «%s»", l.job.Title)
		default:
			return apperror.ErrForbidden
		}

		if err := uc.transitions.save(ctx, tx, p, reject); err != nil {
			return err
		}
		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  notifyID,
			Type:    entity.NotificationProposalRejected,
			Title:   "Отклик отклонён",
			Message: message,
			Link:    proposalLink(p),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

type WithdrawProposalUseCase struct {
	uow         repository.UnitOfWork
	dispatcher  *notification.Dispatcher
	transitions transitions
}

func NewWithdrawProposalUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher, m *metrics.Registry) *WithdrawProposalUseCase {
	return &WithdrawProposalUseCase{uow: uow, dispatcher: dispatcher, transitions: transitions{metrics: m}}
}

// Execute: PENDING -> WITHDRAWN, только автор отклика.
func (uc *WithdrawProposalUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, proposalID uuid.UUID) (*entity.Proposal, error) {
	var p *entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := lock(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		p = l.proposal
		if !p.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		if err := uc.transitions.save(ctx, tx, p, (*entity.Proposal).Withdraw); err != nil {
			return err
		}
		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  l.job.ClientID,
			Type:    entity.NotificationProposalWithdrawn,
			Title:   "Отклик отозван",
			Message: fmt.Sprintf("Исполнитель отозвал отклик на заказ «%s»", l.job.Title),
			Link:    "/jobs/" + l.job.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

package proposal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type SubmitProposalInput struct {
	JobID   uuid.UUID
	Message string
	Amount  valueobject.Money
}

type SubmitProposalUseCase struct {
	uow        repository.UnitOfWork
	dispatcher *notification.Dispatcher
}

func NewSubmitProposalUseCase(uow repository.UnitOfWork, dispatcher *notification.Dispatcher) *SubmitProposalUseCase {
	return &SubmitProposalUseCase{uow: uow, dispatcher: dispatcher}
}

func (uc *SubmitProposalUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, input SubmitProposalInput) (*entity.Proposal, error) {
	if !actor.IsFreelancer() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться на заказы могут только исполнители")
	}

	var proposal *entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		job, err := tx.Jobs().FindByIDForUpdate(ctx, input.JobID)
		if err != nil {
			return err
		}
		if job.Status == valueobject.JobStatusDraft {
			return apperror.ErrJobNotFound
		}
		if job.IsOwnedBy(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный заказ")
		}
		if job.Status != valueobject.JobStatusOpen {
			return apperror.InvalidTransition("заказ больше не принимает отклики")
		}

		existing, err := tx.Proposals().FindByJobAndFreelancer(ctx, job.ID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.Conflict("вы уже откликнулись на этот заказ")
		}

		proposal, err = entity.NewProposal(job.ID, actor.ID, input.Message, input.Amount)
		if err != nil {
			return err
		}
		if err := tx.Proposals().Create(ctx, proposal); err != nil {
			return err
		}

		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  job.ClientID,
			Type:    entity.NotificationProposalSubmitted,
			Title:   "Новый отклик",
			Message: fmt.Sprintf("На заказ «%s» откликнулись за %s %s", job.Title, proposal.ProposedAmount.Major(), job.Budget.Currency),
			Link:    proposalLink(proposal),
		})
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

func proposalLink(p *entity.Proposal) string {
	return "/proposals/" + p.ID.String()
}

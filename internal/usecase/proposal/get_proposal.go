package proposal

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type GetProposalUseCase struct {
	uow repository.UnitOfWork
}

func NewGetProposalUseCase(uow repository.UnitOfWork) *GetProposalUseCase {
	return &GetProposalUseCase{uow: uow}
}

// Execute: отклик видят автор, клиент заказа и администратор.
func (uc *GetProposalUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, proposalID uuid.UUID) (*entity.Proposal, error) {
	var p *entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.Proposals().FindByID(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.IsOwnedBy(actor.ID) || actor.IsAdmin() {
			return nil
		}
		job, err := tx.Jobs().FindByID(ctx, p.JobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListForJob возвращает все отклики заказа клиенту-владельцу или администратору.
func (uc *GetProposalUseCase) ListForJob(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID) ([]*entity.Proposal, error) {
	var items []*entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		job, err := tx.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		items, err = tx.Proposals().FindByJobID(ctx, job.ID)
		return err
	})
	return items, err
}

// ListMine возвращает отклики исполнителя.
func (uc *GetProposalUseCase) ListMine(ctx context.Context, actor valueobject.AuthenticatedUser) ([]*entity.Proposal, error) {
	var items []*entity.Proposal
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, err = tx.Proposals().FindByFreelancerID(ctx, actor.ID)
		return err
	})
	return items, err
}

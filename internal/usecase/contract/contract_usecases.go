package contract

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type CancelContractUseCase struct {
	uow        repository.UnitOfWork
	formation  *Formation
	jobs       *job.Machine
	dispatcher *notification.Dispatcher
}

func NewCancelContractUseCase(uow repository.UnitOfWork, formation *Formation, jobs *job.Machine, dispatcher *notification.Dispatcher) *CancelContractUseCase {
	return &CancelContractUseCase{uow: uow, formation: formation, jobs: jobs, dispatcher: dispatcher}
}

// Execute отменяет контракт до начала работ. Заказ переходит в CANCELLED.
// Ожидающий платёж остаётся на стороне шлюза: поздняя оплата вернётся клиенту при сверке.
func (uc *CancelContractUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, contractID uuid.UUID) (*entity.Contract, error) {
	var c *entity.Contract
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = tx.Contracts().FindByIDForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.IsParty(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}

		j, err := tx.Jobs().FindByIDForUpdate(ctx, c.JobID)
		if err != nil {
			return err
		}
		if j.Status != valueobject.JobStatusContracted {
			return apperror.InvalidTransition("контракт можно отменить только до оплаты эскроу")
		}

		if err := uc.formation.save(ctx, tx, c, (*entity.Contract).Cancel); err != nil {
			return err
		}
		if _, err := uc.jobs.Cancel(ctx, tx, j.ID); err != nil {
			return err
		}

		link := "/contracts/" + c.ID.String()
		events := []notification.Event{}
		for _, userID := range []uuid.UUID{c.ClientID, c.FreelancerID} {
			if userID == actor.ID {
				continue
			}
			events = append(events, notification.Event{
				UserID:  userID,
				Type:    entity.NotificationContractCancelled,
				Title:   "Контракт отменён",
				Message: "Контракт по заказу «" + j.Title + "» отменён",
				Link:    link,
			})
		}
		return uc.dispatcher.Stage(ctx, tx, events...)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

type GetContractUseCase struct {
	uow repository.UnitOfWork
}

func NewGetContractUseCase(uow repository.UnitOfWork) *GetContractUseCase {
	return &GetContractUseCase{uow: uow}
}

func (uc *GetContractUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, contractID uuid.UUID) (*entity.Contract, error) {
	var c *entity.Contract
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = tx.Contracts().FindByID(ctx, contractID)
		if err != nil {
			return err
		}
		if !c.IsParty(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

type ListMyContractsUseCase struct {
	uow repository.UnitOfWork
}

func NewListMyContractsUseCase(uow repository.UnitOfWork) *ListMyContractsUseCase {
	return &ListMyContractsUseCase{uow: uow}
}

func (uc *ListMyContractsUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, limit, offset int) ([]*entity.Contract, int, error) {
	limit, offset = pagination.Normalize(limit, offset)

	var (
		items []*entity.Contract
		total int
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, total, err = tx.Contracts().ListByParty(ctx, actor.ID, limit, offset)
		return err
	})
	return items, total, err
}

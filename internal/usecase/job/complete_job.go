package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

// ContractCloser завершает активный контракт заказа.
type ContractCloser interface {
	CompleteForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Contract, error)
}

// EscrowReleaser переводит оплаченный эскроу заказа исполнителю.
// Возвращает InvalidTransition, пока по платежу открыт спор.
type EscrowReleaser interface {
	ReleaseForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.EscrowPayment, error)
}

type CompleteJobUseCase struct {
	uow        repository.UnitOfWork
	machine    *Machine
	contracts  ContractCloser
	escrow     EscrowReleaser
	dispatcher *notification.Dispatcher
}

func NewCompleteJobUseCase(
	uow repository.UnitOfWork,
	machine *Machine,
	contracts ContractCloser,
	escrow EscrowReleaser,
	dispatcher *notification.Dispatcher,
) *CompleteJobUseCase {
	return &CompleteJobUseCase{
		uow:        uow,
		machine:    machine,
		contracts:  contracts,
		escrow:     escrow,
		dispatcher: dispatcher,
	}
}

// Execute: IN_PROGRESS -> COMPLETED. В той же транзакции завершает контракт
// и переводит средства эскроу исполнителю.
func (uc *CompleteJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		if err := uc.machine.save(ctx, tx, job, (*entity.Job).Complete); err != nil {
			return err
		}

		contract, err := uc.contracts.CompleteForJob(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if _, err := uc.escrow.ReleaseForJob(ctx, tx, job.ID); err != nil {
			return err
		}

		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  contract.FreelancerID,
			Type:    entity.NotificationJobCompleted,
			Title:   "Заказ завершён",
			Message: "Клиент подтвердил выполнение заказа «" + job.Title + "»",
			Link:    "/jobs/" + job.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

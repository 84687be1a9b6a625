package escrow

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type ReleaseEscrowUseCase struct {
	uow     repository.UnitOfWork
	machine *Machine
}

func NewReleaseEscrowUseCase(uow repository.UnitOfWork, machine *Machine) *ReleaseEscrowUseCase {
	return &ReleaseEscrowUseCase{uow: uow, machine: machine}
}

// Execute переводит средства исполнителю по завершённому заказу. Досрочный
// перевод администратором возможен только через решение спора.
func (uc *ReleaseEscrowUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, escrowID uuid.UUID) (*entity.EscrowPayment, error) {
	var payment *entity.EscrowPayment
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		payment, err = tx.Escrows().FindByIDForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if payment.ClientID != actor.ID && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}

		if payment.IsPaid() {
			job, err := tx.Jobs().FindByID(ctx, payment.JobID)
			if err != nil {
				return err
			}
			if job.Status != valueobject.JobStatusCompleted {
				return apperror.InvalidTransition("средства можно перевести только после завершения заказа")
			}
		}

		return uc.machine.Release(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

type RefundEscrowUseCase struct {
	uow     repository.UnitOfWork
	machine *Machine
}

func NewRefundEscrowUseCase(uow repository.UnitOfWork, machine *Machine) *RefundEscrowUseCase {
	return &RefundEscrowUseCase{uow: uow, machine: machine}
}

// Execute возвращает средства клиенту, если спор решён в его пользу
// или контракт отменён до начала работ.
func (uc *RefundEscrowUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, escrowID uuid.UUID) (*entity.EscrowPayment, error) {
	var payment *entity.EscrowPayment
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		payment, err = tx.Escrows().FindByIDForUpdate(ctx, escrowID)
		if err != nil {
			return err
		}
		if payment.ClientID != actor.ID && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		if !payment.IsPaid() {
			_, err := payment.Status.Apply(valueobject.EscrowEventRefund)
			return err
		}

		allowed, err := refundAllowed(ctx, tx, payment)
		if err != nil {
			return err
		}
		if !allowed {
			return apperror.InvalidTransition("возврат возможен только после решения спора в пользу клиента или отмены контракта")
		}

		return uc.machine.Refund(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func refundAllowed(ctx context.Context, tx repository.Tx, payment *entity.EscrowPayment) (bool, error) {
	dispute, err := tx.Disputes().FindLatestByEscrow(ctx, payment.ID)
	if err != nil {
		return false, err
	}
	if dispute != nil && dispute.ResolvedForClient() {
		return true, nil
	}

	contract, err := tx.Contracts().FindByID(ctx, payment.ContractID)
	if err != nil {
		return false, err
	}
	return contract.IsCancelled(), nil
}

type GetEscrowUseCase struct {
	uow repository.UnitOfWork
}

func NewGetEscrowUseCase(uow repository.UnitOfWork) *GetEscrowUseCase {
	return &GetEscrowUseCase{uow: uow}
}

func (uc *GetEscrowUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, escrowID uuid.UUID) (*entity.EscrowPayment, error) {
	var payment *entity.EscrowPayment
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		payment, err = tx.Escrows().FindByID(ctx, escrowID)
		if err != nil {
			return err
		}
		if !payment.IsParty(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ForContract возвращает текущий платёж по контракту (не FAILED).
func (uc *GetEscrowUseCase) ForContract(ctx context.Context, actor valueobject.AuthenticatedUser, contractID uuid.UUID) (*entity.EscrowPayment, error) {
	var payment *entity.EscrowPayment
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		contract, err := tx.Contracts().FindByID(ctx, contractID)
		if err != nil {
			return err
		}
		if !contract.IsParty(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		payment, err = tx.Escrows().FindLiveByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		if payment == nil {
			return apperror.ErrEscrowNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

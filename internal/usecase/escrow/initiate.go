package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type InitiateEscrowUseCase struct {
	uow     repository.UnitOfWork
	gateway Gateway
	cfg     Config
}

func NewInitiateEscrowUseCase(uow repository.UnitOfWork, gateway Gateway, cfg Config) *InitiateEscrowUseCase {
	return &InitiateEscrowUseCase{uow: uow, gateway: gateway, cfg: cfg}
}

// Execute создаёт ожидающий платёж и получает ссылку на оплату у шлюза.
// Платёж фиксируется до обращения к шлюзу: если шлюз недоступен, платёж
// остаётся PENDING и повторный вызов переиспользует тот же TxRef.
func (uc *InitiateEscrowUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, contractID uuid.UUID, amount valueobject.Money) (*entity.EscrowPayment, error) {
	var (
		payment *entity.EscrowPayment
		title   string
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		contract, err := tx.Contracts().FindByIDForUpdate(ctx, contractID)
		if err != nil {
			return err
		}
		if contract.ClientID != actor.ID {
			return apperror.ErrForbidden
		}
		if contract.Status != valueobject.ContractStatusActive {
			return apperror.InvalidTransition("эскроу можно внести только по активному контракту")
		}

		job, err := tx.Jobs().FindByIDForUpdate(ctx, contract.JobID)
		if err != nil {
			return err
		}
		title = job.Title

		live, err := tx.Escrows().FindLiveByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		if live != nil {
			if !live.IsPending() {
				return apperror.InvalidTransition("эскроу по контракту уже оплачен")
			}
			if amount != live.Amount {
				return apperror.Validation("сумма платежа должна совпадать с суммой контракта (" + live.Amount.Major() + ")")
			}
			payment = live
			return nil
		}

		if job.Status != valueobject.JobStatusContracted {
			return apperror.InvalidTransition("эскроу вносится только после заключения контракта и до начала работ")
		}

		payment, err = entity.NewEscrowPayment(contract, amount, uc.cfg.FeePercent, entity.NewTxRef())
		if err != nil {
			return err
		}
		return tx.Escrows().Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	if payment.CheckoutURL != nil {
		return payment, nil
	}

	url, err := uc.gateway.InitiateCheckout(ctx, CheckoutRequest{
		TxRef:       payment.TxRef,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Title:       "Эскроу",
		Description: title,
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"escrow_id": payment.ID,
			"tx_ref":    payment.TxRef,
			"error":     err.Error(),
		}).Warn("gateway checkout failed, payment stays pending")
		if apperror.IsGateway(err) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен, повторите попытку позже")
	}

	err = uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.Escrows().FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return err
		}
		payment = current
		if !current.IsPending() || current.CheckoutURL != nil {
			return nil
		}
		current.SetCheckoutURL(url)
		return tx.Escrows().Update(ctx, current, valueobject.EscrowStatusPending)
	})
	if err != nil {
		return nil, err
	}
	if payment.CheckoutURL == nil {
		payment.CheckoutURL = &url
	}
	return payment, nil
}

package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type GetWalletUseCase struct {
	uow      repository.UnitOfWork
	currency string
}

func NewGetWalletUseCase(uow repository.UnitOfWork, currency string) *GetWalletUseCase {
	return &GetWalletUseCase{uow: uow, currency: currency}
}

// Execute возвращает кошелёк пользователя, создавая пустой при первом обращении.
func (uc *GetWalletUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser) (*entity.Wallet, error) {
	var wallet *entity.Wallet
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		wallet, err = tx.Wallets().GetOrCreateForUpdate(ctx, actor.ID, uc.currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

type ListTransactionsUseCase struct {
	uow repository.UnitOfWork
}

func NewListTransactionsUseCase(uow repository.UnitOfWork) *ListTransactionsUseCase {
	return &ListTransactionsUseCase{uow: uow}
}

func (uc *ListTransactionsUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, limit, offset int) ([]*entity.WalletTransaction, int, error) {
	limit, offset = pagination.Normalize(limit, offset)

	var (
		items []*entity.WalletTransaction
		total int
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallet, err := tx.Wallets().FindByUserID(ctx, actor.ID)
		if apperror.IsNotFound(err) {
			items = []*entity.WalletTransaction{}
			return nil
		}
		if err != nil {
			return err
		}
		items, total, err = tx.Wallets().ListTransactions(ctx, wallet.ID, limit, offset)
		return err
	})
	return items, total, err
}

type WithdrawInput struct {
	Amount         valueobject.Money
	IdempotencyKey string
}

type WithdrawUseCase struct {
	uow        repository.UnitOfWork
	poster     *Poster
	dispatcher *notification.Dispatcher
}

func NewWithdrawUseCase(uow repository.UnitOfWork, poster *Poster, dispatcher *notification.Dispatcher) *WithdrawUseCase {
	return &WithdrawUseCase{uow: uow, poster: poster, dispatcher: dispatcher}
}

// Execute списывает средства с кошелька. Ключ идемпотентности превращается
// в ссылку проводки, повторный запрос с тем же ключом возвращает ту же запись.
func (uc *WithdrawUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, input WithdrawInput) (*entity.WalletTransaction, error) {
	if actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return nil, apperror.Validation("требуется ключ идемпотентности")
	}
	if input.Amount <= 0 {
		return nil, apperror.Validation("сумма вывода должна быть положительной")
	}

	var entry *entity.WalletTransaction
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallet, err := tx.Wallets().FindByUserID(ctx, actor.ID)
		if apperror.IsNotFound(err) {
			return apperror.ErrInsufficientFunds
		}
		if err != nil {
			return err
		}

		reference := "withdrawal:" + key
		if prev, err := tx.Wallets().FindTransactionByReference(ctx, wallet.ID, reference); err != nil {
			return err
		} else if prev != nil {
			entry = prev
			return nil
		}

		entry, err = uc.poster.Post(ctx, tx, Posting{
			UserID:      actor.ID,
			Type:        valueobject.TransactionWithdrawal,
			Amount:      input.Amount,
			Currency:    wallet.Currency,
			Reference:   reference,
			Description: "Вывод средств",
		})
		if err != nil {
			return err
		}

		return uc.dispatcher.Stage(ctx, tx, notification.Event{
			UserID:  actor.ID,
			Type:    entity.NotificationWithdrawal,
			Title:   "Вывод средств",
			Message: fmt.Sprintf("Списано %s %s", input.Amount.Major(), wallet.Currency),
			Link:    "/wallet",
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// BalanceReport: результат сверки кэшированного баланса с журналом.
type BalanceReport struct {
	WalletID uuid.UUID
	UserID   uuid.UUID
	Balance  valueobject.Money
	Ledger   valueobject.Money
	Currency string
}

type VerifyBalanceUseCase struct {
	uow repository.UnitOfWork
}

func NewVerifyBalanceUseCase(uow repository.UnitOfWork) *VerifyBalanceUseCase {
	return &VerifyBalanceUseCase{uow: uow}
}

// Execute пересчитывает сумму проводок кошелька. Расхождение — нарушение инварианта.
func (uc *VerifyBalanceUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, userID uuid.UUID) (*BalanceReport, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	var report *BalanceReport
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		wallet, err := tx.Wallets().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := tx.Wallets().SumTransactions(ctx, wallet.ID)
		if err != nil {
			return err
		}
		report = &BalanceReport{
			WalletID: wallet.ID,
			UserID:   wallet.UserID,
			Balance:  wallet.Balance,
			Ledger:   sum,
			Currency: wallet.Currency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Balance != report.Ledger {
		logger.Log.WithFields(logrus.Fields{
			"wallet_id": report.WalletID,
			"balance":   report.Balance.Major(),
			"ledger":    report.Ledger.Major(),
		}).Error("wallet balance does not match ledger")
		return report, apperror.New(apperror.ErrCodeInvariantViolation,
			fmt.Sprintf("баланс кошелька %s не совпадает с суммой проводок %s", report.Balance.Major(), report.Ledger.Major()))
	}
	return report, nil
}

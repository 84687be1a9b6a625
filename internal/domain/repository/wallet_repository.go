package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type WalletRepository interface {
	// GetOrCreateForUpdate возвращает кошелёк пользователя под блокировкой строки,
	// создавая его при первом обращении.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*entity.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error)
	UpdateBalance(ctx context.Context, wallet *entity.Wallet) error
	// InsertTransaction возвращает false, если проводка с такой ссылкой уже есть.
	InsertTransaction(ctx context.Context, tx *entity.WalletTransaction) (bool, error)
	FindTransactionByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error)
	SumTransactions(ctx context.Context, walletID uuid.UUID) (valueobject.Money, error)
}

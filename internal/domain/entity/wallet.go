package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// Wallet хранит кэшированный баланс. Источник истины — журнал транзакций.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Balance   valueobject.Money
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WalletTransaction struct {
	ID           uuid.UUID
	WalletID     uuid.UUID
	Type         valueobject.TransactionType
	Amount       valueobject.Money
	BalanceAfter valueobject.Money
	Currency     string
	Reference    string
	Description  string
	CreatedAt    time.Time
}

func NewWallet(userID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Post проводит операцию по кошельку и возвращает запись журнала.
// amount всегда положительный, знак определяется типом проводки.
func (w *Wallet) Post(txType valueobject.TransactionType, amount valueobject.Money, currency, reference, description string) (*WalletTransaction, error) {
	if !txType.IsValid() {
		return nil, apperror.Validation("некорректный тип проводки")
	}
	if amount <= 0 {
		return nil, apperror.Validation("сумма проводки должна быть положительной")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, apperror.Validation("ссылка проводки обязательна")
	}
	if currency != "" && currency != w.Currency {
		return nil, apperror.Validation("валюта проводки не совпадает с валютой кошелька")
	}

	signed := txType.Signed(amount)
	if w.Balance+signed < 0 {
		return nil, apperror.ErrInsufficientFunds
	}

	now := time.Now().UTC()
	w.Balance += signed
	w.UpdatedAt = now

	return &WalletTransaction{
		ID:           uuid.New(),
		WalletID:     w.ID,
		Type:         txType,
		Amount:       signed,
		BalanceAfter: w.Balance,
		Currency:     w.Currency,
		Reference:    reference,
		Description:  description,
		CreatedAt:    now,
	}, nil
}

package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
)

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type WalletResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WalletTransactionResponse struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Currency     string    `json:"currency"`
	Reference    string    `json:"reference"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

type BalanceReportResponse struct {
	WalletID uuid.UUID `json:"wallet_id"`
	UserID   uuid.UUID `json:"user_id"`
	Balance  int64     `json:"balance"`
	Ledger   int64     `json:"ledger"`
	Currency string    `json:"currency"`
	Matches  bool      `json:"matches"`
}

func ToWalletResponse(w *entity.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance.Int64(),
		Currency:  w.Currency,
		UpdatedAt: w.UpdatedAt,
	}
}

func ToWalletTransactionResponse(t *entity.WalletTransaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:           t.ID,
		Type:         string(t.Type),
		Amount:       t.Amount.Int64(),
		BalanceAfter: t.BalanceAfter.Int64(),
		Currency:     t.Currency,
		Reference:    t.Reference,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

func ToWalletTransactionResponses(items []*entity.WalletTransaction) []WalletTransactionResponse {
	out := make([]WalletTransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, ToWalletTransactionResponse(t))
	}
	return out
}

func ToBalanceReportResponse(r *ledger.BalanceReport) BalanceReportResponse {
	return BalanceReportResponse{
		WalletID: r.WalletID,
		UserID:   r.UserID,
		Balance:  r.Balance.Int64(),
		Ledger:   r.Ledger.Int64(),
		Currency: r.Currency,
		Matches:  r.Balance == r.Ledger,
	}
}

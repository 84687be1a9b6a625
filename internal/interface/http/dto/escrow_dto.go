package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
)

type InitiateEscrowRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// GatewayCallback: тело webhook шлюза. Доверяем только ссылке на
// транзакцию, статус перепроверяется запросом verify.
type GatewayCallback struct {
	TxRef    string `json:"tx_ref"`
	TxRefAlt string `json:"txRef"`
	TrxRef   string `json:"trx_ref"`
	Status   string `json:"status"`
}

type SweepResponse struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
}

type EscrowResponse struct {
	ID            uuid.UUID  `json:"id"`
	JobID         uuid.UUID  `json:"job_id"`
	ContractID    uuid.UUID  `json:"contract_id"`
	ClientID      uuid.UUID  `json:"client_id"`
	FreelancerID  uuid.UUID  `json:"freelancer_id"`
	Amount        int64      `json:"amount"`
	PlatformFee   int64      `json:"platform_fee"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	TxRef         string     `json:"tx_ref"`
	CheckoutURL   *string    `json:"checkout_url,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ReleasedAt    *time.Time `json:"released_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ReconcileResponse struct {
	Outcome string          `json:"outcome"`
	Escrow  *EscrowResponse `json:"escrow,omitempty"`
}

func ToEscrowResponse(p *entity.EscrowPayment) EscrowResponse {
	return EscrowResponse{
		ID:            p.ID,
		JobID:         p.JobID,
		ContractID:    p.ContractID,
		ClientID:      p.ClientID,
		FreelancerID:  p.FreelancerID,
		Amount:        p.Amount.Int64(),
		PlatformFee:   p.PlatformFee.Int64(),
		Currency:      p.Currency,
		Status:        string(p.Status),
		TxRef:         p.TxRef,
		CheckoutURL:   p.CheckoutURL,
		PaidAt:        p.PaidAt,
		ReleasedAt:    p.ReleasedAt,
		RefundedAt:    p.RefundedAt,
		FailedAt:      p.FailedAt,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

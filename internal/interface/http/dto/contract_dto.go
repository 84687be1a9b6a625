package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
)

type ContractResponse struct {
	ID           uuid.UUID  `json:"id"`
	JobID        uuid.UUID  `json:"job_id"`
	ProposalID   uuid.UUID  `json:"proposal_id"`
	ClientID     uuid.UUID  `json:"client_id"`
	FreelancerID uuid.UUID  `json:"freelancer_id"`
	AgreedAmount int64      `json:"agreed_amount"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func ToContractResponse(c *entity.Contract) ContractResponse {
	return ContractResponse{
		ID:           c.ID,
		JobID:        c.JobID,
		ProposalID:   c.ProposalID,
		ClientID:     c.ClientID,
		FreelancerID: c.FreelancerID,
		AgreedAmount: c.AgreedAmount.Int64(),
		Currency:     c.Currency,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		CompletedAt:  c.CompletedAt,
		CancelledAt:  c.CancelledAt,
	}
}

func ToContractResponses(contracts []*entity.Contract) []ContractResponse {
	out := make([]ContractResponse, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, ToContractResponse(c))
	}
	return out
}

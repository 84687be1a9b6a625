package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
)

type SubmitProposalRequest struct {
	Message string `json:"message" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
}

// CounterOfferRequest: пустая сумма означает, что клиент предлагает
// работать по исходной цене фрилансера.
type CounterOfferRequest struct {
	Amount *int64 `json:"amount" binding:"omitempty,gt=0"`
}

type ProposalResponse struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"job_id"`
	FreelancerID   uuid.UUID `json:"freelancer_id"`
	Message        string    `json:"message"`
	InitialAmount  int64     `json:"initial_amount"`
	ProposedAmount int64     `json:"proposed_amount"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type AcceptProposalResponse struct {
	Proposal ProposalResponse `json:"proposal"`
	Contract ContractResponse `json:"contract"`
}

func ToProposalResponse(p *entity.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:             p.ID,
		JobID:          p.JobID,
		FreelancerID:   p.FreelancerID,
		Message:        p.Message,
		InitialAmount:  p.InitialAmount.Int64(),
		ProposedAmount: p.ProposedAmount.Int64(),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func ToProposalResponses(proposals []*entity.Proposal) []ProposalResponse {
	out := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, ToProposalResponse(p))
	}
	return out
}

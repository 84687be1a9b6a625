package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
)

type OpenDisputeRequest struct {
	EscrowID uuid.UUID `json:"escrow_id" binding:"required"`
	Type     string    `json:"type" binding:"required,oneof=non_delivery quality payment other"`
	Reason   string    `json:"reason" binding:"required,min=10"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Note    string `json:"note"`
}

type RejectDisputeRequest struct {
	Note string `json:"note" binding:"required"`
}

type DisputeResponse struct {
	ID             uuid.UUID  `json:"id"`
	EscrowID       uuid.UUID  `json:"escrow_id"`
	JobID          uuid.UUID  `json:"job_id"`
	ContractID     uuid.UUID  `json:"contract_id"`
	RaisedByID     uuid.UUID  `json:"raised_by_id"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason"`
	Resolution     *string    `json:"resolution,omitempty"`
	ResolutionNote *string    `json:"resolution_note,omitempty"`
	ResolvedByID   *uuid.UUID `json:"resolved_by_id,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	resp := DisputeResponse{
		ID:             d.ID,
		EscrowID:       d.EscrowPaymentID,
		JobID:          d.JobID,
		ContractID:     d.ContractID,
		RaisedByID:     d.RaisedByID,
		Type:           string(d.Type),
		Status:         string(d.Status),
		Reason:         d.Reason,
		ResolutionNote: d.ResolutionNote,
		ResolvedByID:   d.ResolvedByID,
		ResolvedAt:     d.ResolvedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Resolution != nil {
		r := string(*d.Resolution)
		resp.Resolution = &r
	}
	return resp
}

func ToDisputeResponses(disputes []*entity.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, ToDisputeResponse(d))
	}
	return out
}

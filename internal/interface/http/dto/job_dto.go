package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
)

// Суммы во всех запросах и ответах передаются в минимальных единицах валюты.
type JobRequest struct {
	Title        string `json:"title" binding:"required,max=200"`
	Description  string `json:"description" binding:"required"`
	Category     string `json:"category" binding:"max=100"`
	BudgetAmount int64  `json:"budget_amount" binding:"gte=0"`
	Currency     string `json:"currency" binding:"omitempty,len=3"`
}

type JobResponse struct {
	ID           uuid.UUID `json:"id"`
	ClientID     uuid.UUID `json:"client_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	BudgetAmount int64     `json:"budget_amount"`
	Budget       string    `json:"budget"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToJobResponse(j *entity.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		ClientID:     j.ClientID,
		Title:        j.Title,
		Description:  j.Description,
		Category:     j.Category,
		BudgetAmount: j.Budget.Amount.Int64(),
		Budget:       j.Budget.Amount.Major(),
		Currency:     j.Budget.Currency,
		Status:       string(j.Status),
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func ToJobResponses(jobs []*entity.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobResponse(j))
	}
	return out
}

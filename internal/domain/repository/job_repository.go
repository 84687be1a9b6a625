package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// Update сохраняет заказ, только если его статус в базе равен expected.
	Update(ctx context.Context, job *entity.Job, expected valueobject.JobStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, int, error)
}

type JobFilter struct {
	ClientID *uuid.UUID
	Status   *valueobject.JobStatus
	Limit    int
	Offset   int
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	Update(ctx context.Context, dispute *entity.Dispute, expected valueobject.DisputeStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	// FindOpenByEscrow возвращает открытый спор по платежу или nil, nil.
	FindOpenByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error)
	// FindLatestByEscrow возвращает последний спор по платежу или nil, nil.
	FindLatestByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error)
	List(ctx context.Context, filter DisputeFilter) ([]*entity.Dispute, int, error)
}

type DisputeFilter struct {
	// PartyID оставляет споры, где пользователь — сторона контракта.
	PartyID *uuid.UUID
	Status  *valueobject.DisputeStatus
	Limit   int
	Offset  int
}

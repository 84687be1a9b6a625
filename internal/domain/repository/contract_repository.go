package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type ContractRepository interface {
	Create(ctx context.Context, contract *entity.Contract) error
	Update(ctx context.Context, contract *entity.Contract, expected valueobject.ContractStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	// FindByJobID возвращает nil, nil, если контракта по заказу ещё нет.
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Contract, error)
	ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Contract, int, error)
}

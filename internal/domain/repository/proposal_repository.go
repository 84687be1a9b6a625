package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type ProposalRepository interface {
	Create(ctx context.Context, proposal *entity.Proposal) error
	Update(ctx context.Context, proposal *entity.Proposal, expected valueobject.ProposalStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Proposal, error)
	FindByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Proposal, error)
	// FindByJobAndFreelancer возвращает nil, nil, если отклика нет.
	FindByJobAndFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (*entity.Proposal, error)
	CountByJobID(ctx context.Context, jobID uuid.UUID) (int, error)
}

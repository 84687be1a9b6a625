package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

type EscrowRepository interface {
	Create(ctx context.Context, payment *entity.EscrowPayment) error
	Update(ctx context.Context, payment *entity.EscrowPayment, expected valueobject.EscrowStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error)
	FindByTxRefForUpdate(ctx context.Context, txRef string) (*entity.EscrowPayment, error)
	// FindLiveByContract возвращает последний платёж не в статусе FAILED или nil, nil.
	FindLiveByContract(ctx context.Context, contractID uuid.UUID) (*entity.EscrowPayment, error)
	// ListPendingCreatedBefore отдаёт PENDING платежи в порядке (created_at, id),
	// начиная строго после after. nil after означает первую страницу.
	ListPendingCreatedBefore(ctx context.Context, before time.Time, after *PendingCursor, limit int) ([]*entity.EscrowPayment, error)
}

// PendingCursor: позиция последнего просмотренного платежа.
type PendingCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

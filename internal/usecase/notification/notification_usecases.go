package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
)

type ListNotificationsUseCase struct {
	uow repository.UnitOfWork
}

func NewListNotificationsUseCase(uow repository.UnitOfWork) *ListNotificationsUseCase {
	return &ListNotificationsUseCase{uow: uow}
}

func (uc *ListNotificationsUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, unreadOnly bool, limit, offset int) ([]*entity.Notification, int, error) {
	limit, offset = pagination.Normalize(limit, offset)

	var (
		items []*entity.Notification
		total int
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, total, err = tx.Notifications().List(ctx, actor.ID, unreadOnly, limit, offset)
		return err
	})
	return items, total, err
}

type GetNotificationUseCase struct {
	uow repository.UnitOfWork
}

func NewGetNotificationUseCase(uow repository.UnitOfWork) *GetNotificationUseCase {
	return &GetNotificationUseCase{uow: uow}
}

func (uc *GetNotificationUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, id uuid.UUID) (*entity.Notification, error) {
	var n *entity.Notification
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = tx.Notifications().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !n.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

type MarkReadUseCase struct {
	uow repository.UnitOfWork
}

func NewMarkReadUseCase(uow repository.UnitOfWork) *MarkReadUseCase {
	return &MarkReadUseCase{uow: uow}
}

// Execute отмечает уведомление прочитанным. Повторный вызов ничего не меняет.
func (uc *MarkReadUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, id uuid.UUID) error {
	return uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.Notifications().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !n.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		return tx.Notifications().MarkRead(ctx, id, actor.ID)
	})
}

type MarkAllReadUseCase struct {
	uow repository.UnitOfWork
}

func NewMarkAllReadUseCase(uow repository.UnitOfWork) *MarkAllReadUseCase {
	return &MarkAllReadUseCase{uow: uow}
}

// Execute затрагивает только уведомления самого пользователя.
func (uc *MarkAllReadUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser) (int64, error) {
	var updated int64
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		updated, err = tx.Notifications().MarkAllRead(ctx, actor.ID)
		return err
	})
	return updated, err
}

type CountUnreadUseCase struct {
	uow repository.UnitOfWork
}

func NewCountUnreadUseCase(uow repository.UnitOfWork) *CountUnreadUseCase {
	return &CountUnreadUseCase{uow: uow}
}

func (uc *CountUnreadUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser) (int, error) {
	var count int
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		count, err = tx.Notifications().CountUnread(ctx, actor.ID)
		return err
	})
	return count, err
}

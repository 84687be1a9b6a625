package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/goroutine"
	"github.com/ignatzorin/engagement-backend/internal/logger"
)

// Publisher доставляет событие активным соединениям пользователя.
// Доставка не гарантируется.
type Publisher interface {
	Publish(userID uuid.UUID, event string, payload any) error
}

// Event: уведомление, которое нужно сохранить и отправить.
type Event struct {
	UserID  uuid.UUID
	Type    entity.NotificationType
	Title   string
	Message string
	Link    string
}

// Payload: тело real-time события.
type Payload struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Dispatcher struct {
	uow       repository.UnitOfWork
	publisher Publisher
}

func NewDispatcher(uow repository.UnitOfWork, publisher Publisher) *Dispatcher {
	return &Dispatcher{uow: uow, publisher: publisher}
}

// Stage сохраняет уведомления в текущей транзакции. Push уходит только после
// фиксации, поэтому откат транзакции не порождает ложных событий.
func (d *Dispatcher) Stage(ctx context.Context, tx repository.Tx, events ...Event) error {
	for _, ev := range events {
		n, err := entity.NewNotification(ev.UserID, ev.Type, ev.Title, ev.Message, ev.Link)
		if err != nil {
			return err
		}
		if err := tx.Notifications().Create(ctx, n); err != nil {
			return err
		}
		tx.AfterCommit(func() { d.push(n) })
	}
	return nil
}

// Emit сохраняет одно уведомление вне жизненного цикла и отправляет его.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) (*entity.Notification, error) {
	var created *entity.Notification
	err := d.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := entity.NewNotification(ev.UserID, ev.Type, ev.Title, ev.Message, ev.Link)
		if err != nil {
			return err
		}
		if err := tx.Notifications().Create(ctx, n); err != nil {
			return err
		}
		tx.AfterCommit(func() { d.push(n) })
		created = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (d *Dispatcher) push(n *entity.Notification) {
	if d.publisher == nil {
		return
	}
	payload := Payload{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt,
	}
	goroutine.SafeGo(func() {
		if err := d.publisher.Publish(n.UserID, string(n.Type), payload); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"user_id":         n.UserID,
				"notification_id": n.ID,
				"error":           err.Error(),
			}).Warn("notification push failed")
		}
	})
}

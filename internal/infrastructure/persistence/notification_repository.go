package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

const notificationColumns = `id, user_id, type, title, message, link, is_read, read_at, created_at`

type notificationRepo struct {
	tx *sqlx.Tx
}

func (r notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Link, n.IsRead, n.ReadAt, n.CreatedAt)
	if err != nil {
		return dbError(err, "не удалось создать уведомление")
	}
	return nil
}

func (r notificationRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	var row notificationRow
	if err := r.tx.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return nil, notFound(err, apperror.ErrNotificationNotFound, "не удалось получить уведомление")
	}
	return row.toEntity(), nil
}

func (r notificationRepo) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*entity.Notification, int, error) {
	cond := `user_id = $1`
	if unreadOnly {
		cond += ` AND is_read = FALSE`
	}

	var total int
	if err := r.tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE `+cond, userID); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать уведомления")
	}

	var rows []notificationRow
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.tx.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, 0, dbError(err, "не удалось получить уведомления")
	}
	out := make([]*entity.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, total, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`, id, userID, time.Now().UTC())
	if err != nil {
		return dbError(err, "не удалось отметить уведомление")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "не удалось отметить уведомление")
	}
	if n == 0 {
		return apperror.ErrNotificationNotFound
	}
	return nil
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND is_read = FALSE
	`, userID, time.Now().UTC())
	if err != nil {
		return 0, dbError(err, "не удалось отметить уведомления")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err, "не удалось отметить уведомления")
	}
	return n, nil
}

func (r notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, dbError(err, "не удалось посчитать уведомления")
	}
	return n, nil
}

type notificationRow struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	Type      string     `db:"type"`
	Title     string     `db:"title"`
	Message   string     `db:"message"`
	Link      string     `db:"link"`
	IsRead    bool       `db:"is_read"`
	ReadAt    *time.Time `db:"read_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func (r notificationRow) toEntity() *entity.Notification {
	return &entity.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      entity.NotificationType(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Link:      r.Link,
		IsRead:    r.IsRead,
		ReadAt:    r.ReadAt,
		CreatedAt: r.CreatedAt,
	}
}

package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

const jobColumns = `id, client_id, title, description, category, budget_amount, budget_currency,
	status, created_at, updated_at, deleted_at`

type jobRepo struct {
	tx *sqlx.Tx
}

func (r jobRepo) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.tx.ExecContext(ctx, query,
		job.ID, job.ClientID, job.Title, job.Description, job.Category,
		int64(job.Budget.Amount), job.Budget.Currency, string(job.Status),
		job.CreatedAt, job.UpdatedAt, job.DeletedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать заказ")
	}
	return nil
}

func (r jobRepo) Update(ctx context.Context, job *entity.Job, expected valueobject.JobStatus) error {
	query := `
		UPDATE jobs SET title = $3, description = $4, category = $5, budget_amount = $6,
		budget_currency = $7, status = $8, updated_at = $9, deleted_at = $10
		WHERE id = $1 AND status = $2
	`
	res, err := r.tx.ExecContext(ctx, query,
		job.ID, string(expected), job.Title, job.Description, job.Category,
		int64(job.Budget.Amount), job.Budget.Currency, string(job.Status),
		job.UpdatedAt, job.DeletedAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить заказ")
	}
	return exactlyOne(res, "не удалось обновить заказ")
}

func (r jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.find(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r jobRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.find(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
}

func (r jobRepo) find(ctx context.Context, query string, id uuid.UUID) (*entity.Job, error) {
	var row jobRow
	if err := r.tx.GetContext(ctx, &row, query, id); err != nil {
		return nil, notFound(err, apperror.ErrJobNotFound, "не удалось получить заказ")
	}
	return row.toEntity(), nil
}

func (r jobRepo) List(ctx context.Context, filter repository.JobFilter) ([]*entity.Job, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM jobs WHERE `+cond, args...); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать заказы")
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, cond, len(args)-1, len(args))

	var rows []jobRow
	if err := r.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, dbError(err, "не удалось получить заказы")
	}
	jobs := make([]*entity.Job, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].toEntity())
	}
	return jobs, total, nil
}

type jobRow struct {
	ID             uuid.UUID  `db:"id"`
	ClientID       uuid.UUID  `db:"client_id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	Category       string     `db:"category"`
	BudgetAmount   int64      `db:"budget_amount"`
	BudgetCurrency string     `db:"budget_currency"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at"`
}

func (r jobRow) toEntity() *entity.Job {
	return &entity.Job{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Budget: valueobject.Budget{
			Amount:   valueobject.Money(r.BudgetAmount),
			Currency: r.BudgetCurrency,
		},
		Status:    valueobject.JobStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		DeletedAt: r.DeletedAt,
	}
}

package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

const contractColumns = `id, job_id, proposal_id, client_id, freelancer_id, agreed_amount, currency,
	status, created_at, updated_at, completed_at, cancelled_at`

type contractRepo struct {
	tx *sqlx.Tx
}

func (r contractRepo) Create(ctx context.Context, c *entity.Contract) error {
	query := `
		INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.tx.ExecContext(ctx, query,
		c.ID, c.JobID, c.ProposalID, c.ClientID, c.FreelancerID,
		int64(c.AgreedAmount), c.Currency, string(c.Status),
		c.CreatedAt, c.UpdatedAt, c.CompletedAt, c.CancelledAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать контракт")
	}
	return nil
}

// Update меняет только изменяемые поля: job_id и proposal_id контракта неизменны.
func (r contractRepo) Update(ctx context.Context, c *entity.Contract, expected valueobject.ContractStatus) error {
	query := `
		UPDATE contracts SET status = $3, updated_at = $4, completed_at = $5, cancelled_at = $6
		WHERE id = $1 AND status = $2
	`
	res, err := r.tx.ExecContext(ctx, query, c.ID, string(expected), string(c.Status), c.UpdatedAt, c.CompletedAt, c.CancelledAt)
	if err != nil {
		return dbError(err, "не удалось обновить контракт")
	}
	return exactlyOne(res, "не удалось обновить контракт")
}

func (r contractRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

func (r contractRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (r contractRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) (*entity.Contract, error) {
	c, err := r.get(ctx, `SELECT `+contractColumns+` FROM contracts WHERE job_id = $1`, jobID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return c, err
}

func (r contractRepo) get(ctx context.Context, query string, args ...interface{}) (*entity.Contract, error) {
	var row contractRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err, apperror.ErrContractNotFound, "не удалось получить контракт")
	}
	return row.toEntity(), nil
}

func (r contractRepo) ListByParty(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Contract, int, error) {
	var total int
	if err := r.tx.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM contracts WHERE client_id = $1 OR freelancer_id = $1`, userID); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать контракты")
	}

	var rows []contractRow
	query := `SELECT ` + contractColumns + ` FROM contracts
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.tx.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, 0, dbError(err, "не удалось получить контракты")
	}
	out := make([]*entity.Contract, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, total, nil
}

type contractRow struct {
	ID           uuid.UUID  `db:"id"`
	JobID        uuid.UUID  `db:"job_id"`
	ProposalID   uuid.UUID  `db:"proposal_id"`
	ClientID     uuid.UUID  `db:"client_id"`
	FreelancerID uuid.UUID  `db:"freelancer_id"`
	AgreedAmount int64      `db:"agreed_amount"`
	Currency     string     `db:"currency"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	CancelledAt  *time.Time `db:"cancelled_at"`
}

func (r contractRow) toEntity() *entity.Contract {
	return &entity.Contract{
		ID:           r.ID,
		JobID:        r.JobID,
		ProposalID:   r.ProposalID,
		ClientID:     r.ClientID,
		FreelancerID: r.FreelancerID,
		AgreedAmount: valueobject.Money(r.AgreedAmount),
		Currency:     r.Currency,
		Status:       valueobject.ContractStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  r.CompletedAt,
		CancelledAt:  r.CancelledAt,
	}
}

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

const proposalColumns = `id, job_id, freelancer_id, message, initial_amount, proposed_amount,
	status, created_at, updated_at`

type proposalRepo struct {
	tx *sqlx.Tx
}

func (r proposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.tx.ExecContext(ctx, query,
		p.ID, p.JobID, p.FreelancerID, p.Message,
		int64(p.InitialAmount), int64(p.ProposedAmount), string(p.Status),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать предложение")
	}
	return nil
}

func (r proposalRepo) Update(ctx context.Context, p *entity.Proposal, expected valueobject.ProposalStatus) error {
	query := `
		UPDATE proposals SET proposed_amount = $3, status = $4, updated_at = $5
		WHERE id = $1 AND status = $2
	`
	res, err := r.tx.ExecContext(ctx, query, p.ID, string(expected), int64(p.ProposedAmount), string(p.Status), p.UpdatedAt)
	if err != nil {
		return dbError(err, "не удалось обновить предложение")
	}
	return exactlyOne(res, "не удалось обновить предложение")
}

func (r proposalRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
}

func (r proposalRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Proposal, error) {
	return r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id)
}

func (r proposalRepo) get(ctx context.Context, query string, args ...interface{}) (*entity.Proposal, error) {
	var row proposalRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err, apperror.ErrProposalNotFound, "не удалось получить предложение")
	}
	return row.toEntity(), nil
}

func (r proposalRepo) FindByJobID(ctx context.Context, jobID uuid.UUID) ([]*entity.Proposal, error) {
	return r.list(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
}

func (r proposalRepo) FindByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Proposal, error) {
	return r.list(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE freelancer_id = $1 ORDER BY created_at DESC`, freelancerID)
}

func (r proposalRepo) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Proposal, error) {
	var rows []proposalRow
	if err := r.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError(err, "не удалось получить предложения")
	}
	out := make([]*entity.Proposal, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (r proposalRepo) FindByJobAndFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (*entity.Proposal, error) {
	p, err := r.get(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE job_id = $1 AND freelancer_id = $2`, jobID, freelancerID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return p, err
}

func (r proposalRepo) CountByJobID(ctx context.Context, jobID uuid.UUID) (int, error) {
	var n int
	if err := r.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM proposals WHERE job_id = $1`, jobID); err != nil {
		return 0, dbError(err, "не удалось посчитать предложения")
	}
	return n, nil
}

type proposalRow struct {
	ID             uuid.UUID `db:"id"`
	JobID          uuid.UUID `db:"job_id"`
	FreelancerID   uuid.UUID `db:"freelancer_id"`
	Message        string    `db:"message"`
	InitialAmount  int64     `db:"initial_amount"`
	ProposedAmount int64     `db:"proposed_amount"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r proposalRow) toEntity() *entity.Proposal {
	return &entity.Proposal{
		ID:             r.ID,
		JobID:          r.JobID,
		FreelancerID:   r.FreelancerID,
		Message:        r.Message,
		InitialAmount:  valueobject.Money(r.InitialAmount),
		ProposedAmount: valueobject.Money(r.ProposedAmount),
		Status:         valueobject.ProposalStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

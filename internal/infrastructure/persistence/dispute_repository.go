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

const disputeColumns = `d.id, d.escrow_payment_id, d.job_id, d.contract_id, d.raised_by_id, d.type, d.status,
	d.reason, d.resolution, d.resolution_note, d.resolved_by_id, d.resolved_at, d.created_at, d.updated_at`

type disputeRepo struct {
	tx *sqlx.Tx
}

func (r disputeRepo) Create(ctx context.Context, d *entity.Dispute) error {
	query := `
		INSERT INTO escrow_disputes (id, escrow_payment_id, job_id, contract_id, raised_by_id, type, status,
		reason, resolution, resolution_note, resolved_by_id, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.tx.ExecContext(ctx, query,
		d.ID, d.EscrowPaymentID, d.JobID, d.ContractID, d.RaisedByID, string(d.Type), string(d.Status),
		d.Reason, outcomeValue(d.Resolution), d.ResolutionNote, d.ResolvedByID, d.ResolvedAt,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать спор")
	}
	return nil
}

func (r disputeRepo) Update(ctx context.Context, d *entity.Dispute, expected valueobject.DisputeStatus) error {
	query := `
		UPDATE escrow_disputes SET status = $3, resolution = $4, resolution_note = $5,
		resolved_by_id = $6, resolved_at = $7, updated_at = $8
		WHERE id = $1 AND status = $2
	`
	res, err := r.tx.ExecContext(ctx, query,
		d.ID, string(expected), string(d.Status), outcomeValue(d.Resolution),
		d.ResolutionNote, d.ResolvedByID, d.ResolvedAt, d.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить спор")
	}
	return exactlyOne(res, "не удалось обновить спор")
}

func (r disputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM escrow_disputes d WHERE d.id = $1`, id)
}

func (r disputeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.get(ctx, `SELECT `+disputeColumns+` FROM escrow_disputes d WHERE d.id = $1 FOR UPDATE`, id)
}

func (r disputeRepo) FindOpenByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error) {
	return r.optional(ctx, `SELECT `+disputeColumns+` FROM escrow_disputes d
		WHERE d.escrow_payment_id = $1 AND d.status = 'open'`, escrowID)
}

func (r disputeRepo) FindLatestByEscrow(ctx context.Context, escrowID uuid.UUID) (*entity.Dispute, error) {
	return r.optional(ctx, `SELECT `+disputeColumns+` FROM escrow_disputes d
		WHERE d.escrow_payment_id = $1 ORDER BY d.created_at DESC LIMIT 1`, escrowID)
}

func (r disputeRepo) List(ctx context.Context, filter repository.DisputeFilter) ([]*entity.Dispute, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.PartyID != nil {
		args = append(args, *filter.PartyID)
		where = append(where, fmt.Sprintf("(c.client_id = $%d OR c.freelancer_id = $%d)", len(args), len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}
	from := `FROM escrow_disputes d JOIN contracts c ON c.id = d.contract_id`
	if len(where) > 0 {
		from += ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := r.tx.GetContext(ctx, &total, `SELECT COUNT(*) `+from, args...); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать споры")
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d`,
		disputeColumns, from, len(args)-1, len(args))
	var rows []disputeRow
	if err := r.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, dbError(err, "не удалось получить споры")
	}
	out := make([]*entity.Dispute, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, total, nil
}

func (r disputeRepo) get(ctx context.Context, query string, args ...interface{}) (*entity.Dispute, error) {
	var row disputeRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err, apperror.ErrDisputeNotFound, "не удалось получить спор")
	}
	return row.toEntity(), nil
}

func (r disputeRepo) optional(ctx context.Context, query string, args ...interface{}) (*entity.Dispute, error) {
	d, err := r.get(ctx, query, args...)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return d, err
}

func outcomeValue(o *valueobject.DisputeOutcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}

type disputeRow struct {
	ID              uuid.UUID  `db:"id"`
	EscrowPaymentID uuid.UUID  `db:"escrow_payment_id"`
	JobID           uuid.UUID  `db:"job_id"`
	ContractID      uuid.UUID  `db:"contract_id"`
	RaisedByID      uuid.UUID  `db:"raised_by_id"`
	Type            string     `db:"type"`
	Status          string     `db:"status"`
	Reason          string     `db:"reason"`
	Resolution      *string    `db:"resolution"`
	ResolutionNote  *string    `db:"resolution_note"`
	ResolvedByID    *uuid.UUID `db:"resolved_by_id"`
	ResolvedAt      *time.Time `db:"resolved_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (r disputeRow) toEntity() *entity.Dispute {
	d := &entity.Dispute{
		ID:              r.ID,
		EscrowPaymentID: r.EscrowPaymentID,
		JobID:           r.JobID,
		ContractID:      r.ContractID,
		RaisedByID:      r.RaisedByID,
		Type:            valueobject.DisputeType(r.Type),
		Status:          valueobject.DisputeStatus(r.Status),
		Reason:          r.Reason,
		ResolutionNote:  r.ResolutionNote,
		ResolvedByID:    r.ResolvedByID,
		ResolvedAt:      r.ResolvedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Resolution != nil {
		o := valueobject.DisputeOutcome(*r.Resolution)
		d.Resolution = &o
	}
	return d
}

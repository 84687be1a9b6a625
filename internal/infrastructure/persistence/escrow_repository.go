package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

const escrowColumns = `id, job_id, contract_id, client_id, freelancer_id, amount, platform_fee, currency,
	status, tx_ref, checkout_url, paid_at, released_at, refunded_at, failed_at, failure_reason,
	created_at, updated_at`

type escrowRepo struct {
	tx *sqlx.Tx
}

func (r escrowRepo) Create(ctx context.Context, e *entity.EscrowPayment) error {
	query := `
		INSERT INTO escrow_payments (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := r.tx.ExecContext(ctx, query,
		e.ID, e.JobID, e.ContractID, e.ClientID, e.FreelancerID,
		int64(e.Amount), int64(e.PlatformFee), e.Currency, string(e.Status), e.TxRef,
		e.CheckoutURL, e.PaidAt, e.ReleasedAt, e.RefundedAt, e.FailedAt, e.FailureReason,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось создать платёж эскроу")
	}
	return nil
}

func (r escrowRepo) Update(ctx context.Context, e *entity.EscrowPayment, expected valueobject.EscrowStatus) error {
	query := `
		UPDATE escrow_payments SET status = $3, checkout_url = $4, paid_at = $5, released_at = $6,
		refunded_at = $7, failed_at = $8, failure_reason = $9, updated_at = $10
		WHERE id = $1 AND status = $2
	`
	res, err := r.tx.ExecContext(ctx, query,
		e.ID, string(expected), string(e.Status), e.CheckoutURL,
		e.PaidAt, e.ReleasedAt, e.RefundedAt, e.FailedAt, e.FailureReason, e.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось обновить платёж эскроу")
	}
	return exactlyOne(res, "не удалось обновить платёж эскроу")
}

func (r escrowRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error) {
	return r.get(ctx, `SELECT `+escrowColumns+` FROM escrow_payments WHERE id = $1`, id)
}

func (r escrowRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.EscrowPayment, error) {
	return r.get(ctx, `SELECT `+escrowColumns+` FROM escrow_payments WHERE id = $1 FOR UPDATE`, id)
}

func (r escrowRepo) FindByTxRefForUpdate(ctx context.Context, txRef string) (*entity.EscrowPayment, error) {
	return r.get(ctx, `SELECT `+escrowColumns+` FROM escrow_payments WHERE tx_ref = $1 FOR UPDATE`, txRef)
}

func (r escrowRepo) FindLiveByContract(ctx context.Context, contractID uuid.UUID) (*entity.EscrowPayment, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_payments
		WHERE contract_id = $1 AND status <> 'failed'
		ORDER BY created_at DESC LIMIT 1`
	e, err := r.get(ctx, query, contractID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return e, err
}

func (r escrowRepo) ListPendingCreatedBefore(ctx context.Context, before time.Time, after *repository.PendingCursor, limit int) ([]*entity.EscrowPayment, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_payments
		WHERE status = 'pending' AND created_at < $1`
	args := []interface{}{before}
	if after != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var rows []escrowRow
	if err := r.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, dbError(err, "не удалось получить ожидающие платежи")
	}
	out := make([]*entity.EscrowPayment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (r escrowRepo) get(ctx context.Context, query string, args ...interface{}) (*entity.EscrowPayment, error) {
	var row escrowRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		return nil, notFound(err, apperror.ErrEscrowNotFound, "не удалось получить платёж эскроу")
	}
	return row.toEntity(), nil
}

type escrowRow struct {
	ID            uuid.UUID  `db:"id"`
	JobID         uuid.UUID  `db:"job_id"`
	ContractID    uuid.UUID  `db:"contract_id"`
	ClientID      uuid.UUID  `db:"client_id"`
	FreelancerID  uuid.UUID  `db:"freelancer_id"`
	Amount        int64      `db:"amount"`
	PlatformFee   int64      `db:"platform_fee"`
	Currency      string     `db:"currency"`
	Status        string     `db:"status"`
	TxRef         string     `db:"tx_ref"`
	CheckoutURL   *string    `db:"checkout_url"`
	PaidAt        *time.Time `db:"paid_at"`
	ReleasedAt    *time.Time `db:"released_at"`
	RefundedAt    *time.Time `db:"refunded_at"`
	FailedAt      *time.Time `db:"failed_at"`
	FailureReason *string    `db:"failure_reason"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r escrowRow) toEntity() *entity.EscrowPayment {
	return &entity.EscrowPayment{
		ID:            r.ID,
		JobID:         r.JobID,
		ContractID:    r.ContractID,
		ClientID:      r.ClientID,
		FreelancerID:  r.FreelancerID,
		Amount:        valueobject.Money(r.Amount),
		PlatformFee:   valueobject.Money(r.PlatformFee),
		Currency:      r.Currency,
		Status:        valueobject.EscrowStatus(r.Status),
		TxRef:         r.TxRef,
		CheckoutURL:   r.CheckoutURL,
		PaidAt:        r.PaidAt,
		ReleasedAt:    r.ReleasedAt,
		RefundedAt:    r.RefundedAt,
		FailedAt:      r.FailedAt,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

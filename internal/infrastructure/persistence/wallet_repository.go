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

const (
	walletColumns      = `id, user_id, balance, currency, created_at, updated_at`
	walletTxColumns    = `id, wallet_id, type, amount, balance_after, currency, reference, description, created_at`
	walletTxInsertArgs = `$1, $2, $3, $4, $5, $6, $7, $8, $9`
)

type walletRepo struct {
	tx *sqlx.Tx
}

// GetOrCreateForUpdate создаёт кошелёк при первом обращении. ON CONFLICT
// делает вставку безопасной при параллельных первых проводках.
func (r walletRepo) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*entity.Wallet, error) {
	w := entity.NewWallet(userID, currency)
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO wallets (`+walletColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`, w.ID, w.UserID, int64(w.Balance), w.Currency, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return nil, dbError(err, "не удалось создать кошелёк")
	}

	var row walletRow
	if err := r.tx.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, notFound(err, apperror.ErrWalletNotFound, "не удалось получить кошелёк")
	}
	return row.toEntity(), nil
}

func (r walletRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Wallet, error) {
	var row walletRow
	if err := r.tx.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID); err != nil {
		return nil, notFound(err, apperror.ErrWalletNotFound, "не удалось получить кошелёк")
	}
	return row.toEntity(), nil
}

func (r walletRepo) UpdateBalance(ctx context.Context, w *entity.Wallet) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`,
		w.ID, int64(w.Balance), w.UpdatedAt)
	if err != nil {
		return dbError(err, "не удалось обновить баланс")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "не удалось обновить баланс")
	}
	if n == 0 {
		return apperror.ErrWalletNotFound
	}
	return nil
}

func (r walletRepo) InsertTransaction(ctx context.Context, t *entity.WalletTransaction) (bool, error) {
	res, err := r.tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (`+walletTxColumns+`) VALUES (`+walletTxInsertArgs+`)
		ON CONFLICT (wallet_id, reference) DO NOTHING
	`, t.ID, t.WalletID, string(t.Type), int64(t.Amount), int64(t.BalanceAfter),
		t.Currency, t.Reference, t.Description, t.CreatedAt)
	if err != nil {
		return false, dbError(err, "не удалось записать проводку")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err, "не удалось записать проводку")
	}
	return n == 1, nil
}

func (r walletRepo) FindTransactionByReference(ctx context.Context, walletID uuid.UUID, reference string) (*entity.WalletTransaction, error) {
	var row walletTxRow
	err := r.tx.GetContext(ctx, &row,
		`SELECT `+walletTxColumns+` FROM wallet_transactions WHERE wallet_id = $1 AND reference = $2`,
		walletID, reference)
	if err != nil {
		err = notFound(err, apperror.ErrWalletNotFound, "не удалось получить проводку")
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity(), nil
}

func (r walletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error) {
	var total int
	if err := r.tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID); err != nil {
		return nil, 0, dbError(err, "не удалось посчитать проводки")
	}

	var rows []walletTxRow
	if err := r.tx.SelectContext(ctx, &rows, `SELECT `+walletTxColumns+` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, walletID, limit, offset); err != nil {
		return nil, 0, dbError(err, "не удалось получить проводки")
	}
	out := make([]*entity.WalletTransaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, total, nil
}

func (r walletRepo) SumTransactions(ctx context.Context, walletID uuid.UUID) (valueobject.Money, error) {
	var sum int64
	if err := r.tx.GetContext(ctx, &sum, `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE wallet_id = $1`, walletID); err != nil {
		return 0, dbError(err, "не удалось пересчитать баланс")
	}
	return valueobject.Money(sum), nil
}

type walletRow struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Balance   int64     `db:"balance"`
	Currency  string    `db:"currency"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r walletRow) toEntity() *entity.Wallet {
	return &entity.Wallet{
		ID:        r.ID,
		UserID:    r.UserID,
		Balance:   valueobject.Money(r.Balance),
		Currency:  r.Currency,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type walletTxRow struct {
	ID           uuid.UUID `db:"id"`
	WalletID     uuid.UUID `db:"wallet_id"`
	Type         string    `db:"type"`
	Amount       int64     `db:"amount"`
	BalanceAfter int64     `db:"balance_after"`
	Currency     string    `db:"currency"`
	Reference    string    `db:"reference"`
	Description  string    `db:"description"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r walletTxRow) toEntity() *entity.WalletTransaction {
	return &entity.WalletTransaction{
		ID:           r.ID,
		WalletID:     r.WalletID,
		Type:         valueobject.TransactionType(r.Type),
		Amount:       valueobject.Money(r.Amount),
		BalanceAfter: valueobject.Money(r.BalanceAfter),
		Currency:     r.Currency,
		Reference:    r.Reference,
		Description:  r.Description,
		CreatedAt:    r.CreatedAt,
	}
}

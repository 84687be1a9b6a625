package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// UnitOfWork выполняет сценарии в транзакции PostgreSQL с уровнем READ COMMITTED.
// Сериализация по агрегатам обеспечивается блокировками строк (FOR UPDATE)
// и условием на статус в UPDATE.
type UnitOfWork struct {
	db *sqlx.DB
}

func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	sqlTx, err := u.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начать транзакцию")
	}

	tx := &txRepos{tx: sqlTx}
	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Log.WithError(rbErr).Warn("rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать транзакцию")
	}

	for i, hook := range tx.hooks {
		runHook(i, hook)
	}
	return nil
}

func runHook(i int, hook func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{
				"hook":  i,
				"panic": fmt.Sprint(r),
			}).Error("after-commit hook panicked")
		}
	}()
	hook()
}

type txRepos struct {
	tx    *sqlx.Tx
	hooks []func()
}

func (t *txRepos) Jobs() repository.JobRepository                   { return jobRepo{tx: t.tx} }
func (t *txRepos) Proposals() repository.ProposalRepository         { return proposalRepo{tx: t.tx} }
func (t *txRepos) Contracts() repository.ContractRepository         { return contractRepo{tx: t.tx} }
func (t *txRepos) Escrows() repository.EscrowRepository             { return escrowRepo{tx: t.tx} }
func (t *txRepos) Disputes() repository.DisputeRepository           { return disputeRepo{tx: t.tx} }
func (t *txRepos) Wallets() repository.WalletRepository             { return walletRepo{tx: t.tx} }
func (t *txRepos) Notifications() repository.NotificationRepository { return notificationRepo{tx: t.tx} }

func (t *txRepos) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

var _ repository.UnitOfWork = (*UnitOfWork)(nil)

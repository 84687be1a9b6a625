// Package memstore: хранилище в памяти с теми же гарантиями, что и Postgres-реализация:
// транзакции сериализуются, при ошибке состояние откатывается, уникальные
// ограничения и CAS по статусу соблюдаются.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
)

type state struct {
	jobs          map[uuid.UUID]entity.Job
	proposals     map[uuid.UUID]entity.Proposal
	contracts     map[uuid.UUID]entity.Contract
	escrows       map[uuid.UUID]entity.EscrowPayment
	disputes      map[uuid.UUID]entity.Dispute
	wallets       map[uuid.UUID]entity.Wallet
	walletTxs     []entity.WalletTransaction
	notifications map[uuid.UUID]entity.Notification
}

func newState() *state {
	return &state{
		jobs:          make(map[uuid.UUID]entity.Job),
		proposals:     make(map[uuid.UUID]entity.Proposal),
		contracts:     make(map[uuid.UUID]entity.Contract),
		escrows:       make(map[uuid.UUID]entity.EscrowPayment),
		disputes:      make(map[uuid.UUID]entity.Dispute),
		wallets:       make(map[uuid.UUID]entity.Wallet),
		notifications: make(map[uuid.UUID]entity.Notification),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		jobs:          cloneMap(s.jobs),
		proposals:     cloneMap(s.proposals),
		contracts:     cloneMap(s.contracts),
		escrows:       cloneMap(s.escrows),
		disputes:      cloneMap(s.disputes),
		wallets:       cloneMap(s.wallets),
		walletTxs:     append([]entity.WalletTransaction(nil), s.walletTxs...),
		notifications: cloneMap(s.notifications),
	}
}

// Store реализует repository.UnitOfWork в памяти.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Do выполняет fn эксклюзивно. Все транзакции сериализуются одним мьютексом.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	tx := &memTx{st: s.st}

	err := fn(ctx, tx)
	if err != nil {
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

type memTx struct {
	st    *state
	hooks []func()
}

func (t *memTx) Jobs() repository.JobRepository                   { return jobRepo{st: t.st} }
func (t *memTx) Proposals() repository.ProposalRepository         { return proposalRepo{st: t.st} }
func (t *memTx) Contracts() repository.ContractRepository         { return contractRepo{st: t.st} }
func (t *memTx) Escrows() repository.EscrowRepository             { return escrowRepo{st: t.st} }
func (t *memTx) Disputes() repository.DisputeRepository           { return disputeRepo{st: t.st} }
func (t *memTx) Wallets() repository.WalletRepository             { return walletRepo{st: t.st} }
func (t *memTx) Notifications() repository.NotificationRepository { return notificationRepo{st: t.st} }

func (t *memTx) AfterCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package repository

import "context"

// Tx: набор репозиториев, работающих внутри одной транзакции.
type Tx interface {
	Jobs() JobRepository
	Proposals() ProposalRepository
	Contracts() ContractRepository
	Escrows() EscrowRepository
	Disputes() DisputeRepository
	Wallets() WalletRepository
	Notifications() NotificationRepository

	// AfterCommit регистрирует действие, которое выполнится только после
	// успешной фиксации транзакции.
	AfterCommit(fn func())
}

// UnitOfWork выполняет fn атомарно: либо все записи фиксируются, либо ни одной.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

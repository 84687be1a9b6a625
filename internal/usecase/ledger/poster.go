package ledger

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// Posting: одна проводка по кошельку пользователя.
type Posting struct {
	UserID      uuid.UUID
	Type        valueobject.TransactionType
	Amount      valueobject.Money
	Currency    string
	Reference   string
	Description string
}

// Poster: единственный путь изменения баланса кошелька.
type Poster struct {
	metrics *metrics.Registry
}

func NewPoster(m *metrics.Registry) *Poster {
	return &Poster{metrics: m}
}

// Post проводит операцию в текущей транзакции под блокировкой строки кошелька.
// Повтор с той же ссылкой ничего не меняет и возвращает исходную запись.
func (p *Poster) Post(ctx context.Context, tx repository.Tx, posting Posting) (*entity.WalletTransaction, error) {
	if posting.UserID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeInvariantViolation, "проводка без владельца кошелька")
	}

	wallets := tx.Wallets()
	wallet, err := wallets.GetOrCreateForUpdate(ctx, posting.UserID, posting.Currency)
	if err != nil {
		return nil, err
	}

	existing, err := wallets.FindTransactionByReference(ctx, wallet.ID, posting.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		p.observe(posting.Type, "duplicate")
		return existing, nil
	}

	entry, err := wallet.Post(posting.Type, posting.Amount, posting.Currency, posting.Reference, posting.Description)
	if err != nil {
		p.observe(posting.Type, "rejected")
		return nil, err
	}

	inserted, err := wallets.InsertTransaction(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		p.observe(posting.Type, "duplicate")
		return wallets.FindTransactionByReference(ctx, wallet.ID, posting.Reference)
	}
	if err := wallets.UpdateBalance(ctx, wallet); err != nil {
		return nil, err
	}

	p.observe(posting.Type, "posted")
	logger.Log.WithFields(logrus.Fields{
		"wallet_id": wallet.ID,
		"user_id":   wallet.UserID,
		"type":      posting.Type,
		"amount":    entry.Amount.Major(),
		"reference": posting.Reference,
	}).Info("wallet posting")
	return entry, nil
}

// PostMany блокирует кошельки в порядке возрастания идентификатора владельца,
// поэтому параллельные многокошельковые проводки не взаимоблокируются.
func (p *Poster) PostMany(ctx context.Context, tx repository.Tx, postings ...Posting) error {
	ordered := make([]Posting, len(postings))
	copy(ordered, postings)
	sort.SliceStable(ordered, func(i, k int) bool {
		return bytes.Compare(ordered[i].UserID[:], ordered[k].UserID[:]) < 0
	})

	for _, posting := range ordered {
		if _, err := p.Post(ctx, tx, posting); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poster) observe(txType valueobject.TransactionType, result string) {
	if p.metrics != nil {
		p.metrics.Posting(string(txType), result)
	}
}

package escrow

import (
	"context"
	"time"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
)

// Gateway: внешний платёжный шлюз, принимающий деньги клиента на эскроу.
type Gateway interface {
	// InitiateCheckout регистрирует платёж и возвращает ссылку на оплату.
	// Повтор с тем же TxRef не создаёт второй платёж.
	InitiateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	// Verify запрашивает у шлюза фактический статус транзакции.
	Verify(ctx context.Context, txRef string) (*Verification, error)
}

type CheckoutRequest struct {
	TxRef       string
	Amount      valueobject.Money
	Currency    string
	Title       string
	Description string
}

type Verification struct {
	TxRef      string
	Status     valueobject.GatewayStatus
	PaidAmount valueobject.Money
	Currency   string
}

type Config struct {
	// FeePercent: комиссия платформы в процентах от суммы эскроу.
	FeePercent int64
	// PendingTTL: сколько платёж может ждать оплаты, прежде чем сверка закроет его.
	PendingTTL time.Duration
	SweepBatch int
}

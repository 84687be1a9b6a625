package valueobject

import "github.com/google/uuid"

// PlatformUserID: системный пользователь, которому принадлежит кошелёк комиссий платформы.
var PlatformUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type TransactionType string

const (
	TransactionEscrowRelease TransactionType = "escrow_release"
	TransactionEscrowRefund  TransactionType = "escrow_refund"
	TransactionPlatformFee   TransactionType = "platform_fee"
	TransactionWithdrawal    TransactionType = "withdrawal"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionEscrowRelease, TransactionEscrowRefund, TransactionPlatformFee, TransactionWithdrawal:
		return true
	}
	return false
}

// IsDebit сообщает, уменьшает ли проводка баланс.
func (t TransactionType) IsDebit() bool {
	return t == TransactionWithdrawal
}

// Signed возвращает сумму со знаком направления проводки.
func (t TransactionType) Signed(amount Money) Money {
	if t.IsDebit() {
		return -amount
	}
	return amount
}

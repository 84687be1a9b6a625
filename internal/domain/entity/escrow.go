package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type EscrowPayment struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	ContractID    uuid.UUID
	ClientID      uuid.UUID
	FreelancerID  uuid.UUID
	Amount        valueobject.Money
	PlatformFee   valueobject.Money
	Currency      string
	Status        valueobject.EscrowStatus
	TxRef         string
	CheckoutURL   *string
	PaidAt        *time.Time
	ReleasedAt    *time.Time
	RefundedAt    *time.Time
	FailedAt      *time.Time
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTxRef выпускает уникальную ссылку для платёжного шлюза.
func NewTxRef() string {
	return "esc-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEscrowPayment создаёт ожидающий платёж по контракту.
func NewEscrowPayment(contract *Contract, amount valueobject.Money, feePercent int64, txRef string) (*EscrowPayment, error) {
	if amount != contract.AgreedAmount {
		return nil, apperror.Validation(fmt.Sprintf("сумма платежа должна совпадать с суммой контракта (%s)", contract.AgreedAmount.Major()))
	}
	if feePercent < 0 || feePercent >= 100 {
		return nil, apperror.New(apperror.ErrCodeInvariantViolation, "некорректный процент комиссии платформы")
	}

	now := time.Now().UTC()
	return &EscrowPayment{
		ID:           uuid.New(),
		JobID:        contract.JobID,
		ContractID:   contract.ID,
		ClientID:     contract.ClientID,
		FreelancerID: contract.FreelancerID,
		Amount:       amount,
		PlatformFee:  amount.Percent(feePercent),
		Currency:     contract.Currency,
		Status:       valueobject.EscrowStatusPending,
		TxRef:        txRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (e *EscrowPayment) apply(event valueobject.EscrowEvent) (time.Time, error) {
	next, err := e.Status.Apply(event)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now().UTC()
	e.Status = next
	e.UpdatedAt = now
	return now, nil
}

func (e *EscrowPayment) MarkPaid() error {
	now, err := e.apply(valueobject.EscrowEventPay)
	if err != nil {
		return err
	}
	e.PaidAt = &now
	return nil
}

func (e *EscrowPayment) MarkFailed(reason string) error {
	now, err := e.apply(valueobject.EscrowEventFail)
	if err != nil {
		return err
	}
	e.FailedAt = &now
	e.FailureReason = &reason
	return nil
}

func (e *EscrowPayment) Release() error {
	now, err := e.apply(valueobject.EscrowEventRelease)
	if err != nil {
		return err
	}
	e.ReleasedAt = &now
	return nil
}

func (e *EscrowPayment) Refund() error {
	now, err := e.apply(valueobject.EscrowEventRefund)
	if err != nil {
		return err
	}
	e.RefundedAt = &now
	return nil
}

func (e *EscrowPayment) SetCheckoutURL(url string) {
	e.CheckoutURL = &url
	e.UpdatedAt = time.Now().UTC()
}

// FreelancerPayout: сумма, которую получит исполнитель за вычетом комиссии.
func (e *EscrowPayment) FreelancerPayout() valueobject.Money {
	return e.Amount - e.PlatformFee
}

func (e *EscrowPayment) IsParty(userID uuid.UUID) bool {
	return e.ClientID == userID || e.FreelancerID == userID
}

func (e *EscrowPayment) IsPending() bool {
	return e.Status == valueobject.EscrowStatusPending
}

func (e *EscrowPayment) IsPaid() bool {
	return e.Status == valueobject.EscrowStatusPaid
}

// ReleaseReference и RefundReference: ключи идемпотентности проводок в кошельках.
func (e *EscrowPayment) ReleaseReference() string {
	return "escrow:" + e.ID.String() + ":release"
}

func (e *EscrowPayment) FeeReference() string {
	return "escrow:" + e.ID.String() + ":fee"
}

func (e *EscrowPayment) RefundReference() string {
	return "escrow:" + e.ID.String() + ":refund"
}

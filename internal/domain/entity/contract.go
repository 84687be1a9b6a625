package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type Contract struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	ProposalID   uuid.UUID
	ClientID     uuid.UUID
	FreelancerID uuid.UUID
	AgreedAmount valueobject.Money
	Currency     string
	Status       valueobject.ContractStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
}

// NewContract формирует контракт из принятого отклика.
func NewContract(job *Job, proposal *Proposal) (*Contract, error) {
	if !proposal.IsAccepted() {
		return nil, apperror.InvalidTransition("контракт можно создать только из принятого предложения")
	}
	if proposal.JobID != job.ID {
		return nil, apperror.New(apperror.ErrCodeInvariantViolation, "предложение относится к другому заказу")
	}

	now := time.Now().UTC()
	return &Contract{
		ID:           uuid.New(),
		JobID:        job.ID,
		ProposalID:   proposal.ID,
		ClientID:     job.ClientID,
		FreelancerID: proposal.FreelancerID,
		AgreedAmount: proposal.ProposedAmount,
		Currency:     job.Budget.Currency,
		Status:       valueobject.ContractStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *Contract) apply(event valueobject.ContractEvent) (time.Time, error) {
	next, err := c.Status.Apply(event)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now().UTC()
	c.Status = next
	c.UpdatedAt = now
	return now, nil
}

func (c *Contract) Complete() error {
	now, err := c.apply(valueobject.ContractEventComplete)
	if err != nil {
		return err
	}
	c.CompletedAt = &now
	return nil
}

func (c *Contract) Cancel() error {
	now, err := c.apply(valueobject.ContractEventCancel)
	if err != nil {
		return err
	}
	c.CancelledAt = &now
	return nil
}

// IsParty сообщает, является ли пользователь стороной контракта.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	return c.ClientID == userID || c.FreelancerID == userID
}

// Counterparty возвращает вторую сторону контракта.
func (c *Contract) Counterparty(userID uuid.UUID) uuid.UUID {
	if userID == c.ClientID {
		return c.FreelancerID
	}
	return c.ClientID
}

func (c *Contract) IsCancelled() bool {
	return c.Status == valueobject.ContractStatusCancelled
}

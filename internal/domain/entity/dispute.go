package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type Dispute struct {
	ID              uuid.UUID
	EscrowPaymentID uuid.UUID
	JobID           uuid.UUID
	ContractID      uuid.UUID
	RaisedByID      uuid.UUID
	Type            valueobject.DisputeType
	Status          valueobject.DisputeStatus
	Reason          string
	Resolution      *valueobject.DisputeOutcome
	ResolutionNote  *string
	ResolvedByID    *uuid.UUID
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDispute открывает спор по оплаченному эскроу.
func NewDispute(payment *EscrowPayment, raisedBy uuid.UUID, disputeType valueobject.DisputeType, reason string) (*Dispute, error) {
	if !disputeType.IsValid() {
		return nil, apperror.Validation("некорректный тип спора")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.Validation("причина спора обязательна")
	}
	if !payment.IsPaid() {
		return nil, apperror.InvalidTransition("спор можно открыть только по оплаченному эскроу")
	}

	now := time.Now().UTC()
	return &Dispute{
		ID:              uuid.New(),
		EscrowPaymentID: payment.ID,
		JobID:           payment.JobID,
		ContractID:      payment.ContractID,
		RaisedByID:      raisedBy,
		Type:            disputeType,
		Status:          valueobject.DisputeStatusOpen,
		Reason:          strings.TrimSpace(reason),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (d *Dispute) close(event valueobject.DisputeEvent, adminID uuid.UUID, note string) error {
	next, err := d.Status.Apply(event)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = next
	d.ResolvedByID = &adminID
	d.ResolvedAt = &now
	d.UpdatedAt = now
	if note != "" {
		d.ResolutionNote = &note
	}
	return nil
}

func (d *Dispute) Resolve(outcome valueobject.DisputeOutcome, adminID uuid.UUID, note string) error {
	if !outcome.IsValid() {
		return apperror.Validation("решение спора должно быть release или refund")
	}
	if err := d.close(valueobject.DisputeEventResolve, adminID, note); err != nil {
		return err
	}
	d.Resolution = &outcome
	return nil
}

func (d *Dispute) Reject(adminID uuid.UUID, note string) error {
	return d.close(valueobject.DisputeEventReject, adminID, note)
}

func (d *Dispute) IsOpen() bool {
	return d.Status == valueobject.DisputeStatusOpen
}

// ResolvedForClient сообщает, что спор решён возвратом средств клиенту.
func (d *Dispute) ResolvedForClient() bool {
	return d.Status == valueobject.DisputeStatusResolved &&
		d.Resolution != nil && *d.Resolution == valueobject.DisputeOutcomeRefund
}

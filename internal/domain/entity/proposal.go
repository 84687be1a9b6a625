package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type Proposal struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	FreelancerID   uuid.UUID
	Message        string
	InitialAmount  valueobject.Money
	ProposedAmount valueobject.Money
	Status         valueobject.ProposalStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewProposal(jobID, freelancerID uuid.UUID, message string, amount valueobject.Money) (*Proposal, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperror.Validation("сопроводительное сообщение обязательно")
	}
	if amount <= 0 {
		return nil, apperror.Validation("предложенная сумма должна быть положительной")
	}

	now := time.Now().UTC()
	return &Proposal{
		ID:             uuid.New(),
		JobID:          jobID,
		FreelancerID:   freelancerID,
		Message:        strings.TrimSpace(message),
		InitialAmount:  amount,
		ProposedAmount: amount,
		Status:         valueobject.ProposalStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *Proposal) apply(event valueobject.ProposalEvent) error {
	next, err := p.Status.Apply(event)
	if err != nil {
		return err
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CounterOffer переводит предложение в OFFERED. Если amount задан, он
// становится новой предложенной суммой, исходная остаётся в InitialAmount.
func (p *Proposal) CounterOffer(amount *valueobject.Money) error {
	if amount != nil && *amount <= 0 {
		return apperror.Validation("сумма встречного предложения должна быть положительной")
	}
	if err := p.apply(valueobject.ProposalEventOffer); err != nil {
		return err
	}
	if amount != nil {
		p.ProposedAmount = *amount
	}
	return nil
}

// AcceptByClient принимает отклик напрямую. PENDING проходит через неявный OFFERED.
func (p *Proposal) AcceptByClient() error {
	if p.Status == valueobject.ProposalStatusOffered {
		return apperror.InvalidTransition("встречное предложение ожидает ответа исполнителя")
	}
	if err := p.apply(valueobject.ProposalEventOffer); err != nil {
		return err
	}
	return p.apply(valueobject.ProposalEventAccept)
}

// AcceptByFreelancer: согласие исполнителя на встречное предложение клиента.
func (p *Proposal) AcceptByFreelancer() error {
	if p.Status == valueobject.ProposalStatusPending {
		return apperror.InvalidTransition("клиент ещё не сделал встречное предложение")
	}
	return p.apply(valueobject.ProposalEventAccept)
}

// RejectByClient отклоняет ожидающий отклик.
func (p *Proposal) RejectByClient() error {
	if p.Status == valueobject.ProposalStatusOffered {
		return apperror.InvalidTransition("встречное предложение ожидает ответа исполнителя")
	}
	return p.apply(valueobject.ProposalEventReject)
}

// DeclineOffer: отказ исполнителя от встречного предложения.
func (p *Proposal) DeclineOffer() error {
	if p.Status == valueobject.ProposalStatusPending {
		return apperror.InvalidTransition("нечего отклонять: встречного предложения не было, используйте отзыв")
	}
	return p.apply(valueobject.ProposalEventReject)
}

func (p *Proposal) Withdraw() error {
	return p.apply(valueobject.ProposalEventWithdraw)
}

// RejectAsSibling закрывает конкурирующий отклик после принятия другого.
// Завершённые отклики не трогает.
func (p *Proposal) RejectAsSibling() (bool, error) {
	if !p.Status.IsOpen() {
		return false, nil
	}
	if err := p.apply(valueobject.ProposalEventReject); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Proposal) IsOwnedBy(userID uuid.UUID) bool {
	return p.FreelancerID == userID
}

func (p *Proposal) IsAccepted() bool {
	return p.Status == valueobject.ProposalStatusAccepted
}

package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type Job struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Title       string
	Description string
	Category    string
	Budget      valueobject.Budget
	Status      valueobject.JobStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func NewJob(clientID uuid.UUID, title, description, category string, budget valueobject.Budget) (*Job, error) {
	if err := validateJobFields(title, description); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		ClientID:    clientID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
		Budget:      budget,
		Status:      valueobject.JobStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func validateJobFields(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return apperror.Validation("название заказа обязательно")
	}
	if strings.TrimSpace(description) == "" {
		return apperror.Validation("описание заказа обязательно")
	}
	return nil
}

// Update меняет описательные поля. Доступно только до заключения контракта.
func (j *Job) Update(title, description, category string, budget valueobject.Budget) error {
	if !j.Status.IsEditable() {
		return apperror.InvalidTransition("заказ нельзя редактировать после заключения контракта")
	}
	if err := validateJobFields(title, description); err != nil {
		return err
	}
	j.Title = strings.TrimSpace(title)
	j.Description = strings.TrimSpace(description)
	j.Category = strings.TrimSpace(category)
	j.Budget = budget
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (j *Job) apply(event valueobject.JobEvent) error {
	next, err := j.Status.Apply(event)
	if err != nil {
		return err
	}
	j.Status = next
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (j *Job) Publish() error {
	return j.apply(valueobject.JobEventPublish)
}

func (j *Job) MarkContracted() error {
	return j.apply(valueobject.JobEventContract)
}

func (j *Job) Start() error {
	return j.apply(valueobject.JobEventStart)
}

func (j *Job) Complete() error {
	return j.apply(valueobject.JobEventComplete)
}

func (j *Job) Cancel() error {
	return j.apply(valueobject.JobEventCancel)
}

// CheckDeletable разрешает удаление черновика или открытого заказа без откликов.
func (j *Job) CheckDeletable(proposalCount int) error {
	switch {
	case j.Status == valueobject.JobStatusDraft:
		return nil
	case j.Status == valueobject.JobStatusOpen && proposalCount == 0:
		return nil
	case j.Status == valueobject.JobStatusOpen:
		return apperror.Conflict("нельзя удалить заказ, на который уже есть отклики")
	default:
		return apperror.Conflict("нельзя удалить заказ после заключения контракта")
	}
}

func (j *Job) MarkDeleted() {
	now := time.Now().UTC()
	j.DeletedAt = &now
	j.UpdatedAt = now
}

func (j *Job) IsOwnedBy(userID uuid.UUID) bool {
	return j.ClientID == userID
}

func (j *Job) IsDeleted() bool {
	return j.DeletedAt != nil
}

package contract

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

// Formation создаёт контракты и проводит их внутренние переходы.
type Formation struct {
	jobs       *job.Machine
	dispatcher *notification.Dispatcher
	metrics    *metrics.Registry
}

func NewFormation(jobs *job.Machine, dispatcher *notification.Dispatcher, m *metrics.Registry) *Formation {
	return &Formation{jobs: jobs, dispatcher: dispatcher, metrics: m}
}

// FormFromAcceptedProposal создаёт активный контракт и переводит заказ в CONTRACTED.
// Выполняется в транзакции принятия отклика.
func (f *Formation) FormFromAcceptedProposal(ctx context.Context, tx repository.Tx, proposal *entity.Proposal) (*entity.Contract, error) {
	if !proposal.IsAccepted() {
		return nil, apperror.InvalidTransition("контракт можно создать только из принятого предложения")
	}

	existing, err := tx.Contracts().FindByJobID(ctx, proposal.JobID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("по заказу уже заключён контракт")
	}

	j, err := f.jobs.MarkContracted(ctx, tx, proposal.JobID)
	if err != nil {
		return nil, err
	}

	c, err := entity.NewContract(j, proposal)
	if err != nil {
		return nil, err
	}
	if err := tx.Contracts().Create(ctx, c); err != nil {
		return nil, err
	}

	tx.AfterCommit(func() {
		if f.metrics != nil {
			f.metrics.Transition("contract", "new", string(c.Status))
		}
		logger.Log.WithFields(logrus.Fields{
			"contract_id": c.ID,
			"job_id":      c.JobID,
			"proposal_id": c.ProposalID,
			"amount":      c.AgreedAmount.Major(),
		}).Info("contract formed")
	})

	link := "/contracts/" + c.ID.String()
	message := fmt.Sprintf("Контракт по заказу «%s» на %s %s", j.Title, c.AgreedAmount.Major(), c.Currency)
	if err := f.dispatcher.Stage(ctx, tx,
		notification.Event{UserID: c.ClientID, Type: entity.NotificationContractCreated, Title: "Контракт заключён", Message: message, Link: link},
		notification.Event{UserID: c.FreelancerID, Type: entity.NotificationContractCreated, Title: "Контракт заключён", Message: message, Link: link},
	); err != nil {
		return nil, err
	}
	return c, nil
}

// CompleteForJob завершает контракт заказа. Реализует job.ContractCloser.
func (f *Formation) CompleteForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Contract, error) {
	return f.transitionForJob(ctx, tx, jobID, (*entity.Contract).Complete)
}

// CancelForJob отменяет контракт заказа, например при возврате средств по спору.
func (f *Formation) CancelForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Contract, error) {
	return f.transitionForJob(ctx, tx, jobID, (*entity.Contract).Cancel)
}

func (f *Formation) transitionForJob(ctx context.Context, tx repository.Tx, jobID uuid.UUID, apply func(*entity.Contract) error) (*entity.Contract, error) {
	found, err := tx.Contracts().FindByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperror.ErrContractNotFound
	}
	c, err := tx.Contracts().FindByIDForUpdate(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if err := f.save(ctx, tx, c, apply); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *Formation) save(ctx context.Context, tx repository.Tx, c *entity.Contract, apply func(*entity.Contract) error) error {
	from := c.Status
	if err := apply(c); err != nil {
		return err
	}
	if err := tx.Contracts().Update(ctx, c, from); err != nil {
		return err
	}
	to := c.Status
	tx.AfterCommit(func() {
		if f.metrics != nil {
			f.metrics.Transition("contract", string(from), string(to))
		}
	})
	return nil
}

package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
)

// Machine выполняет внутренние переходы заказа, которые запускают другие
// компоненты жизненного цикла. Все методы работают внутри переданной транзакции.
type Machine struct {
	metrics *metrics.Registry
}

func NewMachine(m *metrics.Registry) *Machine {
	return &Machine{metrics: m}
}

// MarkContracted: OPEN -> CONTRACTED. Вызывается только при формировании контракта.
func (m *Machine) MarkContracted(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Job, error) {
	return m.transition(ctx, tx, jobID, (*entity.Job).MarkContracted)
}

// Start: CONTRACTED -> IN_PROGRESS. Вызывается при подтверждении оплаты эскроу.
func (m *Machine) Start(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Job, error) {
	return m.transition(ctx, tx, jobID, (*entity.Job).Start)
}

// Finish: IN_PROGRESS -> COMPLETED.
func (m *Machine) Finish(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Job, error) {
	return m.transition(ctx, tx, jobID, (*entity.Job).Complete)
}

func (m *Machine) Cancel(ctx context.Context, tx repository.Tx, jobID uuid.UUID) (*entity.Job, error) {
	return m.transition(ctx, tx, jobID, (*entity.Job).Cancel)
}

func (m *Machine) transition(ctx context.Context, tx repository.Tx, jobID uuid.UUID, apply func(*entity.Job) error) (*entity.Job, error) {
	job, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, tx, job, apply); err != nil {
		return nil, err
	}
	return job, nil
}

// save применяет переход к уже заблокированному заказу и пишет его с CAS по статусу.
func (m *Machine) save(ctx context.Context, tx repository.Tx, job *entity.Job, apply func(*entity.Job) error) error {
	from := job.Status
	if err := apply(job); err != nil {
		return err
	}
	if err := tx.Jobs().Update(ctx, job, from); err != nil {
		return err
	}

	to := job.Status
	tx.AfterCommit(func() {
		if m.metrics != nil {
			m.metrics.Transition("job", string(from), string(to))
		}
		logger.Log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"from":   from,
			"to":     to,
		}).Info("job transition")
	})
	return nil
}

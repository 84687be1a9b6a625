package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/domain/entity"
	"github.com/ignatzorin/engagement-backend/internal/domain/repository"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/pkg/pagination"
)

type JobInput struct {
	Title        string
	Description  string
	Category     string
	BudgetAmount int64
	Currency     string
}

func (in JobInput) budget(defaultCurrency string) (valueobject.Budget, error) {
	currency, err := valueobject.NormalizeCurrency(in.Currency, defaultCurrency)
	if err != nil {
		return valueobject.Budget{}, err
	}
	return valueobject.NewBudget(in.BudgetAmount, currency)
}

type CreateJobUseCase struct {
	uow      repository.UnitOfWork
	currency string
}

func NewCreateJobUseCase(uow repository.UnitOfWork, currency string) *CreateJobUseCase {
	return &CreateJobUseCase{uow: uow, currency: currency}
}

func (uc *CreateJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, input JobInput) (*entity.Job, error) {
	if !actor.IsClient() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заказы могут только клиенты")
	}

	budget, err := input.budget(uc.currency)
	if err != nil {
		return nil, err
	}
	job, err := entity.NewJob(actor.ID, input.Title, input.Description, input.Category, budget)
	if err != nil {
		return nil, err
	}

	err = uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Jobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

type UpdateJobUseCase struct {
	uow      repository.UnitOfWork
	currency string
}

func NewUpdateJobUseCase(uow repository.UnitOfWork, currency string) *UpdateJobUseCase {
	return &UpdateJobUseCase{uow: uow, currency: currency}
}

func (uc *UpdateJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID, input JobInput) (*entity.Job, error) {
	budget, err := input.budget(uc.currency)
	if err != nil {
		return nil, err
	}

	var job *entity.Job
	err = uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		job, err = tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		status := job.Status
		if err := job.Update(input.Title, input.Description, input.Category, budget); err != nil {
			return err
		}
		return tx.Jobs().Update(ctx, job, status)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

type PublishJobUseCase struct {
	uow     repository.UnitOfWork
	machine *Machine
}

func NewPublishJobUseCase(uow repository.UnitOfWork, machine *Machine) *PublishJobUseCase {
	return &PublishJobUseCase{uow: uow, machine: machine}
}

// Execute: DRAFT -> OPEN.
func (uc *PublishJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		return uc.machine.save(ctx, tx, job, (*entity.Job).Publish)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

type DeleteJobUseCase struct {
	uow repository.UnitOfWork
}

func NewDeleteJobUseCase(uow repository.UnitOfWork) *DeleteJobUseCase {
	return &DeleteJobUseCase{uow: uow}
}

// Execute мягко удаляет черновик или открытый заказ без откликов.
func (uc *DeleteJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID) error {
	return uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		job, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		count, err := tx.Proposals().CountByJobID(ctx, job.ID)
		if err != nil {
			return err
		}
		if err := job.CheckDeletable(count); err != nil {
			return err
		}
		job.MarkDeleted()
		return tx.Jobs().Update(ctx, job, job.Status)
	})
}

type GetJobUseCase struct {
	uow repository.UnitOfWork
}

func NewGetJobUseCase(uow repository.UnitOfWork) *GetJobUseCase {
	return &GetJobUseCase{uow: uow}
}

// Execute скрывает чужие черновики так же, как несуществующие заказы.
func (uc *GetJobUseCase) Execute(ctx context.Context, actor valueobject.AuthenticatedUser, jobID uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = tx.Jobs().FindByID(ctx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if job.Status == valueobject.JobStatusDraft && !job.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.ErrJobNotFound
	}
	return job, nil
}

type ListJobsUseCase struct {
	uow repository.UnitOfWork
}

func NewListJobsUseCase(uow repository.UnitOfWork) *ListJobsUseCase {
	return &ListJobsUseCase{uow: uow}
}

// ListOpen возвращает опубликованные заказы, доступные для откликов.
func (uc *ListJobsUseCase) ListOpen(ctx context.Context, limit, offset int) ([]*entity.Job, int, error) {
	status := valueobject.JobStatusOpen
	return uc.list(ctx, repository.JobFilter{Status: &status}, limit, offset)
}

// ListMine возвращает заказы клиента во всех статусах.
func (uc *ListJobsUseCase) ListMine(ctx context.Context, actor valueobject.AuthenticatedUser, limit, offset int) ([]*entity.Job, int, error) {
	clientID := actor.ID
	return uc.list(ctx, repository.JobFilter{ClientID: &clientID}, limit, offset)
}

func (uc *ListJobsUseCase) list(ctx context.Context, filter repository.JobFilter, limit, offset int) ([]*entity.Job, int, error) {
	filter.Limit, filter.Offset = pagination.Normalize(limit, offset)

	var (
		jobs  []*entity.Job
		total int
	)
	err := uc.uow.Do(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		jobs, total, err = tx.Jobs().List(ctx, filter)
		return err
	})
	return jobs, total, err
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
)

type JobHandler struct {
	createUC   *job.CreateJobUseCase
	updateUC   *job.UpdateJobUseCase
	publishUC  *job.PublishJobUseCase
	deleteUC   *job.DeleteJobUseCase
	getUC      *job.GetJobUseCase
	listUC     *job.ListJobsUseCase
	completeUC *job.CompleteJobUseCase
}

func NewJobHandler(
	createUC *job.CreateJobUseCase,
	updateUC *job.UpdateJobUseCase,
	publishUC *job.PublishJobUseCase,
	deleteUC *job.DeleteJobUseCase,
	getUC *job.GetJobUseCase,
	listUC *job.ListJobsUseCase,
	completeUC *job.CompleteJobUseCase,
) *JobHandler {
	return &JobHandler{
		createUC:   createUC,
		updateUC:   updateUC,
		publishUC:  publishUC,
		deleteUC:   deleteUC,
		getUC:      getUC,
		listUC:     listUC,
		completeUC: completeUC,
	}
}

func toJobInput(req dto.JobRequest) job.JobInput {
	return job.JobInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		BudgetAmount: req.BudgetAmount,
		Currency:     req.Currency,
	}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	created, err := h.createUC.Execute(c.Request.Context(), user, toJobInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToJobResponse(created))
}

func (h *JobHandler) UpdateJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	updated, err := h.updateUC.Execute(c.Request.Context(), user, jobID, toJobInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobResponse(updated))
}

func (h *JobHandler) PublishJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	published, err := h.publishUC.Execute(c.Request.Context(), user, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobResponse(published))
}

func (h *JobHandler) DeleteJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	if err := h.deleteUC.Execute(c.Request.Context(), user, jobID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	j, err := h.getUC.Execute(c.Request.Context(), user, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobResponse(j))
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := page(c)

	jobs, total, err := h.listUC.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToJobResponses(jobs), total, limit, offset)
}

func (h *JobHandler) ListMyJobs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := page(c)

	jobs, total, err := h.listUC.ListMine(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToJobResponses(jobs), total, limit, offset)
}

// CompleteJob закрывает заказ и выплачивает эскроу фрилансеру.
func (h *JobHandler) CompleteJob(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	completed, err := h.completeUC.Execute(c.Request.Context(), user, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToJobResponse(completed))
}

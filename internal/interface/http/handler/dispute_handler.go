package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/dispute"
)

type DisputeHandler struct {
	openUC    *dispute.OpenDisputeUseCase
	resolveUC *dispute.ResolveDisputeUseCase
	rejectUC  *dispute.RejectDisputeUseCase
	getUC     *dispute.GetDisputeUseCase
}

func NewDisputeHandler(
	openUC *dispute.OpenDisputeUseCase,
	resolveUC *dispute.ResolveDisputeUseCase,
	rejectUC *dispute.RejectDisputeUseCase,
	getUC *dispute.GetDisputeUseCase,
) *DisputeHandler {
	return &DisputeHandler{openUC: openUC, resolveUC: resolveUC, rejectUC: rejectUC, getUC: getUC}
}

func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	d, err := h.openUC.Execute(c.Request.Context(), user, dispute.OpenDisputeInput{
		EscrowID: req.EscrowID,
		Type:     valueobject.DisputeType(req.Type),
		Reason:   req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) GetDispute(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := pathID(c, "id", "спора")
	if !ok {
		return
	}

	d, err := h.getUC.Execute(c.Request.Context(), user, disputeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := page(c)

	items, total, err := h.getUC.ListMine(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToDisputeResponses(items), total, limit, offset)
}

func (h *DisputeHandler) ListOpenDisputes(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := page(c)

	items, total, err := h.getUC.ListOpen(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToDisputeResponses(items), total, limit, offset)
}

func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := pathID(c, "id", "спора")
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	d, err := h.resolveUC.Execute(c.Request.Context(), user, disputeID, dispute.ResolveDisputeInput{
		Outcome: valueobject.DisputeOutcome(req.Outcome),
		Note:    req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}

func (h *DisputeHandler) RejectDispute(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	disputeID, ok := pathID(c, "id", "спора")
	if !ok {
		return
	}

	var req dto.RejectDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "укажите причину отклонения")
		return
	}

	d, err := h.rejectUC.Execute(c.Request.Context(), user, disputeID, req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToDisputeResponse(d))
}

package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/proposal"
)

type ProposalHandler struct {
	submitUC   *proposal.SubmitProposalUseCase
	counterUC  *proposal.CounterOfferUseCase
	acceptUC   *proposal.AcceptProposalUseCase
	rejectUC   *proposal.RejectProposalUseCase
	withdrawUC *proposal.WithdrawProposalUseCase
	getUC      *proposal.GetProposalUseCase
}

func NewProposalHandler(
	submitUC *proposal.SubmitProposalUseCase,
	counterUC *proposal.CounterOfferUseCase,
	acceptUC *proposal.AcceptProposalUseCase,
	rejectUC *proposal.RejectProposalUseCase,
	withdrawUC *proposal.WithdrawProposalUseCase,
	getUC *proposal.GetProposalUseCase,
) *ProposalHandler {
	return &ProposalHandler{
		submitUC:   submitUC,
		counterUC:  counterUC,
		acceptUC:   acceptUC,
		rejectUC:   rejectUC,
		withdrawUC: withdrawUC,
		getUC:      getUC,
	}
}

func (h *ProposalHandler) SubmitProposal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	var req dto.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	created, err := h.submitUC.Execute(c.Request.Context(), user, proposal.SubmitProposalInput{
		JobID:   jobID,
		Message: req.Message,
		Amount:  valueobject.Money(req.Amount),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToProposalResponse(created))
}

func (h *ProposalHandler) ListJobProposals(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	jobID, ok := pathID(c, "id", "заказа")
	if !ok {
		return
	}

	items, err := h.getUC.ListForJob(c.Request.Context(), user, jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponses(items))
}

func (h *ProposalHandler) ListMyProposals(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.getUC.ListMine(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponses(items))
}

func (h *ProposalHandler) GetProposal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := pathID(c, "id", "предложения")
	if !ok {
		return
	}

	p, err := h.getUC.Execute(c.Request.Context(), user, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponse(p))
}

func (h *ProposalHandler) CounterOffer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := pathID(c, "id", "предложения")
	if !ok {
		return
	}

	var req dto.CounterOfferRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return
		}
	}

	var amount *valueobject.Money
	if req.Amount != nil {
		m := valueobject.Money(*req.Amount)
		amount = &m
	}

	p, err := h.counterUC.Execute(c.Request.Context(), user, proposalID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponse(p))
}

// AcceptProposal принимает предложение и возвращает созданный контракт.
func (h *ProposalHandler) AcceptProposal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := pathID(c, "id", "предложения")
	if !ok {
		return
	}

	res, err := h.acceptUC.Execute(c.Request.Context(), user, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.AcceptProposalResponse{
		Proposal: dto.ToProposalResponse(res.Proposal),
		Contract: dto.ToContractResponse(res.Contract),
	})
}

func (h *ProposalHandler) RejectProposal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := pathID(c, "id", "предложения")
	if !ok {
		return
	}

	p, err := h.rejectUC.Execute(c.Request.Context(), user, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponse(p))
}

func (h *ProposalHandler) WithdrawProposal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := pathID(c, "id", "предложения")
	if !ok {
		return
	}

	p, err := h.withdrawUC.Execute(c.Request.Context(), user, proposalID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToProposalResponse(p))
}

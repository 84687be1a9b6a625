package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
)

type ContractHandler struct {
	getUC    *contract.GetContractUseCase
	listUC   *contract.ListMyContractsUseCase
	cancelUC *contract.CancelContractUseCase
}

func NewContractHandler(getUC *contract.GetContractUseCase, listUC *contract.ListMyContractsUseCase, cancelUC *contract.CancelContractUseCase) *ContractHandler {
	return &ContractHandler{getUC: getUC, listUC: listUC, cancelUC: cancelUC}
}

func (h *ContractHandler) GetContract(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	contractID, ok := pathID(c, "id", "контракта")
	if !ok {
		return
	}

	ct, err := h.getUC.Execute(c.Request.Context(), user, contractID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponse(ct))
}

func (h *ContractHandler) ListMyContracts(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := page(c)

	items, total, err := h.listUC.Execute(c.Request.Context(), user, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToContractResponses(items), total, limit, offset)
}

func (h *ContractHandler) CancelContract(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	contractID, ok := pathID(c, "id", "контракта")
	if !ok {
		return
	}

	ct, err := h.cancelUC.Execute(c.Request.Context(), user, contractID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToContractResponse(ct))
}

package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
)

type WalletHandler struct {
	getUC      *ledger.GetWalletUseCase
	listUC     *ledger.ListTransactionsUseCase
	withdrawUC *ledger.WithdrawUseCase
	verifyUC   *ledger.VerifyBalanceUseCase
}

func NewWalletHandler(
	getUC *ledger.GetWalletUseCase,
	listUC *ledger.ListTransactionsUseCase,
	withdrawUC *ledger.WithdrawUseCase,
	verifyUC *ledger.VerifyBalanceUseCase,
) *WalletHandler {
	return &WalletHandler{getUC: getUC, listUC: listUC, withdrawUC: withdrawUC, verifyUC: verifyUC}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	w, err := h.getUC.Execute(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToWalletResponse(w))
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
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

	response.Paginated(c, dto.ToWalletTransactionResponses(items), total, limit, offset)
}

// Withdraw требует заголовок Idempotency-Key: повтор с тем же ключом
// возвращает уже проведённую транзакцию.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if key == "" {
		response.BadRequest(c, "заголовок Idempotency-Key обязателен")
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	t, err := h.withdrawUC.Execute(c.Request.Context(), user, ledger.WithdrawInput{
		Amount:         valueobject.Money(req.Amount),
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToWalletTransactionResponse(t))
}

func (h *WalletHandler) VerifyBalance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId", "пользователя")
	if !ok {
		return
	}

	report, err := h.verifyUC.Execute(c.Request.Context(), user, userID)
	if err != nil && report == nil {
		response.Error(c, err)
		return
	}
	if err != nil {
		// Расхождение: отдаём отчёт вместе с ошибкой, чтобы админ видел обе суммы.
		response.ErrorWithData(c, err, dto.ToBalanceReportResponse(report))
		return
	}

	response.Success(c, dto.ToBalanceReportResponse(report))
}

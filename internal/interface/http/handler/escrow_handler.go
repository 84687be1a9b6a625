package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/gateway"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
)

const maxCallbackBody = 64 << 10

// ReconcileEnqueuer ставит сверку платежа в фоновую очередь.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, txRef string) error
}

type EscrowHandler struct {
	initiateUC  *escrow.InitiateEscrowUseCase
	getUC       *escrow.GetEscrowUseCase
	releaseUC   *escrow.ReleaseEscrowUseCase
	refundUC    *escrow.RefundEscrowUseCase
	reconcileUC *escrow.ReconcileUseCase
	sweepUC     *escrow.SweepPendingUseCase
	enqueuer    ReconcileEnqueuer
	// webhookSecret пустой в development: подпись не проверяется.
	webhookSecret string
}

func NewEscrowHandler(
	initiateUC *escrow.InitiateEscrowUseCase,
	getUC *escrow.GetEscrowUseCase,
	releaseUC *escrow.ReleaseEscrowUseCase,
	refundUC *escrow.RefundEscrowUseCase,
	reconcileUC *escrow.ReconcileUseCase,
	sweepUC *escrow.SweepPendingUseCase,
	enqueuer ReconcileEnqueuer,
	webhookSecret string,
) *EscrowHandler {
	return &EscrowHandler{
		initiateUC:    initiateUC,
		getUC:         getUC,
		releaseUC:     releaseUC,
		refundUC:      refundUC,
		reconcileUC:   reconcileUC,
		sweepUC:       sweepUC,
		enqueuer:      enqueuer,
		webhookSecret: webhookSecret,
	}
}

func (h *EscrowHandler) InitiateEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	contractID, ok := pathID(c, "id", "контракта")
	if !ok {
		return
	}

	var req dto.InitiateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	payment, err := h.initiateUC.Execute(c.Request.Context(), user, contractID, valueobject.Money(req.Amount))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.ToEscrowResponse(payment))
}

func (h *EscrowHandler) GetContractEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	contractID, ok := pathID(c, "id", "контракта")
	if !ok {
		return
	}

	payment, err := h.getUC.ForContract(c.Request.Context(), user, contractID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(payment))
}

func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	escrowID, ok := pathID(c, "id", "платежа")
	if !ok {
		return
	}

	payment, err := h.getUC.Execute(c.Request.Context(), user, escrowID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(payment))
}

func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	escrowID, ok := pathID(c, "id", "платежа")
	if !ok {
		return
	}

	payment, err := h.releaseUC.Execute(c.Request.Context(), user, escrowID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(payment))
}

func (h *EscrowHandler) RefundEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	escrowID, ok := pathID(c, "id", "платежа")
	if !ok {
		return
	}

	payment, err := h.refundUC.Execute(c.Request.Context(), user, escrowID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToEscrowResponse(payment))
}

// VerifyEscrow синхронно сверяет платёж со шлюзом. Клиент вызывает его
// после возврата со страницы оплаты, не дожидаясь webhook.
func (h *EscrowHandler) VerifyEscrow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	escrowID, ok := pathID(c, "id", "платежа")
	if !ok {
		return
	}

	payment, err := h.getUC.Execute(c.Request.Context(), user, escrowID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.reconcileUC.VerifyAndExecute(c.Request.Context(), payment.TxRef)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := dto.ReconcileResponse{Outcome: string(res.Outcome)}
	if res.Payment != nil {
		e := dto.ToEscrowResponse(res.Payment)
		out.Escrow = &e
	}
	response.Success(c, out)
}

// Callback принимает webhook шлюза. Тело не считается источником истины:
// ставим сверку в очередь, воркер сам спросит статус у шлюза.
func (h *EscrowHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		response.BadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	if c.Request.Method == http.MethodPost && !gateway.VerifySignature(h.webhookSecret, body, signatureHeader(c)) {
		logger.Log.WithFields(logrus.Fields{"ip": c.ClientIP()}).Warn("escrow callback signature mismatch")
		response.Unauthorized(c, "неверная подпись webhook")
		return
	}

	txRef := callbackTxRef(c, body)
	if txRef == "" {
		response.BadRequest(c, "tx_ref обязателен")
		return
	}

	ctx := c.Request.Context()
	if h.enqueuer != nil {
		err := h.enqueuer.EnqueueReconcile(ctx, txRef)
		if err == nil {
			c.JSON(http.StatusAccepted, response.Response{Success: true, Data: gin.H{"tx_ref": txRef, "queued": true}})
			return
		}
		logger.Log.WithFields(logrus.Fields{"tx_ref": txRef, "error": err.Error()}).
			Warn("reconcile enqueue failed, reconciling inline")
	}

	res, err := h.reconcileUC.VerifyAndExecute(ctx, txRef)
	if err != nil {
		// Неизвестный tx_ref подтверждаем, чтобы шлюз не слал его повторно.
		if apperror.IsNotFound(err) {
			response.Success(c, gin.H{"tx_ref": txRef, "outcome": "unknown"})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tx_ref": txRef, "outcome": string(res.Outcome)})
}

// SweepPending запускает сверку зависших платежей вне расписания.
func (h *EscrowHandler) SweepPending(c *gin.Context) {
	res, err := h.sweepUC.Execute(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.SweepResponse{
		Checked: res.Checked,
		Settled: res.Settled,
		Expired: res.Expired,
		Skipped: res.Skipped,
	})
}

func signatureHeader(c *gin.Context) string {
	for _, name := range []string{"Chapa-Signature", "X-Chapa-Signature", "X-Signature"} {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

// callbackTxRef достаёт ссылку из JSON тела или из query (GET callback шлюза
// приходит с ?trx_ref=).
func callbackTxRef(c *gin.Context, body []byte) string {
	if len(body) > 0 {
		var payload dto.GatewayCallback
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, v := range []string{payload.TxRef, payload.TxRefAlt, payload.TrxRef} {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	for _, key := range []string{"tx_ref", "trx_ref", "txRef"} {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	return ""
}

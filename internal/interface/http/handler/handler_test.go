package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/engagement-backend/internal/auth"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/http/middleware"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/gateway"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/memstore"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
	"github.com/ignatzorin/engagement-backend/internal/usecase/proposal"
)

const webhookSecret = "whsec_test"

// stubGateway подтверждает оплату полной суммой, если она отмечена как оплаченная.
type stubGateway struct {
	mu      sync.Mutex
	amounts map[string]valueobject.Money
	paid    map[string]bool
}

func (g *stubGateway) InitiateCheckout(ctx context.Context, req escrow.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.amounts[req.TxRef] = req.Amount
	return "https://checkout.example/" + req.TxRef, nil
}

func (g *stubGateway) Verify(ctx context.Context, txRef string) (*escrow.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := valueobject.GatewayStatusPending
	if g.paid[txRef] {
		status = valueobject.GatewayStatusSuccess
	}
	return &escrow.Verification{TxRef: txRef, Status: status, PaidAmount: g.amounts[txRef], Currency: "ETB"}, nil
}

func (g *stubGateway) markPaid(txRef string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[txRef] = true
}

type fakeEnqueuer struct {
	refs []string
	err  error
}

func (q *fakeEnqueuer) EnqueueReconcile(ctx context.Context, txRef string) error {
	if q.err != nil {
		return q.err
	}
	q.refs = append(q.refs, txRef)
	return nil
}

type testEnv struct {
	engine   *gin.Engine
	tokens   *auth.TokenManager
	gateway  *stubGateway
	enqueuer *fakeEnqueuer
}

func newTestEnv(t *testing.T, enqueuer *fakeEnqueuer) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	dispatcher := notification.NewDispatcher(store, nil)
	jobs := job.NewMachine(nil)
	formation := contract.NewFormation(jobs, dispatcher, nil)
	poster := ledger.NewPoster(nil)
	escrowMachine := escrow.NewMachine(poster, dispatcher, nil)
	gw := &stubGateway{amounts: map[string]valueobject.Money{}, paid: map[string]bool{}}
	cfg := escrow.Config{FeePercent: 10, PendingTTL: time.Hour}
	reconcile := escrow.NewReconcileUseCase(store, gw, escrowMachine, jobs, dispatcher, nil)

	jobHandler := NewJobHandler(
		job.NewCreateJobUseCase(store, "ETB"),
		job.NewUpdateJobUseCase(store, "ETB"),
		job.NewPublishJobUseCase(store, jobs),
		job.NewDeleteJobUseCase(store),
		job.NewGetJobUseCase(store),
		job.NewListJobsUseCase(store),
		job.NewCompleteJobUseCase(store, jobs, formation, escrowMachine, dispatcher),
	)
	proposalHandler := NewProposalHandler(
		proposal.NewSubmitProposalUseCase(store, dispatcher),
		proposal.NewCounterOfferUseCase(store, dispatcher, nil),
		proposal.NewAcceptProposalUseCase(store, formation, dispatcher, nil),
		proposal.NewRejectProposalUseCase(store, dispatcher, nil),
		proposal.NewWithdrawProposalUseCase(store, dispatcher, nil),
		proposal.NewGetProposalUseCase(store),
	)
	var enq ReconcileEnqueuer
	if enqueuer != nil {
		enq = enqueuer
	}
	escrowHandler := NewEscrowHandler(
		escrow.NewInitiateEscrowUseCase(store, gw, cfg),
		escrow.NewGetEscrowUseCase(store),
		escrow.NewReleaseEscrowUseCase(store, escrowMachine),
		escrow.NewRefundEscrowUseCase(store, escrowMachine),
		reconcile,
		escrow.NewSweepPendingUseCase(store, gw, reconcile, escrowMachine, cfg),
		enq,
		webhookSecret,
	)
	walletHandler := NewWalletHandler(
		ledger.NewGetWalletUseCase(store, "ETB"),
		ledger.NewListTransactionsUseCase(store),
		ledger.NewWithdrawUseCase(store, poster, dispatcher),
		ledger.NewVerifyBalanceUseCase(store),
	)
	notificationHandler := NewNotificationHandler(
		notification.NewListNotificationsUseCase(store),
		notification.NewGetNotificationUseCase(store),
		notification.NewMarkReadUseCase(store),
		notification.NewMarkAllReadUseCase(store),
		notification.NewCountUnreadUseCase(store),
	)

	tokens := auth.NewTokenManager("test-secret-0123456789abcdef0123456789", time.Hour)

	r := gin.New()
	r.POST("/api/escrow/callback", escrowHandler.Callback)
	r.GET("/api/escrow/callback", escrowHandler.Callback)

	api := r.Group("/api", middleware.AuthMiddleware(tokens))
	api.POST("/jobs", middleware.RequireRole(valueobject.RoleClient), jobHandler.CreateJob)
	api.GET("/jobs", jobHandler.ListJobs)
	api.GET("/jobs/:id", jobHandler.GetJob)
	api.POST("/jobs/:id/publish", jobHandler.PublishJob)
	api.POST("/jobs/:id/complete", jobHandler.CompleteJob)
	api.POST("/jobs/:id/proposals", proposalHandler.SubmitProposal)
	api.POST("/proposals/:id/accept", proposalHandler.AcceptProposal)
	api.POST("/contracts/:id/escrow", escrowHandler.InitiateEscrow)
	api.GET("/escrow/:id", escrowHandler.GetEscrow)
	api.GET("/wallet", walletHandler.GetWallet)
	api.POST("/wallet/withdraw", walletHandler.Withdraw)
	api.GET("/notifications/unread-count", notificationHandler.CountUnread)

	return &testEnv{engine: r, tokens: tokens, gateway: gw, enqueuer: enqueuer}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) token(t *testing.T, id uuid.UUID, role valueobject.Role) string {
	t.Helper()
	tok, err := e.tokens.Issue(id, role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type idStatus struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	TxRef  string    `json:"tx_ref"`
}

func signedCallback(t *testing.T, e *testEnv, txRef, secret string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"tx_ref": txRef, "status": "success"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/escrow/callback", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Chapa-Signature", gateway.Sign(secret, raw))
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func TestHandlers_EngagementFlowOverHTTP(t *testing.T) {
	e := newTestEnv(t, nil)
	clientID, freelancerID := uuid.New(), uuid.New()
	client := e.token(t, clientID, valueobject.RoleClient)
	freelancer := e.token(t, freelancerID, valueobject.RoleFreelancer)

	w, env := e.do(t, http.MethodPost, "/api/jobs", client, map[string]any{
		"title":         "Лендинг для кофейни",
		"description":   "Одностраничный сайт с меню",
		"budget_amount": 5000_00,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[idStatus](t, env.Data)
	assert.Equal(t, "draft", created.Status)

	w, env = e.do(t, http.MethodPost, "/api/jobs/"+created.ID.String()+"/publish", client, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "open", decode[idStatus](t, env.Data).Status)

	w, env = e.do(t, http.MethodPost, "/api/jobs/"+created.ID.String()+"/proposals", freelancer, map[string]any{
		"message": "Сделаю за неделю",
		"amount":  4800_00,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	submitted := decode[idStatus](t, env.Data)

	w, env = e.do(t, http.MethodPost, "/api/proposals/"+submitted.ID.String()+"/accept", client, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accepted := decode[struct {
		Proposal idStatus `json:"proposal"`
		Contract struct {
			ID           uuid.UUID `json:"id"`
			AgreedAmount int64     `json:"agreed_amount"`
			Status       string    `json:"status"`
		} `json:"contract"`
	}](t, env.Data)
	assert.Equal(t, "accepted", accepted.Proposal.Status)
	assert.Equal(t, "active", accepted.Contract.Status)
	assert.Equal(t, int64(4800_00), accepted.Contract.AgreedAmount)

	w, env = e.do(t, http.MethodPost, "/api/contracts/"+accepted.Contract.ID.String()+"/escrow", client, map[string]any{"amount": 4800_00})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	payment := decode[idStatus](t, env.Data)
	assert.Equal(t, "pending", payment.Status)
	require.NotEmpty(t, payment.TxRef)

	// Webhook до оплаты ничего не меняет: статус берётся у шлюза.
	w = signedCallback(t, e, payment.TxRef, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, env = e.do(t, http.MethodGet, "/api/escrow/"+payment.ID.String(), client, nil)
	assert.Equal(t, "pending", decode[idStatus](t, env.Data).Status)

	e.gateway.markPaid(payment.TxRef)
	w = signedCallback(t, e, payment.TxRef, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, env = e.do(t, http.MethodGet, "/api/escrow/"+payment.ID.String(), freelancer, nil)
	assert.Equal(t, "paid", decode[idStatus](t, env.Data).Status)

	w, env = e.do(t, http.MethodGet, "/api/jobs/"+created.ID.String(), client, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_progress", decode[idStatus](t, env.Data).Status)

	w, env = e.do(t, http.MethodPost, "/api/jobs/"+created.ID.String()+"/complete", client, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode[idStatus](t, env.Data).Status)

	w, env = e.do(t, http.MethodGet, "/api/wallet", freelancer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wallet := decode[struct {
		Balance int64 `json:"balance"`
	}](t, env.Data)
	assert.Equal(t, int64(4800_00-480_00), wallet.Balance)

	w, env = e.do(t, http.MethodGet, "/api/notifications/unread-count", freelancer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	unread := decode[struct {
		Unread int `json:"unread"`
	}](t, env.Data)
	assert.Positive(t, unread.Unread)
}

func TestHandlers_AuthAndRoles(t *testing.T) {
	e := newTestEnv(t, nil)
	freelancer := e.token(t, uuid.New(), valueobject.RoleFreelancer)

	w, env := e.do(t, http.MethodGet, "/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = e.do(t, http.MethodGet, "/api/jobs", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = e.do(t, http.MethodPost, "/api/jobs", freelancer, map[string]any{"title": "x", "description": "y"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}

func TestHandlers_BadInput(t *testing.T) {
	e := newTestEnv(t, nil)
	client := e.token(t, uuid.New(), valueobject.RoleClient)

	w, _ := e.do(t, http.MethodGet, "/api/jobs/not-a-uuid", client, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/jobs", client, map[string]any{"description": "без заголовка"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := e.do(t, http.MethodGet, "/api/jobs/"+uuid.NewString(), client, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestEscrowCallback_RejectsBadSignature(t *testing.T) {
	e := newTestEnv(t, &fakeEnqueuer{})

	w := signedCallback(t, e, "tx-1", "wrong-secret")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, e.enqueuer.refs)
}

func TestEscrowCallback_EnqueuesReconcile(t *testing.T) {
	e := newTestEnv(t, &fakeEnqueuer{})

	w := signedCallback(t, e, "tx-queued", webhookSecret)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"tx-queued"}, e.enqueuer.refs)
}

func TestEscrowCallback_MissingTxRef(t *testing.T) {
	e := newTestEnv(t, &fakeEnqueuer{})

	raw := []byte(`{"status":"success"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/escrow/callback", bytes.NewReader(raw))
	req.Header.Set("Chapa-Signature", gateway.Sign(webhookSecret, raw))
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowCallback_GetRedirectWithUnknownRef(t *testing.T) {
	e := newTestEnv(t, &fakeEnqueuer{err: errors.New("queue down")})

	req := httptest.NewRequest(http.MethodGet, "/api/escrow/callback?trx_ref=unknown-ref&status=success", nil)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	out := decode[map[string]any](t, env.Data)
	assert.Equal(t, "unknown", out["outcome"])
	assert.Equal(t, "unknown-ref", out["tx_ref"])
}

func TestWalletWithdraw_RequiresIdempotencyKey(t *testing.T) {
	e := newTestEnv(t, nil)
	freelancer := e.token(t, uuid.New(), valueobject.RoleFreelancer)

	w, env := e.do(t, http.MethodPost, "/api/wallet/withdraw", freelancer, map[string]any{"amount": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)

	w, env = e.do(t, http.MethodPost, "/api/wallet/withdraw", freelancer, map[string]any{"amount": 100}, "Idempotency-Key", "k-1")
	require.NotNil(t, env.Error, w.Body.String())
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[string]struct {
		check HealthCheck
		code  int
	}{
		"healthy":   {check: func(ctx context.Context) error { return nil }, code: http.StatusOK},
		"unhealthy": {check: func(ctx context.Context) error { return errors.New("connection refused") }, code: http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(map[string]HealthCheck{"postgres": tc.check}).Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.code, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, name, body.Status)
			assert.Contains(t, body.Checks, "postgres")
		})
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/auth"
	"github.com/ignatzorin/engagement-backend/internal/config"
	"github.com/ignatzorin/engagement-backend/internal/domain/valueobject"
	"github.com/ignatzorin/engagement-backend/internal/http/middleware"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/handler"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
)

// Handlers собирает все HTTP обработчики приложения.
type Handlers struct {
	Jobs          *handler.JobHandler
	Proposals     *handler.ProposalHandler
	Contracts     *handler.ContractHandler
	Escrow        *handler.EscrowHandler
	Disputes      *handler.DisputeHandler
	Wallet        *handler.WalletHandler
	Notifications *handler.NotificationHandler
	Health        *handler.HealthHandler
	WS            *handler.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *auth.TokenManager, m *metrics.Registry) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.MetricsMiddleware(m))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	// Webhook шлюза: без JWT, со своим лимитом.
	callback := api.Group("/escrow/callback")
	callback.Use(middleware.RateLimitMiddleware(cfg.WebhookRateLimit, cfg.RateLimitPeriod))
	{
		callback.POST("", h.Escrow.Callback)
		callback.GET("", h.Escrow.Callback)
	}

	api.GET("/ws", middleware.AuthMiddleware(tokens), h.WS.Handle)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.UserRateLimitMiddleware(cfg.RateLimitLimit*10, cfg.RateLimitPeriod))

	clientOnly := middleware.RequireRole(valueobject.RoleClient)
	freelancerOnly := middleware.RequireRole(valueobject.RoleFreelancer)

	jobs := protected.Group("/jobs")
	{
		jobs.GET("", h.Jobs.ListJobs)
		jobs.GET("/my", clientOnly, h.Jobs.ListMyJobs)
		jobs.POST("", clientOnly, h.Jobs.CreateJob)
		jobs.GET("/:id", middleware.UUIDValidator("id"), h.Jobs.GetJob)
		jobs.PUT("/:id", middleware.UUIDValidator("id"), clientOnly, h.Jobs.UpdateJob)
		jobs.DELETE("/:id", middleware.UUIDValidator("id"), clientOnly, h.Jobs.DeleteJob)
		jobs.POST("/:id/publish", middleware.UUIDValidator("id"), clientOnly, h.Jobs.PublishJob)
		jobs.POST("/:id/complete", middleware.UUIDValidator("id"), h.Jobs.CompleteJob)

		jobs.GET("/:id/proposals", middleware.UUIDValidator("id"), h.Proposals.ListJobProposals)
		jobs.POST("/:id/proposals", middleware.UUIDValidator("id"), freelancerOnly, h.Proposals.SubmitProposal)
	}

	proposals := protected.Group("/proposals")
	{
		proposals.GET("/my", freelancerOnly, h.Proposals.ListMyProposals)
		proposals.GET("/:id", middleware.UUIDValidator("id"), h.Proposals.GetProposal)
		proposals.POST("/:id/offer", middleware.UUIDValidator("id"), clientOnly, h.Proposals.CounterOffer)
		proposals.POST("/:id/accept", middleware.UUIDValidator("id"), h.Proposals.AcceptProposal)
		proposals.POST("/:id/reject", middleware.UUIDValidator("id"), h.Proposals.RejectProposal)
		proposals.POST("/:id/withdraw", middleware.UUIDValidator("id"), freelancerOnly, h.Proposals.WithdrawProposal)
	}

	contracts := protected.Group("/contracts")
	{
		contracts.GET("", h.Contracts.ListMyContracts)
		contracts.GET("/:id", middleware.UUIDValidator("id"), h.Contracts.GetContract)
		contracts.POST("/:id/cancel", middleware.UUIDValidator("id"), h.Contracts.CancelContract)
		contracts.POST("/:id/escrow", middleware.UUIDValidator("id"), clientOnly, h.Escrow.InitiateEscrow)
		contracts.GET("/:id/escrow", middleware.UUIDValidator("id"), h.Escrow.GetContractEscrow)
	}

	escrow := protected.Group("/escrow")
	{
		escrow.GET("/:id", middleware.UUIDValidator("id"), h.Escrow.GetEscrow)
		escrow.POST("/:id/verify", middleware.UUIDValidator("id"), h.Escrow.VerifyEscrow)
		escrow.POST("/:id/release", middleware.UUIDValidator("id"), h.Escrow.ReleaseEscrow)
		escrow.POST("/:id/refund", middleware.UUIDValidator("id"), h.Escrow.RefundEscrow)
	}

	disputes := protected.Group("/disputes")
	{
		disputes.GET("", h.Disputes.ListMyDisputes)
		disputes.POST("", h.Disputes.OpenDispute)
		disputes.GET("/:id", middleware.UUIDValidator("id"), h.Disputes.GetDispute)
	}

	wallet := protected.Group("/wallet")
	{
		wallet.GET("", h.Wallet.GetWallet)
		wallet.GET("/transactions", h.Wallet.ListTransactions)
		wallet.POST("/withdraw", middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod), h.Wallet.Withdraw)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notifications.ListNotifications)
		notifications.GET("/unread-count", h.Notifications.CountUnread)
		notifications.POST("/read-all", h.Notifications.MarkAllRead)
		notifications.GET("/:id", middleware.UUIDValidator("id"), h.Notifications.GetNotification)
		notifications.POST("/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkRead)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(valueobject.RoleAdmin))
	{
		admin.GET("/disputes", h.Disputes.ListOpenDisputes)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), h.Disputes.ResolveDispute)
		admin.POST("/disputes/:id/reject", middleware.UUIDValidator("id"), h.Disputes.RejectDispute)
		admin.POST("/escrow/sweep", h.Escrow.SweepPending)
		admin.GET("/wallets/:userId/verify", middleware.UUIDValidator("userId"), h.Wallet.VerifyBalance)
	}

	return r
}

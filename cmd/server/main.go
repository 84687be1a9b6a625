package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/engagement-backend/internal/auth"
	"github.com/ignatzorin/engagement-backend/internal/config"
	"github.com/ignatzorin/engagement-backend/internal/db"
	"github.com/ignatzorin/engagement-backend/internal/goroutine"
	httpRouter "github.com/ignatzorin/engagement-backend/internal/http/router"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/gateway"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/engagement-backend/internal/infrastructure/queue"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/handler"
	"github.com/ignatzorin/engagement-backend/internal/logger"
	"github.com/ignatzorin/engagement-backend/internal/metrics"
	"github.com/ignatzorin/engagement-backend/internal/usecase/contract"
	"github.com/ignatzorin/engagement-backend/internal/usecase/dispute"
	"github.com/ignatzorin/engagement-backend/internal/usecase/escrow"
	"github.com/ignatzorin/engagement-backend/internal/usecase/job"
	"github.com/ignatzorin/engagement-backend/internal/usecase/ledger"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
	"github.com/ignatzorin/engagement-backend/internal/usecase/proposal"
	"github.com/ignatzorin/engagement-backend/internal/ws"
)

const tokenTTL = 24 * time.Hour

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("database connection failed")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.WithError(err).Fatal("migrations failed")
	}

	pool, err := db.NewPgxPool(ctx, cfg.DatabaseURL, int32(cfg.Queue.Workers)+5)
	if err != nil {
		logger.Log.WithError(err).Fatal("pgx pool init failed")
	}
	defer pool.Close()

	if err := queue.Migrate(ctx, pool); err != nil {
		logger.Log.WithError(err).Fatal("queue migrations failed")
	}

	reg := metrics.Default()
	tokens := auth.NewTokenManager(cfg.JWTSecret, tokenTTL)
	uow := persistence.NewUnitOfWork(dbConn)

	// Вебсокеты.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(hubCtx)
	goroutine.SafeGo(hub.Run)

	paymentGateway := gateway.NewClient(gateway.Options{
		BaseURL:     cfg.Gateway.BaseURL,
		SecretKey:   cfg.Gateway.SecretKey,
		CallbackURL: cfg.Gateway.CallbackURL,
		ReturnURL:   cfg.Gateway.ReturnURL,
		Timeout:     cfg.Gateway.Timeout,
		MaxRetries:  cfg.Gateway.MaxRetries,
		RetryBase:   cfg.Gateway.RetryBase,
		RPS:         cfg.Gateway.RPS,
	}, reg)

	escrowCfg := escrow.Config{
		FeePercent: cfg.Escrow.FeePercent,
		PendingTTL: cfg.Escrow.PendingTTL,
	}

	// Доменные сервисы.
	dispatcher := notification.NewDispatcher(uow, hub)
	poster := ledger.NewPoster(reg)
	jobMachine := job.NewMachine(reg)
	formation := contract.NewFormation(jobMachine, dispatcher, reg)
	escrowMachine := escrow.NewMachine(poster, dispatcher, reg)

	reconcileUC := escrow.NewReconcileUseCase(uow, paymentGateway, escrowMachine, jobMachine, dispatcher, reg)
	sweepUC := escrow.NewSweepPendingUseCase(uow, paymentGateway, reconcileUC, escrowMachine, escrowCfg)

	// Очередь фоновых задач.
	jobsQueue, err := queue.New(pool, queue.Config{
		Workers:       cfg.Queue.Workers,
		SweepInterval: cfg.Queue.SweepInterval,
	}, reconcileUC, sweepUC)
	if err != nil {
		logger.Log.WithError(err).Fatal("queue init failed")
	}
	if err := jobsQueue.Start(ctx); err != nil {
		logger.Log.WithError(err).Fatal("queue start failed")
	}

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Jobs: handler.NewJobHandler(
			job.NewCreateJobUseCase(uow, cfg.Escrow.Currency),
			job.NewUpdateJobUseCase(uow, cfg.Escrow.Currency),
			job.NewPublishJobUseCase(uow, jobMachine),
			job.NewDeleteJobUseCase(uow),
			job.NewGetJobUseCase(uow),
			job.NewListJobsUseCase(uow),
			job.NewCompleteJobUseCase(uow, jobMachine, formation, escrowMachine, dispatcher),
		),
		Proposals: handler.NewProposalHandler(
			proposal.NewSubmitProposalUseCase(uow, dispatcher),
			proposal.NewCounterOfferUseCase(uow, dispatcher, reg),
			proposal.NewAcceptProposalUseCase(uow, formation, dispatcher, reg),
			proposal.NewRejectProposalUseCase(uow, dispatcher, reg),
			proposal.NewWithdrawProposalUseCase(uow, dispatcher, reg),
			proposal.NewGetProposalUseCase(uow),
		),
		Contracts: handler.NewContractHandler(
			contract.NewGetContractUseCase(uow),
			contract.NewListMyContractsUseCase(uow),
			contract.NewCancelContractUseCase(uow, formation, jobMachine, dispatcher),
		),
		Escrow: handler.NewEscrowHandler(
			escrow.NewInitiateEscrowUseCase(uow, paymentGateway, escrowCfg),
			escrow.NewGetEscrowUseCase(uow),
			escrow.NewReleaseEscrowUseCase(uow, escrowMachine),
			escrow.NewRefundEscrowUseCase(uow, escrowMachine),
			reconcileUC,
			sweepUC,
			jobsQueue,
			cfg.Gateway.WebhookSecret,
		),
		Disputes: handler.NewDisputeHandler(
			dispute.NewOpenDisputeUseCase(uow, dispatcher, reg),
			dispute.NewResolveDisputeUseCase(uow, escrowMachine, jobMachine, formation, dispatcher, reg),
			dispute.NewRejectDisputeUseCase(uow, dispatcher, reg),
			dispute.NewGetDisputeUseCase(uow),
		),
		Wallet: handler.NewWalletHandler(
			ledger.NewGetWalletUseCase(uow, cfg.Escrow.Currency),
			ledger.NewListTransactionsUseCase(uow),
			ledger.NewWithdrawUseCase(uow, poster, dispatcher),
			ledger.NewVerifyBalanceUseCase(uow),
		),
		Notifications: handler.NewNotificationHandler(
			notification.NewListNotificationsUseCase(uow),
			notification.NewGetNotificationUseCase(uow),
			notification.NewMarkReadUseCase(uow),
			notification.NewMarkAllReadUseCase(uow),
			notification.NewCountUnreadUseCase(uow),
		),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": dbConn.PingContext,
			"queue":    pingPool(pool),
		}),
		WS: handler.NewWSHandler(hub, cfg.AllowedOrigins),
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, handlers, tokens, reg)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goroutine.SafeGo(func() {
		logger.Log.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("http server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Error("http server failed")
			stop()
		}
	})

	<-ctx.Done()

	// Сначала перестаём принимать запросы, затем останавливаем очередь.
	// Пулы закрываются отложенными вызовами после этого.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("http server shutdown failed")
	}
	if err := jobsQueue.Stop(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("queue stop failed")
	}
	stopHub()
	logger.Log.Info("server stopped")
}

func pingPool(pool *pgxpool.Pool) handler.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Warn("database close failed")
	}
}

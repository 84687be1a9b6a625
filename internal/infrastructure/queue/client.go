package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/ignatzorin/engagement-backend/internal/logger"
)

type Config struct {
	Workers       int
	SweepInterval time.Duration
}

// Queue: фоновые задачи эскроу поверх river.
type Queue struct {
	client *river.Client[pgx.Tx]
}

// Migrate создаёт служебные таблицы river.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("queue: не удалось создать мигратор: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("queue: миграции river не применились: %w", err)
	}
	logger.Log.Info("river migrations applied")
	return nil
}

func New(pool *pgxpool.Pool, cfg Config, reconciler Reconciler, sweeper Sweeper) (*Queue, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewReconcileWorker(reconciler))
	river.AddWorker(workers, NewSweepWorker(sweeper))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Workers},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return SweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: не удалось создать клиент river: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

func (q *Queue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}

// EnqueueReconcile ставит сверку платежа в очередь. Дубли за минуту схлопываются.
func (q *Queue) EnqueueReconcile(ctx context.Context, txRef string) error {
	if _, err := q.client.Insert(ctx, ReconcileArgs{TxRef: txRef}, nil); err != nil {
		return fmt.Errorf("queue: не удалось поставить сверку %s: %w", txRef, err)
	}
	return nil
}

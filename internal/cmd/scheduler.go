package cmd

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/cmdutil"
	"github.com/vitalpoint/vitalpoint-backend/internal/distributedlock"
	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
	"github.com/vitalpoint/vitalpoint-backend/internal/repository"
	"github.com/vitalpoint/vitalpoint-backend/internal/worker"
)

const (
	lockTimeout        = 5 * time.Minute
	rejectedRetryBatch = 100
)

func SchedulerCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Args:  cobra.ExactArgs(0),
		Short: "Schedules jobs and runs several maintenance tasks periodically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cmdutil.NewLogger("scheduler")
			defer func() { _ = logger.Sync() }()

			statsd, err := cmdutil.NewStatsdClient()
			if err != nil {
				return err
			}
			defer statsd.Close()

			db, err := cmdutil.NewDatabasePool(ctx, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			redis, err := cmdutil.NewRedisClient(ctx)
			if err != nil {
				return err
			}
			defer redis.Close()

			queue, err := cmdutil.NewQueueClient(logger, redis, "scheduler")
			if err != nil {
				return err
			}

			emails, err := queue.OpenQueue(worker.EmailsQueue)
			if err != nil {
				return err
			}

			locks, err := distributedlock.New(ctx, redis, lockTimeout)
			if err != nil {
				return err
			}

			subRepo := repository.NewPostgresSubscription(db)

			s := gocron.NewScheduler(time.UTC)
			_, _ = s.Every(1).Second().Do(func() { cleanQueues(logger, queue) })
			_, _ = s.Every(1).Minute().Do(func() { reportStats(ctx, logger, statsd, subRepo, queue) })
			_, _ = s.Every(5).Minutes().SingletonMode().Do(func() { retryRejected(logger, emails) })
			_, _ = s.Every(1).Hour().SingletonMode().Do(func() { pruneSubscriptions(ctx, logger, locks, subRepo) })
			s.StartAsync()

			logger.Info("started scheduler")

			<-ctx.Done()

			s.Stop()

			return nil
		},
	}

	return cmd
}

func cleanQueues(logger *zap.Logger, jobsConn rmq.Connection) {
	cleaner := rmq.NewCleaner(jobsConn)
	count, err := cleaner.Clean()
	if err != nil {
		logger.Error("failed to clean jobs from queues", zap.Error(err))
		return
	}

	if count > 0 {
		logger.Info("returned jobs to queues", zap.Int64("count", count))
	}
}

func retryRejected(logger *zap.Logger, queue rmq.Queue) {
	count, err := queue.ReturnRejected(rejectedRetryBatch)
	if err != nil {
		logger.Error("failed to return rejected jobs", zap.Error(err))
		return
	}

	if count > 0 {
		logger.Info("returned rejected jobs to queue", zap.Int64("count", count))
	}
}

func reportStats(ctx context.Context, logger *zap.Logger, statsd statsd.ClientInterface, repo domain.SubscriptionRepository, jobsConn rmq.Connection) {
	stats, err := repo.Stats(ctx)
	if err != nil {
		logger.Error("failed to fetch subscription stats", zap.Error(err))
	} else {
		_ = statsd.Gauge("db.subscriptions.count", float64(stats.Total), []string{}, 1.0)
		_ = statsd.Gauge("db.subscriptions.confirmed", float64(stats.Confirmed), []string{}, 1.0)
	}

	qstats, err := jobsConn.CollectStats([]string{worker.EmailsQueue})
	if err != nil {
		logger.Error("failed to collect queue stats", zap.Error(err))
		return
	}

	for name, qs := range qstats.QueueStats {
		tags := []string{"queue:" + name}
		_ = statsd.Gauge("queue.ready", float64(qs.ReadyCount), tags, 1.0)
		_ = statsd.Gauge("queue.rejected", float64(qs.RejectedCount), tags, 1.0)
	}
}

func pruneSubscriptions(ctx context.Context, logger *zap.Logger, locks *distributedlock.DistributedLock, repo domain.SubscriptionRepository) {
	ran, err := locks.WithLock(ctx, "scheduler:prune-subscriptions", func(ctx context.Context) error {
		before := time.Now().Add(-domain.SubscriptionConfirmationWindow)

		count, err := repo.PruneUnconfirmed(ctx, before)
		if err != nil {
			return err
		}

		if count > 0 {
			logger.Info("pruned unconfirmed subscriptions", zap.Int64("count", count))
		}
		return nil
	})

	if err != nil {
		logger.Error("failed cleaning unconfirmed subscriptions", zap.Error(err))
		return
	}

	if !ran {
		logger.Debug("another scheduler is pruning subscriptions, skipping")
	}
}

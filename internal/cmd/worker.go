package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vitalpoint/vitalpoint-backend/internal/cmdutil"
	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
	"github.com/vitalpoint/vitalpoint-backend/internal/worker"
)

var (
	queues = map[string]worker.NewWorkerFn{
		worker.EmailsQueue: worker.NewEmailsWorker,
	}
)

// mailerMessages loads the mail settings, refusing to start with ones that
// would produce broken emails. The api also delivers the contact form, so it
// needs a recipient for that as well.
func mailerMessages(contact bool) (*mailer.Messages, error) {
	cfg := cmdutil.NewMailerConfig()

	validate := cfg.Validate
	if contact {
		validate = cfg.ValidateContact
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid mail settings: %w", err)
	}

	return mailer.NewMessages(cfg), nil
}

func WorkerCmd(ctx context.Context) *cobra.Command {
	var multiplier int
	var queueID string

	cmd := &cobra.Command{
		Use:   "worker",
		Args:  cobra.ExactArgs(0),
		Short: "Work through job queues.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if queueID == "" {
				return fmt.Errorf("need a queue to work on")
			}

			workerFn, ok := queues[queueID]
			if !ok {
				return fmt.Errorf("invalid queue: %s", queueID)
			}

			messages, err := mailerMessages(false)
			if err != nil {
				return err
			}

			logger := cmdutil.NewLogger("worker")
			defer func() { _ = logger.Sync() }()

			shutdownTracing, err := cmdutil.NewTracing("vitalpoint-worker")
			if err != nil {
				return err
			}
			defer shutdownTracing()

			statsd, err := cmdutil.NewStatsdClient(fmt.Sprintf("queue:%s", queueID))
			if err != nil {
				return err
			}
			defer statsd.Close()

			consumers := runtime.NumCPU() * multiplier

			db, err := cmdutil.NewDatabasePool(ctx, consumers)
			if err != nil {
				return err
			}
			defer db.Close()

			redis, err := cmdutil.NewRedisClient(ctx)
			if err != nil {
				return err
			}
			defer redis.Close()

			queue, err := cmdutil.NewQueueClient(logger, redis, "worker")
			if err != nil {
				return err
			}

			w := workerFn(ctx, worker.Deps{
				Logger:   logger,
				Statsd:   statsd,
				DB:       db,
				Redis:    redis,
				Queue:    queue,
				Sender:   cmdutil.NewSender(logger),
				Messages: messages,
			}, consumers)
			if err := w.Start(); err != nil {
				return err
			}

			<-ctx.Done()

			w.Stop()

			return nil
		},
	}

	cmd.Flags().IntVar(&multiplier, "multiplier", 2, "The multiplier (by CPUs) to run")
	cmd.Flags().StringVar(&queueID, "queue", worker.EmailsQueue, "The queue to work on")

	return cmd
}

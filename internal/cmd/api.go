package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/api"
	"github.com/vitalpoint/vitalpoint-backend/internal/cmdutil"
	"github.com/vitalpoint/vitalpoint-backend/internal/ratelimit"
	"github.com/vitalpoint/vitalpoint-backend/internal/repository"
	"github.com/vitalpoint/vitalpoint-backend/internal/worker"
)

const defaultPort = 5000

func portFromEnv() (int, error) {
	v := os.Getenv("PORT")
	if v == "" {
		return defaultPort, nil
	}
	return strconv.Atoi(v)
}

func APICmd(ctx context.Context) *cobra.Command {
	var (
		contactLimit  int64
		contactWindow time.Duration
		trustProxy    bool
	)

	cmd := &cobra.Command{
		Use:   "api",
		Args:  cobra.ExactArgs(0),
		Short: "Runs the RESTful API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := portFromEnv()
			if err != nil {
				return err
			}

			messages, err := mailerMessages(true)
			if err != nil {
				return err
			}

			logger := cmdutil.NewLogger("api")
			defer func() { _ = logger.Sync() }()

			shutdownTracing, err := cmdutil.NewTracing("vitalpoint-api")
			if err != nil {
				return err
			}
			defer shutdownTracing()

			statsd, err := cmdutil.NewStatsdClient()
			if err != nil {
				return err
			}
			defer statsd.Close()

			db, err := cmdutil.NewDatabasePool(ctx, 4)
			if err != nil {
				return err
			}
			defer db.Close()

			redis, err := cmdutil.NewRedisClient(ctx)
			if err != nil {
				return err
			}
			defer redis.Close()

			queue, err := cmdutil.NewQueueClient(logger, redis, "api")
			if err != nil {
				return err
			}

			emails, err := queue.OpenQueue(worker.EmailsQueue)
			if err != nil {
				return err
			}

			var limiter *ratelimit.Limiter
			if contactLimit > 0 {
				limiter = ratelimit.New(redis, "contact", contactLimit, contactWindow)
			}

			a := api.NewAPI(api.Deps{
				Logger:           logger,
				Statsd:           statsd,
				Sender:           cmdutil.NewSender(logger),
				Messages:         messages,
				Emails:           emails,
				Limiter:          limiter,
				TrustProxy:       trustProxy,
				SubscriptionRepo: repository.NewPostgresSubscription(db),
			})
			srv := a.Server(port)

			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("api server stopped", zap.Error(err))
				}
			}()

			logger.Info("started api", zap.Int("port", port))

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			_ = srv.Shutdown(shutdownCtx)

			return nil
		},
	}

	cmd.Flags().Int64Var(&contactLimit, "contact-limit", 5, "Contact form submissions allowed per client per window (0 disables)")
	cmd.Flags().DurationVar(&contactWindow, "contact-window", 10*time.Minute, "Contact form rate limiting window")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", true, "Rate limit on the address the router appends to X-Forwarded-For")

	return cmd
}

package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	honeycomb "github.com/honeycombio/honeycomb-opentelemetry-go"
	launcher "github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
)

const (
	defaultMailFrom  = "Vitalpoint <no-reply@vitalpoint.app>"
	defaultPublicURL = "http://localhost:5000"
)

const metricsNamespace = "vitalpoint."

// NewLogger builds the logger for one of the service's processes. Outside of
// a deployed ENV the output is human readable.
func NewLogger(service string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if os.Getenv("ENV") == "" {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if err := cfg.Level.UnmarshalText([]byte(lvl)); err != nil {
			fmt.Fprintf(os.Stderr, "ignoring LOG_LEVEL %q: %v\n", lvl, err)
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("service", service))
}

// NewStatsdClient returns a client whose metric names are all prefixed with
// the service namespace and tagged with the deploy environment.
func NewStatsdClient(tags ...string) (*statsd.Client, error) {
	if env := os.Getenv("ENV"); env != "" {
		tags = append(tags, "env:"+env)
	}

	return statsd.New(
		os.Getenv("STATSD_URL"),
		statsd.WithNamespace(metricsNamespace),
		statsd.WithTags(tags),
	)
}

// NewTracing sets up the OpenTelemetry pipeline. Without HONEYCOMB_API_KEY it
// does nothing and returns a no-op shutdown func.
func NewTracing(service string) (func(), error) {
	if os.Getenv("HONEYCOMB_API_KEY") == "" {
		return func() {}, nil
	}

	bsp := honeycomb.NewBaggageSpanProcessor()

	return launcher.ConfigureOpenTelemetry(
		launcher.WithServiceName(service),
		launcher.WithSpanProcessor(bsp),
	)
}

func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	opt, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		return nil, err
	}
	opt.PoolSize = 16

	client := redis.NewClient(opt)
	client.AddHook(redisotel.NewTracingHook())

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

func NewDatabasePool(ctx context.Context, maxConns int) (*pgxpool.Pool, error) {
	if maxConns == 0 {
		maxConns = 1
	}

	url := fmt.Sprintf(
		"%s?pool_max_conns=%d&pool_min_conns=%d",
		os.Getenv("DATABASE_CONNECTION_POOL_URL"),
		maxConns,
		1,
	)
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	// Simple protocol keeps this working behind pgbouncer
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	return pgxpool.NewWithConfig(ctx, config)
}

// NewQueueClient opens an rmq connection. rmq reports background failures,
// like a lost heartbeat, on a channel rather than returning them, so those
// are drained into the log.
func NewQueueClient(logger *zap.Logger, conn *redis.Client, identifier string) (rmq.Connection, error) {
	qlog := logger.Named("rmq").With(zap.String("connection", identifier))

	errs := make(chan error, 10)
	go func() {
		for err := range errs {
			qlog.Error("queue connection error", zap.Error(err))
		}
	}()

	return rmq.OpenConnectionWithRedisClient(identifier, conn, errs)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewMailerConfig() mailer.Config {
	return mailer.Config{
		From:             getenv("MAIL_FROM", defaultMailFrom),
		ContactRecipient: os.Getenv("CONTACT_RECIPIENT"),
		PublicURL:        getenv("PUBLIC_URL", defaultPublicURL),
	}
}

// NewSender returns the smtp2go sender, or one that only logs when smtp2go
// isn't configured.
func NewSender(logger *zap.Logger) mailer.Sender {
	sender, err := mailer.NewSMTP2GoSender()
	if errors.Is(err, mailer.ErrNotConfigured) {
		logger.Warn("SMTP2GO_API_KEY not set, emails will only be logged")
		return mailer.NewLogSender(logger)
	}

	return sender
}

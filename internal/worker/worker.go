package worker

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
)

const pollDuration = 100 * time.Millisecond

type Deps struct {
	Logger *zap.Logger
	Statsd statsd.ClientInterface
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Queue  rmq.Connection

	Sender   mailer.Sender
	Messages *mailer.Messages
}

type NewWorkerFn func(ctx context.Context, deps Deps, consumers int) Worker

type Worker interface {
	Start() error
	Stop()
}

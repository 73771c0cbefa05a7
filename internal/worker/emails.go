package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
	"github.com/vitalpoint/vitalpoint-backend/internal/ratelimit"
	"github.com/vitalpoint/vitalpoint-backend/internal/repository"
)

const EmailsQueue = "emails"

const (
	confirmEmailLimit  = 3
	confirmEmailWindow = 24 * time.Hour
)

type emailsWorker struct {
	context.Context

	logger   *zap.Logger
	statsd   statsd.ClientInterface
	queue    rmq.Connection
	sender   mailer.Sender
	messages *mailer.Messages
	parsers  *fastjson.ParserPool

	// confirmLimiter caps how many confirmation emails one subscription can
	// trigger, since re-subscribing resends them. Nil means no cap.
	confirmLimiter *ratelimit.Limiter

	consumers int

	subscriptionRepo domain.SubscriptionRepository
}

func NewEmailsWorker(ctx context.Context, deps Deps, consumers int) Worker {
	return newEmailsWorker(ctx, deps, repository.NewPostgresSubscription(deps.DB), consumers)
}

func newEmailsWorker(ctx context.Context, deps Deps, repo domain.SubscriptionRepository, consumers int) *emailsWorker {
	var limiter *ratelimit.Limiter
	if deps.Redis != nil {
		limiter = ratelimit.New(deps.Redis, "confirm-email", confirmEmailLimit, confirmEmailWindow)
	}

	return &emailsWorker{
		Context:          ctx,
		logger:           deps.Logger,
		statsd:           deps.Statsd,
		queue:            deps.Queue,
		sender:           deps.Sender,
		messages:         deps.Messages,
		parsers:          &fastjson.ParserPool{},
		confirmLimiter:   limiter,
		consumers:        consumers,
		subscriptionRepo: repo,
	}
}

func (ew *emailsWorker) Start() error {
	queue, err := ew.queue.OpenQueue(EmailsQueue)
	if err != nil {
		return err
	}

	ew.logger.Info("starting up emails worker", zap.Int("consumers", ew.consumers))

	prefetchLimit := int64(ew.consumers * 2)

	if err := queue.StartConsuming(prefetchLimit, pollDuration); err != nil {
		return err
	}

	host, _ := os.Hostname()

	for i := 0; i < ew.consumers; i++ {
		name := fmt.Sprintf("consumer %s-%d", host, i)

		consumer := NewEmailsConsumer(ew, i)
		if _, err := queue.AddConsumer(name, consumer); err != nil {
			return err
		}
	}

	return nil
}

func (ew *emailsWorker) Stop() {
	<-ew.queue.StopAllConsuming() // wait for all Consume() calls to finish
}

type emailsConsumer struct {
	*emailsWorker
	tag int
}

func NewEmailsConsumer(ew *emailsWorker, tag int) *emailsConsumer {
	return &emailsConsumer{ew, tag}
}

func (ec *emailsConsumer) parseJob(payload string) (domain.EmailJob, error) {
	parser := ec.parsers.Get()
	defer ec.parsers.Put(parser)

	v, err := parser.Parse(payload)
	if err != nil {
		return domain.EmailJob{}, err
	}

	job := domain.EmailJob{
		Kind:  domain.EmailJobKind(v.GetStringBytes("kind")),
		Token: string(v.GetStringBytes("token")),
	}
	return job, job.Validate()
}

func (ec *emailsConsumer) Consume(delivery rmq.Delivery) {
	now := time.Now()
	defer func() {
		elapsed := time.Since(now).Milliseconds()
		_ = ec.statsd.Histogram("consumer.runtime", float64(elapsed), []string{"queue:emails"}, 0.1)
	}()

	// A job that can't be parsed never will be; rejecting it would only have
	// the scheduler return it to the queue over and over.
	job, err := ec.parseJob(delivery.Payload())
	if err != nil {
		_ = ec.statsd.Incr("email.dropped", []string{"reason:invalid"}, 1)
		ec.logger.Error("dropping invalid email job", zap.Error(err), zap.String("payload", delivery.Payload()))
		ec.ack(delivery)
		return
	}

	logger := ec.logger.With(zap.String("job#kind", string(job.Kind)), zap.String("subscription#token", job.Token))
	logger.Debug("starting job")

	sub, err := ec.subscriptionRepo.GetByToken(ec, job.Token)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("subscription is gone, skipping")
		ec.ack(delivery)
		return
	}
	if err != nil {
		logger.Error("failed to fetch subscription from database", zap.Error(err))
		ec.reject(delivery)
		return
	}

	if job.Kind == domain.ConfirmSubscriptionEmail && sub.Confirmed() {
		logger.Debug("subscription already confirmed, skipping")
		ec.ack(delivery)
		return
	}

	if job.Kind == domain.ConfirmSubscriptionEmail && !ec.allowConfirmation(logger, sub.Token) {
		_ = ec.statsd.Incr("email.dropped", []string{"reason:throttled"}, 1)
		logger.Info("too many confirmation emails for subscription, skipping")
		ec.ack(delivery)
		return
	}

	email, err := ec.messages.For(job.Kind, &sub)
	if err != nil {
		_ = ec.statsd.Incr("email.dropped", []string{"reason:invalid"}, 1)
		logger.Error("dropping email job that can't be rendered", zap.Error(err))
		ec.ack(delivery)
		return
	}

	tags := []string{fmt.Sprintf("kind:%s", job.Kind)}

	res, err := ec.sender.Send(ec, email)
	if err != nil {
		_ = ec.statsd.Incr("email.errors", tags, 1)
		logger.Error("failed to send email", zap.Error(err))
		ec.reject(delivery)
		return
	}

	_ = ec.statsd.Incr("email.sent", tags, 1)
	logger.Info("sent email", zap.String("request#id", res.RequestID))
	ec.ack(delivery)
}

// allowConfirmation fails open so a Redis hiccup doesn't hold up sign-ups.
func (ec *emailsConsumer) allowConfirmation(logger *zap.Logger, token string) bool {
	if ec.confirmLimiter == nil {
		return true
	}

	d, err := ec.confirmLimiter.Allow(ec, token)
	if err != nil {
		logger.Warn("confirmation limiter unavailable", zap.Error(err))
		return true
	}
	return d.Allowed
}

func (ec *emailsConsumer) ack(delivery rmq.Delivery) {
	if err := delivery.Ack(); err != nil {
		ec.logger.Error("failed to acknowledge message", zap.Error(err))
	}
}

func (ec *emailsConsumer) reject(delivery rmq.Delivery) {
	if err := delivery.Reject(); err != nil {
		ec.logger.Error("failed to reject message", zap.Error(err))
	}
}

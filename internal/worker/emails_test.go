package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
)

const testToken = "5b1a6c56-0a3f-4a5d-9a77-4b8bb6f0bb2e"

type stubSubscriptions struct {
	domain.SubscriptionRepository

	sub domain.Subscription
	err error
}

func (s *stubSubscriptions) GetByToken(_ context.Context, token string) (domain.Subscription, error) {
	if s.err != nil {
		return domain.Subscription{}, s.err
	}
	if token != s.sub.Token {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return s.sub, nil
}

type recordingSender struct {
	sent []*mailer.Email
	err  error
}

func (s *recordingSender) Send(_ context.Context, email *mailer.Email) (*mailer.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, email)
	return &mailer.Result{Success: true, RequestID: "req-1"}, nil
}

func TestEmailsConsumer(t *testing.T) {
	t.Parallel()

	pending := domain.Subscription{ID: 1, Email: "ola@example.com", Token: testToken}
	confirmed := pending
	confirmed.ConfirmedAt = time.Now()

	tt := map[string]struct {
		payload string
		sub     domain.Subscription
		repoErr error
		sendErr error

		state   rmq.State
		subject string
	}{
		"confirmation": {
			`{"kind":"confirm","token":"` + testToken + `"}`, pending, nil, nil,
			rmq.Acked, "Potwierdź zapis do newslettera",
		},
		"welcome": {
			`{"kind":"welcome","token":"` + testToken + `"}`, confirmed, nil, nil,
			rmq.Acked, "Witaj w newsletterze",
		},
		"already confirmed": {
			`{"kind":"confirm","token":"` + testToken + `"}`, confirmed, nil, nil,
			rmq.Acked, "",
		},
		"unsubscribed meanwhile": {
			`{"kind":"welcome","token":"` + testToken + `"}`, domain.Subscription{}, nil, nil,
			rmq.Acked, "",
		},
		"malformed payload": {
			`{"kind":`, pending, nil, nil,
			rmq.Acked, "",
		},
		"unknown kind": {
			`{"kind":"digest","token":"` + testToken + `"}`, pending, nil, nil,
			rmq.Acked, "",
		},
		"missing token": {
			`{"kind":"confirm"}`, pending, nil, nil,
			rmq.Acked, "",
		},
		"database error": {
			`{"kind":"confirm","token":"` + testToken + `"}`, pending, errors.New("connection refused"), nil,
			rmq.Rejected, "",
		},
		"provider error": {
			`{"kind":"confirm","token":"` + testToken + `"}`, pending, nil, errors.New("smtp2go: timeout"),
			rmq.Rejected, "",
		},
	}

	for scenario, tc := range tt {
		tc := tc

		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			sender := &recordingSender{err: tc.sendErr}
			deps := Deps{
				Logger: zap.NewNop(),
				Statsd: &statsd.NoOpClient{},
				Sender: sender,
				Messages: mailer.NewMessages(mailer.Config{
					From:      "robot@vitalpoint.example",
					PublicURL: "https://vitalpoint.example",
				}),
			}
			repo := &stubSubscriptions{sub: tc.sub, err: tc.repoErr}

			ew := newEmailsWorker(context.Background(), deps, repo, 1)
			delivery := rmq.NewTestDeliveryString(tc.payload)

			NewEmailsConsumer(ew, 0).Consume(delivery)

			assert.Equal(t, tc.state, delivery.State)
			if tc.subject == "" {
				assert.Empty(t, sender.sent)
				return
			}
			if assert.Len(t, sender.sent, 1) {
				assert.Equal(t, tc.subject, sender.sent[0].Subject)
				assert.Equal(t, []string{"ola@example.com"}, sender.sent[0].To)
			}
		})
	}
}

func TestEmailsConsumerThrottlesConfirmations(t *testing.T) {
	t.Parallel()

	key := "ratelimit:confirm-email:" + testToken
	pending := domain.Subscription{ID: 1, Email: "ola@example.com", Token: testToken}
	confirmed := pending
	confirmed.ConfirmedAt = time.Now()

	db, mock := redismock.NewClientMock()
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, confirmEmailWindow).SetVal(true)
	mock.ExpectIncr(key).SetVal(confirmEmailLimit + 1)
	mock.ExpectPTTL(key).SetVal(time.Hour)
	mock.ExpectIncr(key).SetErr(errors.New("connection refused"))

	sender := &recordingSender{}
	deps := Deps{
		Logger:   zap.NewNop(),
		Statsd:   &statsd.NoOpClient{},
		Redis:    db,
		Sender:   sender,
		Messages: mailer.NewMessages(mailer.Config{From: "robot@vitalpoint.example", PublicURL: "https://vitalpoint.example"}),
	}
	repo := &stubSubscriptions{sub: pending}
	consumer := NewEmailsConsumer(newEmailsWorker(context.Background(), deps, repo, 1), 0)

	confirm := `{"kind":"confirm","token":"` + testToken + `"}`
	states := []rmq.State{}
	for i := 0; i < 3; i++ {
		delivery := rmq.NewTestDeliveryString(confirm)
		consumer.Consume(delivery)
		states = append(states, delivery.State)
	}

	// Allowed, throttled, then allowed again because the limiter fails open.
	assert.Equal(t, []rmq.State{rmq.Acked, rmq.Acked, rmq.Acked}, states)
	assert.Len(t, sender.sent, 2)

	// Welcome emails are never throttled.
	repo.sub = confirmed
	delivery := rmq.NewTestDeliveryString(`{"kind":"welcome","token":"` + testToken + `"}`)
	consumer.Consume(delivery)
	assert.Equal(t, rmq.Acked, delivery.State)
	assert.Len(t, sender.sent, 3)

	assert.NoError(t, mock.ExpectationsWereMet())
}

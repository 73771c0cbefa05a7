package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/api"
	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
	"github.com/vitalpoint/vitalpoint-backend/internal/ratelimit"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*mailer.Email
	err  error
}

func (s *fakeSender) Send(_ context.Context, email *mailer.Email) (*mailer.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, email)
	return &mailer.Result{Success: true, RequestID: "req-1"}, nil
}

type memorySubscriptions struct {
	mu     sync.Mutex
	nextID int64
	subs   map[string]*domain.Subscription
	err    error
}

func newMemorySubscriptions() *memorySubscriptions {
	return &memorySubscriptions{subs: map[string]*domain.Subscription{}}
}

func (m *memorySubscriptions) GetByToken(_ context.Context, token string) (domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		if sub.Token == token {
			return *sub, nil
		}
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (m *memorySubscriptions) GetByEmail(_ context.Context, email string) (domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[strings.ToLower(email)]; ok {
		return *sub, nil
	}
	return domain.Subscription{}, domain.ErrNotFound
}

func (m *memorySubscriptions) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if _, ok := m.subs[sub.Email]; ok {
		return domain.ErrConflict
	}

	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now()
	cp := *sub
	m.subs[sub.Email] = &cp
	return nil
}

func (m *memorySubscriptions) Confirm(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.subs[sub.Email]
	if !ok {
		return domain.ErrNotFound
	}
	stored.ConfirmedAt = time.Now()
	sub.ConfirmedAt = stored.ConfirmedAt
	return nil
}

func (m *memorySubscriptions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, sub := range m.subs {
		if sub.Token == token {
			delete(m.subs, email)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memorySubscriptions) Stats(context.Context) (domain.SubscriptionStats, error) {
	return domain.SubscriptionStats{}, nil
}

func (m *memorySubscriptions) PruneUnconfirmed(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// flakyQueue fails every publish while failing is set.
type flakyQueue struct {
	rmq.Queue

	mu      sync.Mutex
	failing bool
}

func (q *flakyQueue) setFailing(failing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failing = failing
}

func (q *flakyQueue) PublishBytes(payload ...[]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failing {
		return errors.New("redis: connection refused")
	}
	return q.Queue.PublishBytes(payload...)
}

type testAPI struct {
	handler http.Handler
	sender  *fakeSender
	subs    *memorySubscriptions
	queue   rmq.TestConnection
	emails  *flakyQueue
}

type testOption func(*api.Deps)

func withLimiter(l *ratelimit.Limiter, trustProxy bool) testOption {
	return func(d *api.Deps) {
		d.Limiter = l
		d.TrustProxy = trustProxy
	}
}

func newTestAPI(t *testing.T, opts ...testOption) *testAPI {
	t.Helper()

	conn := rmq.NewTestConnection()
	emails, err := conn.OpenQueue("emails")
	require.NoError(t, err)

	ta := &testAPI{
		sender: &fakeSender{},
		subs:   newMemorySubscriptions(),
		queue:  conn,
		emails: &flakyQueue{Queue: emails},
	}

	deps := api.Deps{
		Logger: zap.NewNop(),
		Statsd: &statsd.NoOpClient{},
		Sender: ta.sender,
		Messages: mailer.NewMessages(mailer.Config{
			From:             "robot@vitalpoint.example",
			ContactRecipient: "hello@vitalpoint.example",
			PublicURL:        "https://vitalpoint.example",
		}),
		Emails:           ta.emails,
		SubscriptionRepo: ta.subs,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	ta.handler = api.NewAPI(deps).Handler()
	return ta
}

func (ta *testAPI) request(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://vitalpoint.example")
	req.RemoteAddr = "203.0.113.7:51234"
	return req
}

func (ta *testAPI) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	return ta.serve(ta.request(method, path, body))
}

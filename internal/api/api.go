package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/bugsnag/bugsnag-go/v2"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/vitalpoint/vitalpoint-backend/internal/domain"
	"github.com/vitalpoint/vitalpoint-backend/internal/mailer"
	"github.com/vitalpoint/vitalpoint-backend/internal/ratelimit"
)

const errorHeader = "X-Vitalpoint-Error"

type api struct {
	logger   *zap.Logger
	statsd   statsd.ClientInterface
	sender   mailer.Sender
	messages *mailer.Messages
	emails   rmq.Queue
	limiter  *ratelimit.Limiter

	trustProxy bool

	subscriptionRepo domain.SubscriptionRepository
}

type Deps struct {
	Logger   *zap.Logger
	Statsd   statsd.ClientInterface
	Sender   mailer.Sender
	Messages *mailer.Messages
	Emails   rmq.Queue

	// Limiter throttles the contact form. Nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// TrustProxy makes the limiter key on the address appended to
	// X-Forwarded-For by the proxy in front of us instead of the peer address.
	TrustProxy bool

	SubscriptionRepo domain.SubscriptionRepository
}

func NewAPI(deps Deps) *api {
	return &api{
		logger:   deps.Logger,
		statsd:   deps.Statsd,
		sender:   deps.Sender,
		messages: deps.Messages,
		emails:   deps.Emails,
		limiter:  deps.Limiter,

		trustProxy: deps.TrustProxy,

		subscriptionRepo: deps.SubscriptionRepo,
	}
}

func (a *api) Server(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           bugsnag.Handler(otelhttp.NewHandler(a.Handler(), "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler is the router wrapped in the middleware that has to run even when
// no route matches, such as CORS preflight.
func (a *api) Handler() http.Handler {
	return cors(a.Routes())
}

func (a *api) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", a.healthCheckHandler).Methods("GET")

	r.HandleFunc("/api/contact", a.rateLimited(a.contactHandler)).Methods("POST")

	r.HandleFunc("/api/newsletter", a.subscribeHandler).Methods("POST")
	r.HandleFunc("/api/newsletter/confirm/{token}", a.confirmSubscriptionHandler).Methods("GET")
	r.HandleFunc("/api/newsletter/unsubscribe/{token}", a.unsubscribeHandler).Methods("GET")
	r.HandleFunc("/api/newsletter/{token}", a.unsubscribeHandler).Methods("DELETE")

	r.HandleFunc("/api/metrics/bmi", a.bmiHandler).Methods("POST")
	r.HandleFunc("/api/metrics/bmr", a.bmrHandler).Methods("POST")

	r.Use(a.loggingMiddleware)

	return r
}

func peerAddr(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "unknown"
	}
	return ip
}

// remoteAddr is the address the client claims to have. It is only fit for
// logging, since anyone can prepend to X-Forwarded-For.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	return peerAddr(r)
}

// clientIP identifies the client for rate limiting. Behind a trusted proxy
// that is the last X-Forwarded-For entry, the one the proxy appended itself.
func (a *api) clientIP(r *http.Request) string {
	if !a.trustProxy {
		return peerAddr(r)
	}

	fwd := r.Header.Values("X-Forwarded-For")
	if len(fwd) == 0 {
		return peerAddr(r)
	}

	last := fwd[len(fwd)-1]
	if i := strings.LastIndexByte(last, ','); i >= 0 {
		last = last[i+1:]
	}
	if ip := strings.TrimSpace(last); ip != "" {
		return ip
	}
	return peerAddr(r)
}

func (a *api) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging health checks
		if r.RequestURI == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []zap.Field{
			zap.Int64("duration", m.Duration.Milliseconds()),
			zap.String("method", r.Method),
			zap.String("remote#addr", remoteAddr(r)),
			zap.Int64("response#bytes", m.Written),
			zap.Int("status", m.Code),
			zap.String("uri", r.RequestURI),
		}

		if m.Code < 400 {
			a.logger.Info("request completed", fields...)
			return
		}

		fields = append(fields, zap.String("err", w.Header().Get(errorHeader)))
		if m.Code >= 500 {
			a.logger.Error("request failed", fields...)
		} else {
			a.logger.Info("request rejected", fields...)
		}
	})
}

package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/davidleathers/vintage-vault-backend/internal/service/bidding"
	"github.com/davidleathers/vintage-vault-backend/internal/service/expertise"
)

// Dependencies holds everything the router serves
type Dependencies struct {
	Bidding       bidding.Service
	Allocator     expertise.Allocator
	Notifications NotificationReader
	Hub           ConnectionRegistrar

	HealthCheckers []HealthChecker
	// Registry receives the HTTP collectors and backs /metrics
	Registry *prometheus.Registry

	Version         string
	JWTSecret       string
	WebhookSecret   string
	AllowedOrigins  []string
	DefaultCurrency string
	Logger          *slog.Logger

	// BidLimiter throttles bid placement per user when BidRateLimit > 0
	BidLimiter    Limiter
	BidRateLimit  int
	BidRateWindow time.Duration
}

// NewRouter builds the API handler with its middleware chain
func NewRouter(deps *Dependencies) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseHandler("v1", logger)
	h := NewHandlers(base, deps)
	auth := NewAuthMiddleware(deps.JWTSecret).Authenticate
	webhook := RequireWebhookSecret(deps.WebhookSecret)

	mux := http.NewServeMux()
	api := func(pattern string, handler http.Handler) {
		mux.Handle(pattern, auth(handler))
	}

	bidLimit := RateLimitMiddleware(deps.BidLimiter, "bids", deps.BidRateLimit, deps.BidRateWindow, logger)
	api("POST /api/v1/items/{id}/bids", bidLimit(h.WrapHandler("PlaceBid", h.placeBid, WithStatus(http.StatusCreated))))
	api("GET /api/v1/items/{id}/bids", h.WrapHandler("ListBids", h.listBids))
	api("POST /api/v1/items/{id}/finalize", h.WrapHandler("Finalize", h.finalize))

	api("GET /api/v1/requests/{id}/experts", h.WrapHandler("RankExperts", h.rankExperts))
	api("POST /api/v1/requests/{id}/assignments", h.WrapHandler("Assign", h.assignExpert, WithStatus(http.StatusCreated)))
	api("POST /api/v1/requests/{id}/auto-assign", h.WrapHandler("AutoAssign", h.autoAssign, WithStatus(http.StatusCreated)))
	api("POST /api/v1/requests/auto-assign", h.WrapHandler("BulkAutoAssign", h.bulkAutoAssign))
	api("POST /api/v1/assignments/{id}/respond", h.WrapHandler("Respond", h.respond))
	api("POST /api/v1/assignments/{id}/reassign", h.WrapHandler("Reassign", h.reassign))

	api("GET /api/v1/notifications", h.WrapHandler("ListNotifications", h.listNotifications))
	api("GET /api/v1/ws", http.HandlerFunc(h.serveWebsocket))

	mux.Handle("POST /api/v1/payments/confirmations",
		webhook(h.WrapHandler("ConfirmPayment", h.confirmPayment)))

	mux.Handle("GET /healthz", newHealthHandler(deps.Version, deps.HealthCheckers))

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	httpMetrics, err := NewHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	handler := Chain(mux,
		RecoveryMiddleware(logger),
		SecurityHeadersMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		httpMetrics.Middleware(),
	)
	return otelhttp.NewHandler(handler, "vintage-vault-api",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	), nil
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopchat-core/api/controllers"
	webhookcontrollers "github.com/angelmondragon/shopchat-core/api/controllers/webhooks"
	"github.com/angelmondragon/shopchat-core/api/middleware"
	"github.com/angelmondragon/shopchat-core/internal/assistant"
	"github.com/angelmondragon/shopchat-core/internal/cron"
	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/pkg/config"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/redis"
)

// Params carries everything the router mounts.
type Params struct {
	Config       *config.Config
	Logger       *logger.Logger
	Gatherer     prometheus.Gatherer
	DB           controllers.Pinger
	Redis        controllers.Pinger
	Limiter      redis.RateLimiter
	Inbound      *assistant.InboundService
	Orders       orders.Service
	Reconciler   webhookcontrollers.PaymentReconciler
	WebhookGuard webhookcontrollers.InFlightGuard
	Sweeper      *cron.OrderExpiryJob
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(p.Reconciler, cfg.Gateway.WebhookSecret, p.WebhookGuard, logg))
	})

	chatLimit := middleware.RateLimitPolicy{
		Name:   "chat-ingress",
		Limit:  cfg.Assistant.RateLimit * 10,
		Window: cfg.Assistant.RateWindow,
	}
	r.Route("/api/v1/chat", func(r chi.Router) {
		r.With(middleware.RateLimit(chatLimit, p.Limiter, logg)).Post("/inbound", controllers.ChatInbound(p.Inbound, logg))
	})

	r.Route("/api/v1/shops/{shopId}", func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.Cron.Token, logg))
		r.Post("/orders/{orderId}/status", controllers.OrderTransition(p.Orders, logg))
	})

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.Cron.Token, logg))
		r.Post("/expire-orders", controllers.ExpireOrders(p.Sweeper, logg))
	})

	return r
}

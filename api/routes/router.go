package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiendly/tiendly-backend/api/controllers"
	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/internal/ledger"
	"github.com/tiendly/tiendly-backend/internal/notifications"
	"github.com/tiendly/tiendly-backend/internal/orders"
	"github.com/tiendly/tiendly-backend/internal/receipts"
	"github.com/tiendly/tiendly-backend/internal/users"
	"github.com/tiendly/tiendly-backend/pkg/config"
	"github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	usersSvc users.Service,
	ordersSvc orders.Service,
	ledgerSvc ledger.Service,
	receiptsSvc receipts.Service,
	notificationsSvc notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/healthz/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", controllers.Login(usersSvc, cfg.JWT, logg))

		// Order creation accepts guests carrying only an email.
		r.With(middleware.OptionalAuth(cfg.JWT, logg)).
			Post("/orders", controllers.CreateOrder(ordersSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/orders", controllers.ListOrders(ordersSvc, logg))
			r.Get("/orders/{orderID}", controllers.OrderDetail(ordersSvc, logg))

			r.Route("/points", func(r chi.Router) {
				r.Get("/balance", controllers.PointsBalance(ledgerSvc, logg))
				r.Get("/transactions", controllers.PointsHistory(ledgerSvc, logg))
			})

			r.Route("/receipts", func(r chi.Router) {
				r.Post("/", controllers.CreateReceipt(receiptsSvc, logg))
				r.Get("/", controllers.ListReceipts(receiptsSvc, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
				r.Get("/unread-count", controllers.UnreadNotificationCount(notificationsSvc, logg))
				r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(logg))

				r.Post("/orders/{orderID}/status", controllers.TransitionOrder(ordersSvc, logg))
				r.Post("/orders/{orderID}/line-items/{lineItemID}/codes", controllers.AssignRedemptionCodes(ordersSvc, logg))
				r.Post("/users/{userID}/points", controllers.AdjustUserPoints(ledgerSvc, logg))
				r.Post("/receipts/{number}/verify", controllers.VerifyReceipt(receiptsSvc, logg))
			})
		})
	})

	return r
}

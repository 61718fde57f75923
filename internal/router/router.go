// internal/router/router.go
package router

import (
	"net/http"
	"strings"
	"time"

	"remittance-service/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UserIDHeader carries the caller identity set by the API gateway
const UserIDHeader = "X-User-ID"

type Handlers struct {
	Transfers  *handler.TransferHandler
	Wallets    *handler.WalletHandler
	Recipients *handler.RecipientHandler
	Webhooks   *handler.WebhookHandler
	Health     *handler.HealthHandler
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func SetupRoutes(h Handlers, opts Options, logger *zap.Logger) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserIDHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// providers authenticate with signatures, not the gateway header
		r.Post("/webhooks/{provider}", h.Webhooks.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/quotes", h.Transfers.Quote)
			r.Post("/transfers", h.Transfers.Initiate)
			r.Get("/transfers/{reference}", h.Transfers.Get)

			r.Get("/wallet", h.Wallets.GetWallet)
			r.Post("/deposits", h.Wallets.Deposit)

			r.Post("/recipients", h.Recipients.Create)
			r.Get("/recipients", h.Recipients.List)
		})
	})

	return r
}

// RequireUser rejects requests without a caller identity
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]interface{}{
				"success": false,
				"message": "missing user identity",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(handler.WithUserID(r.Context(), userID)))
	})
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}

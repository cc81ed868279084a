package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterOptions configures authentication and CORS for the HTTP surface
type RouterOptions struct {
	JWTSecret          string
	InternalAPIKey     string
	CORSAllowedOrigins []string
	ServiceName        string
}

// NewRouter creates the HTTP handler with all routes configured
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireUser(opts.JWTSecret))

		r.Get("/wallet", h.GetWallet)
		r.Get("/wallet/transactions", h.GetTransactions)

		r.Route("/cashouts", func(r chi.Router) {
			r.Post("/quote", h.QuoteCashout)
			r.Post("/", h.RequestCashout)
			r.Get("/{id}", h.GetCashout)
		})

		r.Route("/destination-account", func(r chi.Router) {
			r.Get("/", h.GetDestinationAccount)
			r.Post("/", h.SetupDestinationAccount)
			r.Post("/sync", h.SyncDestinationAccount)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(RequireAPIKey(opts.InternalAPIKey))
		r.Post("/ledger/entries", h.CreateLedgerEntry)
		r.Post("/wallets/{userId}/status", h.SetWalletStatus)
		r.Get("/wallets/{userId}/verify", h.VerifyWallet)
	})

	r.Post("/webhooks/processor", h.ProcessorWebhook)

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "itc-wallet"
	}
	return otelhttp.NewHandler(r, serviceName)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start),
			"requestId": middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	})
}

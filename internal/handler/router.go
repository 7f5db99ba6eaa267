package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/port"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// probe reports whether the local cache is usable.
func NewRouter(app *service.App, tokens *service.TokenIssuer, probe port.Pinger, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(app, probe))
	r.Get("/readyz", readyzHandler(app))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(app, tokens, metrics, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(tokens, app, logger))

			// Session
			r.Post("/auth/logout", logoutHandler(app))
			r.Get("/session", getSessionHandler(app))
			r.Put("/session/period", selectPeriodHandler(app, logger))
			r.Post("/session/history", showHistoryHandler(app))
			r.Put("/session/theme", setThemeHandler(app, logger))

			// Ledger
			r.Get("/transactions", listTransactionsHandler(app))
			r.Post("/transactions", addTransactionHandler(app, logger))
			r.Delete("/transactions/{id}", deleteTransactionHandler(app, logger))

			r.Get("/categories", listCategoriesHandler(app))
			r.Post("/categories", addCategoryHandler(app, logger))
			r.Delete("/categories/{id}", deleteCategoryHandler(app, logger))

			r.Get("/energy-bills", listEnergyBillsHandler(app))
			r.Post("/energy-bills", addEnergyBillHandler(app, logger))
			r.Get("/energy-bills/summary", energySummaryHandler(app))
			r.Delete("/energy-bills/{id}", deleteEnergyBillHandler(app, logger))

			// Views
			r.Get("/dashboard", dashboardHandler(app, metrics))
			r.Get("/history", historyHandler(app))

			// Accounts (administrators)
			r.Get("/accounts", listAccountsHandler(app, logger))
			r.Post("/accounts", addAccountHandler(app, logger))
			r.Delete("/accounts/{email}", deleteAccountHandler(app, logger))

			r.Get("/metrics/sync", syncMetricsHandler(metrics))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(app *service.App, probe port.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "finanzo-api", Status: "healthy", LastChecked: now},
		}

		if probe != nil {
			local := domain.ServiceHealth{Name: "local-cache", Status: "healthy", LastChecked: now}
			if err := probe.Ping(r.Context()); err != nil {
				local.Status = "unhealthy"
				local.Detail = err.Error()
			}
			services = append(services, local)
		}

		remote := domain.ServiceHealth{Name: "supabase", Status: "healthy", LastChecked: now}
		if app != nil && !app.Session().Remote {
			remote.Status = "degraded"
			remote.Detail = "no remote session; changes stay local"
		}
		services = append(services, remote)

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		status := http.StatusOK
		if overallStatus == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

// readyzHandler reports ready once init has finished.
func readyzHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app != nil && app.Session().Loading {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func syncMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSyncSnapshot())
	}
}

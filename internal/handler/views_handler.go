package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/service"
)

func dashboardHandler(app *service.App, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()
		start := time.Now()
		defer func() { metrics.RecordRequestDuration("dashboard", time.Since(start)) }()

		writeJSON(w, http.StatusOK, app.Dashboard(start))
	}
}

func historyHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.History())
	}
}

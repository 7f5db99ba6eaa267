package handler

import (
	"net/http"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session state
// ============================================================

func getSessionHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Session())
	}
}

type periodRequest struct {
	Period *string `json:"period"`
}

// selectPeriodHandler accepts {"period": "2024-03"}; null selects every period.
func selectPeriodHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req periodRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var p *domain.Period
		if req.Period != nil && *req.Period != "" {
			parsed, err := domain.ParsePeriod(*req.Period)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			p = &parsed
		}

		app.SelectPeriod(p)
		writeJSON(w, http.StatusOK, app.Session())
	}
}

func showHistoryHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.ShowHistory()
		writeJSON(w, http.StatusOK, app.Session())
	}
}

type themeRequest struct {
	Theme domain.Theme `json:"theme"`
}

func setThemeHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/session/theme")
		defer span.End()

		var req themeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := app.SetTheme(ctx, req.Theme); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, app.Session())
	}
}

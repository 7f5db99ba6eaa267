package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Autenticação
// ============================================================

func loginHandler(app *service.App, tokens *service.TokenIssuer, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()
		start := time.Now()
		defer func() { metrics.RecordRequestDuration("login", time.Since(start)) }()

		var req domain.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email e senha são obrigatórios")
			return
		}

		user, err := app.Login(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := tokens.Issue(user)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func logoutHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		app.Logout(ctx)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Sessão encerrada."})
	}
}

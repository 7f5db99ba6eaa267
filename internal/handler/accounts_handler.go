package handler

import (
	"net/http"
	"net/url"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := app.Accounts()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func addAccountHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.NewAccount
		if !decodeJSON(w, r, &req) {
			return
		}

		accounts, err := app.AddAccount(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		actor, _ := UserFromContext(ctx)
		span.SetAttributes(attribute.String("actor", actor.Email))
		logger.Info("account added",
			zap.String("actor", actor.Email),
			zap.String("email", domain.NormalizeEmail(req.Email)),
		)
		writeJSON(w, http.StatusCreated, accounts)
	}
}

func deleteAccountHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{email}")
		defer span.End()

		email, err := url.PathUnescape(chi.URLParam(r, "email"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "e-mail inválido")
			return
		}

		accounts, err := app.DeleteAccount(ctx, email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		actor, _ := UserFromContext(ctx)
		span.SetAttributes(attribute.String("actor", actor.Email))
		logger.Info("account deleted",
			zap.String("actor", actor.Email),
			zap.String("email", domain.NormalizeEmail(email)),
		)
		writeJSON(w, http.StatusOK, accounts)
	}
}

package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// parseType reads the optional ?type= filter.
func parseType(w http.ResponseWriter, r *http.Request) (domain.TransactionType, bool) {
	typ := domain.TransactionType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeError(w, http.StatusBadRequest, "type deve ser INCOME ou EXPENSE")
		return "", false
	}
	return typ, true
}

// ============================================================
// Transações
// ============================================================

// listTransactionsHandler lists the selected period's transactions.
func listTransactionsHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ, ok := parseType(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, app.VisibleTransactions(typ))
	}
}

func addTransactionHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var t domain.Transaction
		if !decodeJSON(w, r, &t) {
			return
		}
		t.ID = ""
		if t.Date == "" {
			t.Date = app.DefaultEntryDate(time.Now())
		}

		txs, err := app.Store().AddTransaction(ctx, t)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, txs)
	}
}

func deleteTransactionHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		txs, err := app.Store().DeleteTransaction(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

// ============================================================
// Categorias
// ============================================================

func listCategoriesHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ, ok := parseType(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, service.CategoriesOfType(app.Store().Categories(), typ))
	}
}

func addCategoryHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var c domain.Category
		if !decodeJSON(w, r, &c) {
			return
		}
		c.ID = ""

		cats, err := app.Store().AddCategory(ctx, c)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cats)
	}
}

func deleteCategoryHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{id}")
		defer span.End()

		cats, err := app.Store().DeleteCategory(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

// ============================================================
// Contas de energia
// ============================================================

func listEnergyBillsHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.Store().EnergyBills())
	}
}

func addEnergyBillHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/energy-bills")
		defer span.End()

		var b domain.EnergyBill
		if !decodeJSON(w, r, &b) {
			return
		}
		b.ID = ""

		bills, err := app.Store().AddEnergyBill(ctx, b)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, bills)
	}
}

func deleteEnergyBillHandler(app *service.App, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/energy-bills/{id}")
		defer span.End()

		bills, err := app.Store().DeleteEnergyBill(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bills)
	}
}

func energySummaryHandler(app *service.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, app.EnergySummary())
	}
}

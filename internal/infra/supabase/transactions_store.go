package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/finanzo-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// supabaseTransaction maps the transactions table.
type supabaseTransaction struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id,omitempty"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	CategoryID  *string `json:"category_id"`
	Type        string  `json:"type"`
}

// ListTransactions returns the user's transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, sess *domain.RemoteSession) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", sess.UserID))

	var transactions []domain.Transaction

	err := c.read(ctx, "supabase/transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&select=id,description,amount,date,category_id,type&order=date.desc",
			url.QueryEscape(sess.UserID))
		body, err := c.doRequest(ctx, http.MethodGet, path, sess.AccessToken)
		if err != nil {
			return classify(err)
		}

		transactions = []domain.Transaction{}
		if body == nil {
			return nil
		}

		var rows []supabaseTransaction
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode transactions: %w", err)
		}
		for _, r := range rows {
			t := domain.Transaction{
				ID:          r.ID,
				Description: r.Description,
				Amount:      r.Amount,
				Date:        dateOnly(r.Date),
				Type:        domain.TransactionType(r.Type),
			}
			if r.CategoryID != nil {
				t.CategoryID = localCategoryID(sess.UserID, *r.CategoryID)
			}
			transactions = append(transactions, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("transactions.count", len(transactions)))
	return transactions, nil
}

// InsertTransaction writes one row owned by the session user.
func (c *Client) InsertTransaction(ctx context.Context, sess *domain.RemoteSession, t domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransaction")
	defer span.End()

	row := supabaseTransaction{
		ID:          t.ID,
		UserID:      sess.UserID,
		Description: t.Description,
		Amount:      t.Amount,
		Date:        t.Date,
		CategoryID:  remoteCategoryID(sess.UserID, t.CategoryID),
		Type:        string(t.Type),
	}
	return c.write("supabase/transactions", func() error {
		_, err := c.doPost(ctx, "transactions", sess.AccessToken, row)
		return classify(err)
	})
}

// DeleteTransaction removes a row by id. A row that is already gone is
// not an error.
func (c *Client) DeleteTransaction(ctx context.Context, sess *domain.RemoteSession, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()

	return c.write("supabase/transactions", func() error {
		return classify(c.doDelete(ctx, "transactions?id=eq."+url.QueryEscape(id), sess.AccessToken))
	})
}

// dateOnly trims a timestamp down to YYYY-MM-DD.
func dateOnly(s string) string {
	if len(s) > len(domain.DateLayout) {
		return s[:len(domain.DateLayout)]
	}
	return s
}

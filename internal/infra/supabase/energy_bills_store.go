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

// supabaseEnergyBill maps the energy_bills table. The provider columns
// keep the names of the two utilities the table was designed for.
type supabaseEnergyBill struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id,omitempty"`
	MonthYear       string  `json:"month_year"`
	KWh             float64 `json:"kwh"`
	CPFLTotal       float64 `json:"cpfl_total"`
	SerenaTotal     float64 `json:"serena_total"`
	DiscountApplied bool    `json:"discount_applied"`
}

// ListEnergyBills returns the user's bills ordered by month_year descending.
func (c *Client) ListEnergyBills(ctx context.Context, sess *domain.RemoteSession) ([]domain.EnergyBill, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEnergyBills")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", sess.UserID))

	var bills []domain.EnergyBill

	err := c.read(ctx, "supabase/energy_bills", func() error {
		path := fmt.Sprintf("energy_bills?user_id=eq.%s&select=id,month_year,kwh,cpfl_total,serena_total,discount_applied&order=month_year.desc",
			url.QueryEscape(sess.UserID))
		body, err := c.doRequest(ctx, http.MethodGet, path, sess.AccessToken)
		if err != nil {
			return classify(err)
		}

		bills = []domain.EnergyBill{}
		if body == nil {
			return nil
		}

		var rows []supabaseEnergyBill
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode energy bills: %w", err)
		}
		for _, r := range rows {
			bills = append(bills, domain.EnergyBill{
				ID:              r.ID,
				Period:          r.MonthYear,
				KWh:             r.KWh,
				ProviderATotal:  r.CPFLTotal,
				ProviderBTotal:  r.SerenaTotal,
				DiscountApplied: r.DiscountApplied,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (c *Client) InsertEnergyBill(ctx context.Context, sess *domain.RemoteSession, b domain.EnergyBill) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertEnergyBill")
	defer span.End()

	row := supabaseEnergyBill{
		ID:              b.ID,
		UserID:          sess.UserID,
		MonthYear:       b.Period,
		KWh:             b.KWh,
		CPFLTotal:       b.ProviderATotal,
		SerenaTotal:     b.ProviderBTotal,
		DiscountApplied: b.DiscountApplied,
	}
	return c.write("supabase/energy_bills", func() error {
		_, err := c.doPost(ctx, "energy_bills", sess.AccessToken, row)
		return classify(err)
	})
}

func (c *Client) DeleteEnergyBill(ctx context.Context, sess *domain.RemoteSession, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEnergyBill")
	defer span.End()

	return c.write("supabase/energy_bills", func() error {
		return classify(c.doDelete(ctx, "energy_bills?id=eq."+url.QueryEscape(id), sess.AccessToken))
	})
}

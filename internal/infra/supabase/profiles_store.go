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

// supabaseProfile maps the profiles table.
type supabaseProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Theme string `json:"theme"`
}

// GetProfile fetches the profile row of the session user. A missing row
// is ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, sess *domain.RemoteSession) (*domain.RemoteProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", sess.UserID))

	var profile *domain.RemoteProfile

	err := c.read(ctx, "supabase/profiles", func() error {
		path := fmt.Sprintf("profiles?id=eq.%s&select=id,name,role,theme&limit=1", url.QueryEscape(sess.UserID))
		body, err := c.doRequest(ctx, http.MethodGet, path, sess.AccessToken)
		if err != nil {
			return classify(err)
		}

		var rows []supabaseProfile
		if body != nil {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode profile: %w", err)
			}
		}
		if len(rows) == 0 {
			return nil
		}

		p := rows[0]
		profile = &domain.RemoteProfile{
			ID:    p.ID,
			Name:  p.Name,
			Role:  domain.Role(p.Role),
			Theme: domain.Theme(p.Theme),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: sess.UserID}
	}
	return profile, nil
}

// UpdateProfileTheme stores the theme preference on the profile row.
func (c *Client) UpdateProfileTheme(ctx context.Context, sess *domain.RemoteSession, theme domain.Theme) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfileTheme")
	defer span.End()

	return c.write("supabase/profiles", func() error {
		path := fmt.Sprintf("profiles?id=eq.%s", url.QueryEscape(sess.UserID))
		return classify(c.doPatch(ctx, path, sess.AccessToken, map[string]any{"theme": string(theme)}))
	})
}

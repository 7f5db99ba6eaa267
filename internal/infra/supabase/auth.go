package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// GoTrue (Supabase Auth), implements port.RemoteAuth
// ============================================================

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         authUser `json:"user"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (t *tokenResponse) session(now time.Time) *domain.RemoteSession {
	expires := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	if t.ExpiresAt > 0 {
		expires = time.Unix(t.ExpiresAt, 0)
	}
	return &domain.RemoteSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expires,
		UserID:       t.User.ID,
		Email:        t.User.Email,
	}
}

// SignInWithPassword exchanges e-mail and password for a session.
// Wrong credentials come back as ErrUnauthorized.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.RemoteSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	return c.grant(ctx, "password", map[string]string{"email": email, "password": password})
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.RemoteSession, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RefreshSession")
	defer span.End()

	return c.grant(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) grant(ctx context.Context, grantType string, payload map[string]string) (*domain.RemoteSession, error) {
	var tok tokenResponse
	err := resilience.Execute(c.cb, "supabase/auth", func() error {
		body, err := c.doAuth(ctx, http.MethodPost, "token?grant_type="+grantType, "", payload)
		if err != nil {
			return resilience.Unmark(classifyAuth(err))
		}
		return json.Unmarshal(body, &tok)
	})
	if err != nil {
		return nil, wrap("supabase/auth", err)
	}
	if tok.AccessToken == "" {
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: fmt.Errorf("empty access token")}
	}
	return tok.session(time.Now()), nil
}

// GetUser resolves the identity behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*domain.RemoteUser, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	var u authUser
	err := c.read(ctx, "supabase/auth", func() error {
		body, err := c.doAuth(ctx, http.MethodGet, "user", accessToken, nil)
		if err != nil {
			return classifyAuth(err)
		}
		return json.Unmarshal(body, &u)
	})
	if err != nil {
		return nil, err
	}
	return &domain.RemoteUser{ID: u.ID, Email: u.Email}, nil
}

// SignOut revokes the session on the server.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	return c.write("supabase/auth", func() error {
		_, err := c.doAuth(ctx, http.MethodPost, "logout", accessToken, nil)
		return classifyAuth(err)
	})
}

// classifyAuth maps GoTrue's 400 invalid_grant to ErrUnauthorized.
func classifyAuth(err error) error {
	if se, ok := err.(*statusError); ok && se.Code == http.StatusBadRequest {
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "Credenciais inválidas."})
	}
	return classify(err)
}

func (c *Client) doAuth(ctx context.Context, method, path, accessToken string, payload any) ([]byte, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: auth request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: auth non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &statusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

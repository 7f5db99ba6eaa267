package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const userKey contextKey = "user"

// JWTAuthMiddleware validates Bearer tokens against the issuer and the
// dashboard session. A token outlives a logout, so its subject must still
// be the logged-in user.
func JWTAuthMiddleware(tokens *service.TokenIssuer, app *service.App, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			claims, err := tokens.Validate(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			user, ok := app.CurrentUser()
			if !ok || user.Email != claims.Subject {
				logger.Warn("auth: token does not match the active session",
					zap.String("path", r.URL.Path),
					zap.String("subject", claims.Subject),
				)
				writeError(w, http.StatusUnauthorized, "Sessão encerrada. Faça login novamente.")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (domain.UserProfile, bool) {
	u, ok := ctx.Value(userKey).(domain.UserProfile)
	return u, ok
}

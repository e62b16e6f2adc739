package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/counterline/poscore/api/responses"
	pkgauth "github.com/counterline/poscore/pkg/auth"
	"github.com/counterline/poscore/pkg/config"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

type contextKey string

const claimsContextKey contextKey = "device_claims"

// DeviceAuth validates the terminal's bearer token and checks that it was
// minted for this register.
func DeviceAuth(cfg config.AuthConfig, terminalID string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseDeviceToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if terminalID != "" && claims.TerminalID != terminalID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token issued for another terminal"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			if logg != nil {
				ctx = logg.WithTerminalID(ctx, claims.TerminalID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the device claims seeded by DeviceAuth.
func ClaimsFromContext(ctx context.Context) *pkgauth.DeviceTokenClaims {
	claims, _ := ctx.Value(claimsContextKey).(*pkgauth.DeviceTokenClaims)
	return claims
}

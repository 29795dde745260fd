package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/labstack/echo/v4"
)

// TokenKey holds the raw session token in the echo context.
const TokenKey = "sessionToken"

// Authenticator resolves a session token. *identity.Provider satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, session string) (*identity.Identity, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// SessionAuth verifies the session token and stores the identity in the
// echo context. When required is false, requests without a valid token
// pass through anonymously.
func SessionAuth(auth Authenticator, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c)
			if !ok {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "Missing or malformed Authorization header")
				}
				return next(c)
			}

			id, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session")
				}
				return next(c)
			}

			c.Set(TokenKey, token)
			c.SetRequest(c.Request().WithContext(identity.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// CurrentIdentity returns the identity set by SessionAuth, or nil.
func CurrentIdentity(c echo.Context) *identity.Identity {
	return identity.FromContext(c.Request().Context())
}

// RequireIdentity rejects requests that SessionAuth left anonymous.
func RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentIdentity(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Sign in required")
		}
		return next(c)
	}
}

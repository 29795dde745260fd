package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// SessionProvider is the identity surface the HTTP layer needs
type SessionProvider interface {
	SignIn(ctx context.Context, idToken string) (*identity.Identity, string, error)
	SignOut(ctx context.Context, session string) error
	Authenticate(ctx context.Context, session string) (*identity.Identity, error)
}

// AuthHandler handles sign-in and sign-out
type AuthHandler struct {
	provider SessionProvider
	profiles repositories.ProfileRepository
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(provider SessionProvider, profiles repositories.ProfileRepository) *AuthHandler {
	return &AuthHandler{provider: provider, profiles: profiles}
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/auth/signin", h.SignIn)
	g.POST("/auth/signout", h.SignOut, middleware.RequireIdentity)
	g.GET("/me", h.Me, middleware.RequireIdentity)
}

// SignIn exchanges a Firebase ID token for a session token
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req models.SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	id, token, err := h.provider.SignIn(c.Request().Context(), req.IDToken)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "identity": id})
}

// SignOut revokes the current session token
func (h *AuthHandler) SignOut(c echo.Context) error {
	token, _ := c.Get(middleware.TokenKey).(string)
	if err := h.provider.SignOut(c.Request().Context(), token); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in identity and its profile
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.CurrentIdentity(c)
	profile, err := h.profiles.GetProfile(c.Request().Context(), id.UID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"identity": id,
		"profile":  models.NewProfileResponse(profile, id.UID),
		"settings": profile.Settings(),
	})
}

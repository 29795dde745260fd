package handlers

import (
	"net/http"

	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const anonymousUID = "anonymous"

// WorryHandler stores "let it go" notes
type WorryHandler struct {
	repo repositories.WorryRepository
}

// NewWorryHandler creates a new WorryHandler
func NewWorryHandler(repo repositories.WorryRepository) *WorryHandler {
	return &WorryHandler{repo: repo}
}

// RegisterWorryRoutes registers worry routes
func (h *WorryHandler) RegisterWorryRoutes(g *echo.Group) {
	g.POST("/worries", h.CreateWorry)
	g.GET("/worries/count", h.CountWorries, middleware.RequireIdentity)
}

// CreateWorry stores a worry, anonymously when no session is present
func (h *WorryHandler) CreateWorry(c echo.Context) error {
	var req models.CreateWorryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	worry := &models.Worry{UID: anonymousUID, UserName: "Anonymous", Text: req.Text}
	if id := middleware.CurrentIdentity(c); id != nil {
		worry.UID = id.UID
		worry.UserName = id.DisplayName
	}

	if err := h.repo.CreateWorry(c.Request().Context(), worry); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, worry)
}

// CountWorries reports how many worries the caller has let go
func (h *WorryHandler) CountWorries(c echo.Context) error {
	id := middleware.CurrentIdentity(c)
	n, err := h.repo.CountWorries(c.Request().Context(), id.UID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

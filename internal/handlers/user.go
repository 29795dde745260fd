package handlers

import (
	"net/http"

	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/repositories"
	"github.com/anonto42/lofi-room/backend/internal/room"
	"github.com/labstack/echo/v4"
)

// UserHandler handles profile, follow and room requests
type UserHandler struct {
	engine    *feed.Engine
	profiles  repositories.ProfileRepository
	autosaver *room.Autosaver
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(engine *feed.Engine, profiles repositories.ProfileRepository, autosaver *room.Autosaver) *UserHandler {
	return &UserHandler{engine: engine, profiles: profiles, autosaver: autosaver}
}

// RegisterProfileRoutes registers profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/:id", h.GetProfile)
	g.POST("/users/:id/follow", h.ToggleFollow, middleware.RequireIdentity)
	g.GET("/users/:id/room", h.GetRoom)
	g.GET("/scenes", h.GetScenes)
	g.PUT("/room/settings", h.UpdateRoomSettings, middleware.RequireIdentity)
}

// GetProfile returns a profile with the viewer's follow state
func (h *UserHandler) GetProfile(c echo.Context) error {
	profile, err := h.profiles.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, models.NewProfileResponse(profile, viewerID(c)))
}

// ToggleFollow follows or unfollows a user
func (h *UserHandler) ToggleFollow(c echo.Context) error {
	ctx := c.Request().Context()
	who := middleware.CurrentIdentity(c)
	targetID := c.Param("id")
	if who.UID == targetID {
		return toHTTPError(models.ErrSelfFollow)
	}

	target, err := h.profiles.GetProfile(ctx, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	following, err := h.engine.ToggleFollow(ctx, who, target)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"uid": target.UID, "following": following})
}

// GetRoom returns the room a profile renders
func (h *UserHandler) GetRoom(c echo.Context) error {
	profile, err := h.profiles.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, room.ViewOf(profile))
}

// GetScenes returns the scene catalogue
func (h *UserHandler) GetScenes(c echo.Context) error {
	return c.JSON(http.StatusOK, room.Scenes())
}

// UpdateRoomSettings queues the caller's room settings for autosave
func (h *UserHandler) UpdateRoomSettings(c echo.Context) error {
	var req models.UpdateRoomSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	settings := models.RoomSettings{IsLightsOn: *req.IsLightsOn, CurrentSceneIndex: *req.CurrentSceneIndex}
	if err := h.autosaver.Schedule(middleware.CurrentIdentity(c).UID, settings); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusAccepted, settings)
}

package router

import (
	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/handlers"
	"github.com/anonto42/lofi-room/backend/internal/middleware"
	"github.com/anonto42/lofi-room/backend/internal/repositories"
	"github.com/anonto42/lofi-room/backend/internal/room"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Deps are the long-lived components the routes are built from
type Deps struct {
	Engine      *feed.Engine
	Provider    handlers.SessionProvider
	Profiles    repositories.ProfileRepository
	Worries     repositories.WorryRepository
	Autosaver   *room.Autosaver
	CORSOrigins []string
	Log         logrus.FieldLogger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) {
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	api.Use(middleware.SessionAuth(d.Provider, false))
	d.Log.Info("Session middleware applied to /api/v1 group.")

	authHandler := handlers.NewAuthHandler(d.Provider, d.Profiles)
	authHandler.RegisterAuthRoutes(api)
	d.Log.Info("Auth routes configured.")

	postHandler := handlers.NewPostHandler(d.Engine)
	postHandler.RegisterPostRoutes(api)
	d.Log.Info("Post routes configured.")

	commentHandler := handlers.NewCommentHandler(d.Engine)
	commentHandler.RegisterCommentRoutes(api)
	d.Log.Info("Comment routes configured.")

	userHandler := handlers.NewUserHandler(d.Engine, d.Profiles, d.Autosaver)
	userHandler.RegisterProfileRoutes(api)
	d.Log.Info("User and room routes configured.")

	if d.Worries != nil {
		worryHandler := handlers.NewWorryHandler(d.Worries)
		worryHandler.RegisterWorryRoutes(api)
		d.Log.Info("Worry routes configured.")
	}

	realtimeHandler := handlers.NewRealtimeHandler(d.Engine, d.Provider, d.CORSOrigins, d.Log)
	realtimeHandler.RegisterRealtimeRoutes(api)
	d.Log.Info("Realtime routes configured.")

	d.Log.Info("All routes configured.")
}

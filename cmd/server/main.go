package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/feed"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/media"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/moderation"
	"github.com/anonto42/lofi-room/backend/internal/repositories"
	"github.com/anonto42/lofi-room/backend/internal/room"
	"github.com/anonto42/lofi-room/backend/internal/router"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/anonto42/lofi-room/backend/internal/validators"
	"github.com/anonto42/lofi-room/backend/pkg/config"
	"github.com/anonto42/lofi-room/backend/pkg/firebase"
	"github.com/anonto42/lofi-room/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if !cfg.EnvFileLoaded() {
		log.Info("No .env file found, assuming environment variables are set.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	fb, err := firebase.InitFirebase(ctx, firebase.Options{
		CredentialsPath: cfg.FirebaseCredentialsPath,
		ProjectID:       cfg.FirebaseProjectID,
		StorageBucket:   cfg.FirebaseStorageBucket,
	}, log)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}
	defer fb.Close()

	var st store.RemoteStore
	switch cfg.StoreBackend {
	case "firestore":
		st = store.NewFirestoreStore(fb.Firestore)
	case "mongo":
		st = store.NewMongoStore(db.Mongo.Database(cfg.MongoDatabase))
	case "memory":
		st = store.NewMemoryStore()
	default:
		log.Fatalf("Unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	log.WithField("backend", cfg.StoreBackend).Info("Document store initialized.")

	var uploader media.Uploader
	if fb.Bucket != nil {
		uploader = media.NewFirebaseStorageUploader(fb.Bucket, fb.BucketName, "posts")
	} else {
		log.Warn("FIREBASE_STORAGE_BUCKET not set, posts with files will fail to upload")
	}

	var checker moderation.Checker
	if cfg.ModerationURL != "" {
		checker = moderation.NewClassifierClient(cfg.ModerationURL, cfg.ModerationThreshold, cfg.ModerationTimeout, log)
	} else {
		log.Warn("MODERATION_URL not set, images are not moderated")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		broker, err := config.InitBroker(cfg.AMQPURL, log)
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ: %v", err)
		}
		defer broker.Close()
		publisher = events.NewAMQPPublisher(broker.Channel, events.DefaultExchange)
	}

	var worries repositories.WorryRepository
	if db.Postgres != nil {
		if err := db.Postgres.AutoMigrate(&models.Worry{}); err != nil {
			log.Fatalf("Failed to auto migrate models: %v", err)
		}
		log.Info("PostgreSQL auto-migrations completed.")
		worries = repositories.NewPostgresWorryRepository(db.Postgres)
	}

	profiles := repositories.NewStoreProfileRepository(st, db.Redis, cfg.ProfileCacheTTL, log)
	tokens := identity.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL, db.Redis)
	provider := identity.NewProvider(fb.AuthClient, profiles, tokens, log)
	engine := feed.NewEngine(st, checker, uploader, publisher, profiles, log)
	autosaver := room.NewAutosaver(profiles, cfg.AutosaveDelay, log)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e, cfg, log)
	router.SetupRoutes(e, router.Deps{
		Engine:      engine,
		Provider:    provider,
		Profiles:    profiles,
		Worries:     worries,
		Autosaver:   autosaver,
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	})

	metricsServer := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Metrics server shutdown failed")
	}
	autosaver.Close()
	log.Info("Pending room settings flushed.")
}

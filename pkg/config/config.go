package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Env         string
	MetricsPort string
	LogLevel    string

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseStorageBucket   string

	// StoreBackend selects the document store: firestore, mongo or memory.
	StoreBackend  string
	MongoURI      string
	MongoDatabase string
	PostgresUrl   string
	RedisAddr     string
	AMQPURL       string

	JWTSecret       string
	SessionTTL      time.Duration
	ProfileCacheTTL time.Duration

	ModerationURL       string
	ModerationThreshold float64
	ModerationTimeout   time.Duration

	AutosaveDelay time.Duration
	CORSOrigins   []string

	envFileLoaded bool
}

// Load reads .env when present and then the process environment.
func Load() *Config {
	envFileLoaded := godotenv.Load() == nil

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("METRICS_PORT", "9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json")
	v.SetDefault("STORE_BACKEND", "firestore")
	v.SetDefault("MONGO_DATABASE", "lofiroom")
	v.SetDefault("JWT_SECRET", "supersecretjwtkey")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("MODERATION_THRESHOLD", 0.6)
	v.SetDefault("MODERATION_TIMEOUT", "5s")
	v.SetDefault("AUTOSAVE_DELAY", "1s")
	v.SetDefault("CORS_ORIGINS", "*")

	cfg := &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		MetricsPort:             v.GetString("METRICS_PORT"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseStorageBucket:   v.GetString("FIREBASE_STORAGE_BUCKET"),
		StoreBackend:            strings.ToLower(v.GetString("STORE_BACKEND")),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DATABASE"),
		PostgresUrl:             v.GetString("POSTGRES_URL"),
		RedisAddr:               v.GetString("REDIS_ADDR"),
		AMQPURL:                 v.GetString("AMQP_URL"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		SessionTTL:              v.GetDuration("SESSION_TTL"),
		ProfileCacheTTL:         v.GetDuration("PROFILE_CACHE_TTL"),
		ModerationURL:           v.GetString("MODERATION_URL"),
		ModerationThreshold:     v.GetFloat64("MODERATION_THRESHOLD"),
		ModerationTimeout:       v.GetDuration("MODERATION_TIMEOUT"),
		AutosaveDelay:           v.GetDuration("AUTOSAVE_DELAY"),
		CORSOrigins:             strings.Split(v.GetString("CORS_ORIGINS"), ","),
		envFileLoaded:           envFileLoaded,
	}
	return cfg
}

// EnvFileLoaded reports whether a .env file was found.
func (c *Config) EnvFileLoaded() bool { return c.envFileLoaded }

func (c *Config) IsProduction() bool { return c.Env == "production" }

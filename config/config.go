package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Firebase FirebaseConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

// EngineConfig holds the notification engine tunables. Tests construct
// services with much shorter windows; these are the deployment defaults.
type EngineConfig struct {
	PushBatchHold      time.Duration // batched queue entries wait this long before the sweep collapses them
	PushSweepInterval  time.Duration
	BadgeReadRetention time.Duration // read notifications stay in the bell feed this long
	ReminderOffset     time.Duration // completion reminder fires this long after the scheduled time
	ReminderSweep      time.Duration
	Debounce           time.Duration // reconciler per-id coalescing window
	ReloadDebounce     time.Duration // reconciler full-collection fallback window
}

func Load() *Config {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         env("PORT", "8090"),
			Env:          env("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             env("DATABASE_DSN", "curbside:curbside@tcp(localhost:3306)/curbside?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret:  env("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: env("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "curbside",
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: env("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Engine: EngineConfig{
			PushBatchHold:      envDuration("PUSH_BATCH_HOLD", 3*time.Minute),
			PushSweepInterval:  envDuration("PUSH_SWEEP_INTERVAL", 30*time.Second),
			BadgeReadRetention: envDuration("BADGE_READ_RETENTION", time.Hour),
			ReminderOffset:     envDuration("REMINDER_OFFSET", 2*time.Hour),
			ReminderSweep:      envDuration("REMINDER_SWEEP_INTERVAL", time.Minute),
			Debounce:           envDuration("RECONCILE_DEBOUNCE", 500*time.Millisecond),
			ReloadDebounce:     envDuration("RECONCILE_RELOAD_DEBOUNCE", 5*time.Second),
		},
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface shared by the
// field agent and the ingestion server.
type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	API      APIConfig
	Agent    AgentConfig
	Location LocationConfig
	Geofence GeofenceConfig
	Sync     SyncConfig
}

// ServerConfig holds ingestion HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for the ingestion store.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// APIConfig points the agent at the ingestion service.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AgentConfig holds device-side options.
type AgentConfig struct {
	Port      string // local listener for /healthz and /metrics
	QueuePath string // SQLite file backing the offline queue
}

// LocationConfig tunes the position resolver.
type LocationConfig struct {
	Window         time.Duration
	TightAccuracyM float64
	LooseAccuracyM float64
}

// GeofenceConfig holds the fallback tolerance used when the server-side
// setting cannot be fetched.
type GeofenceConfig struct {
	DefaultToleranceM float64
}

// SyncConfig tunes the connectivity monitor and the replay safety net.
type SyncConfig struct {
	ProbeInterval time.Duration
	ReplayCron    string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "salestrack"),
		},
		API: APIConfig{
			BaseURL: getenvWithDefault("SALES_API_BASE_URL", "http://localhost:8080"),
			Timeout: getenvDuration("SALES_API_TIMEOUT_SECONDS", 15*time.Second),
		},
		Agent: AgentConfig{
			Port:      getenvWithDefault("AGENT_PORT", "9090"),
			QueuePath: getenvWithDefault("OFFLINE_QUEUE_PATH", "salestrack-queue.db"),
		},
		Location: LocationConfig{
			Window:         getenvDuration("LOCATION_WINDOW_SECONDS", 20*time.Second),
			TightAccuracyM: getenvFloat("LOCATION_TIGHT_ACCURACY_M", 50),
			LooseAccuracyM: getenvFloat("LOCATION_LOOSE_ACCURACY_M", 200),
		},
		Geofence: GeofenceConfig{
			DefaultToleranceM: getenvFloat("GEOFENCE_TOLERANCE_M", 200),
		},
		Sync: SyncConfig{
			ProbeInterval: getenvDuration("SYNC_PROBE_INTERVAL_SECONDS", 30*time.Second),
			ReplayCron:    getenvWithDefault("SYNC_REPLAY_CRON", "*/5 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and sane.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI must be provided")
	}
	if c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.API.BaseURL == "" {
		return errors.New("SALES_API_BASE_URL must be provided")
	}

	if c.Agent.QueuePath == "" {
		return errors.New("OFFLINE_QUEUE_PATH must be provided")
	}

	switch {
	case c.Location.Window <= 0:
		return errors.New("LOCATION_WINDOW_SECONDS must be positive")
	case c.Location.TightAccuracyM <= 0:
		return errors.New("LOCATION_TIGHT_ACCURACY_M must be positive")
	case c.Location.LooseAccuracyM < c.Location.TightAccuracyM:
		return errors.New("LOCATION_LOOSE_ACCURACY_M must not be below the tight threshold")
	}

	if c.Geofence.DefaultToleranceM <= 0 {
		return errors.New("GEOFENCE_TOLERANCE_M must be positive")
	}

	if c.Sync.ProbeInterval <= 0 {
		return errors.New("SYNC_PROBE_INTERVAL_SECONDS must be positive")
	}
	if c.Sync.ReplayCron == "" {
		return errors.New("SYNC_REPLAY_CRON must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

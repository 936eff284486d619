package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Queue   QueueConfig
	Tracker TrackerConfig
	Handoff HandoffConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

// BackendConfig locates the platform service the feeds are read from.
type BackendConfig struct {
	BaseURL        string
	AITriagePath   string
	BookingPath    string
	DoctorPath     string
	CaseStatusPath string
}

type QueueConfig struct {
	DoctorID         string
	PollInterval     time.Duration
	LocationTimeout  time.Duration
	DefaultLatitude  float64
	DefaultLongitude float64
}

type TrackerConfig struct {
	CaseID       string
	PollInterval time.Duration
}

type HandoffConfig struct {
	URL string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 10),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("TRIAGE_BASE_URL", "http://localhost:3000/api"),
			AITriagePath:   getEnv("AI_TRIAGE_PATH", "/emergencies/ai-triage"),
			BookingPath:    getEnv("BOOKING_PATH", "/emergencies/appointments"),
			DoctorPath:     getEnv("DOCTOR_PATH", "/doctors"),
			CaseStatusPath: getEnv("CASE_STATUS_PATH", "/cases"),
		},
		Queue: QueueConfig{
			DoctorID:         getEnv("DOCTOR_ID", ""),
			PollInterval:     getEnvDuration("QUEUE_POLL_INTERVAL", 30*time.Second),
			LocationTimeout:  getEnvDuration("LOCATION_TIMEOUT", 30*time.Second),
			DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 12.9716),
			DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", 77.5946),
		},
		Tracker: TrackerConfig{
			CaseID:       getEnv("TRACKER_CASE_ID", ""),
			PollInterval: getEnvDuration("TRACKER_POLL_INTERVAL", 5*time.Second),
		},
		Handoff: HandoffConfig{
			URL: getEnv("HANDOFF_URL", ""),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/triage-queue.db"),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("TRIAGE_BASE_URL is required")
	}

	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue poll interval must be positive")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker poll interval must be positive")
	}
	if c.Queue.LocationTimeout <= 0 {
		return fmt.Errorf("location timeout must be positive")
	}

	lat, lng := c.Queue.DefaultLatitude, c.Queue.DefaultLongitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid default latitude: %v", lat)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return fmt.Errorf("invalid default longitude: %v", lng)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

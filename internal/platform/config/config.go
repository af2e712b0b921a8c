package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	SessionSecret          string        `env:"SESSION_SECRET"`
	SessionTimeout         time.Duration `env:"SESSION_TIMEOUT" default:"24h"`
	SessionStore           string        `env:"SESSION_STORE" default:"memory"`
	RedisURL               string        `env:"REDIS_URL"`
	UsersFile              string        `env:"USERS_FILE"`
	AuthRevalidateInterval time.Duration `env:"AUTH_REVALIDATE_INTERVAL" default:"0s"`

	TelemetryInterval  time.Duration `env:"TELEMETRY_INTERVAL" default:"500ms"`
	TelemetryAutostart bool          `env:"TELEMETRY_AUTOSTART" default:"true"`

	MaxWebSocketConnections int           `env:"MAX_WEBSOCKET_CONNECTIONS" default:"1000"`
	MaxConnectionsPerIP     int           `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionRatePerSecond float64       `env:"CONNECTION_RATE_PER_SECOND" default:"5"`
	ConnectionRateBurst     int           `env:"CONNECTION_RATE_BURST" default:"10"`
	WebSocketSendBuffer     int           `env:"WS_SEND_BUFFER" default:"16"`
	WebSocketWriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" default:"5s"`

	ThermalFPS     float64 `env:"THERMAL_FPS" default:"10"`
	ThermalSeed    int64   `env:"THERMAL_SEED" default:"0"`
	HeatmapSize    int     `env:"HEATMAP_SIZE" default:"320"`
	HeatmapTempMin float64 `env:"HEATMAP_TEMP_MIN" default:"18"`
	HeatmapTempMax float64 `env:"HEATMAP_TEMP_MAX" default:"45"`
	HeatmapQuality int     `env:"HEATMAP_QUALITY" default:"85"`

	MQTTBroker   string `env:"MQTT_BROKER"`
	MQTTClientID string `env:"MQTT_CLIENT_ID" default:"aquawing-groundstation"`
	MQTTTopic    string `env:"MQTT_TOPIC" default:"aquawing/telemetry"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}

	switch cfg.SessionStore {
	case "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", cfg.SessionStore)
	}

	if cfg.IsProduction() && cfg.UsersFile == "" {
		return errors.New("USERS_FILE is required in production")
	}

	if cfg.SessionTimeout <= 0 {
		return errors.New("SESSION_TIMEOUT must be positive")
	}
	if cfg.AuthRevalidateInterval < 0 {
		return errors.New("AUTH_REVALIDATE_INTERVAL must not be negative")
	}
	if cfg.TelemetryInterval <= 0 {
		return errors.New("TELEMETRY_INTERVAL must be positive")
	}

	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.ConnectionRatePerSecond <= 0 || cfg.ConnectionRateBurst < 1 {
		return errors.New("CONNECTION_RATE_PER_SECOND and CONNECTION_RATE_BURST must be positive")
	}
	if cfg.WebSocketSendBuffer < 1 {
		return errors.New("WS_SEND_BUFFER must be at least 1")
	}
	if cfg.WebSocketWriteTimeout <= 0 {
		return errors.New("WS_WRITE_TIMEOUT must be positive")
	}

	if cfg.ThermalFPS <= 0 {
		return errors.New("THERMAL_FPS must be positive")
	}
	if cfg.HeatmapSize < 8 || cfg.HeatmapSize > 2048 {
		return fmt.Errorf("HEATMAP_SIZE must be between 8 and 2048, got %d", cfg.HeatmapSize)
	}
	if cfg.HeatmapQuality < 1 || cfg.HeatmapQuality > 100 {
		return fmt.Errorf("HEATMAP_QUALITY must be between 1 and 100, got %d", cfg.HeatmapQuality)
	}

	return nil
}

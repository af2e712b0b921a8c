package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/httpserver"
	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	mqttadapter "github.com/Ahmedmecatronique/AquaWing/internal/adapter/mqtt"
	redisadapter "github.com/Ahmedmecatronique/AquaWing/internal/adapter/redis"
	"github.com/Ahmedmecatronique/AquaWing/internal/app"
	"github.com/Ahmedmecatronique/AquaWing/internal/auth"
	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/config"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/logging"
	"github.com/Ahmedmecatronique/AquaWing/internal/simulator"
)

const shutdownTimeout = 10 * time.Second

// Used only outside production when USERS_FILE is unset.
var developmentUsers = map[string]string{"admin": "aquawing"}

func runGracefulShutdown(srv *httpserver.Server, publisher *app.Publisher, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		publisher.Stop()
		hub.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := redisadapter.NewClient(ctx, cfg.RedisURL, m)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupVerifier(cfg *config.Config) *auth.CredentialVerifier {
	if cfg.UsersFile != "" {
		verifier, err := auth.LoadUsersFile(cfg.UsersFile)
		if err != nil {
			slog.Error("Failed to load users file", "path", cfg.UsersFile, "error", err)
			os.Exit(1)
		}
		return verifier
	}

	slog.Warn("USERS_FILE not set, using development credentials")
	verifier, err := auth.DevelopmentVerifier(developmentUsers)
	if err != nil {
		slog.Error("Failed to create development credentials", "error", err)
		os.Exit(1)
	}
	return verifier
}

func setupMQTT(ctx context.Context, cfg *config.Config) *mqttadapter.Sink {
	sink, err := mqttadapter.Connect(ctx, mqttadapter.Config{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
	})
	if err != nil {
		// Telemetry still reaches WebSocket clients without the broker.
		slog.Error("Failed to connect to MQTT broker, continuing without it", "broker", cfg.MQTTBroker, "error", err)
		return nil
	}
	slog.Info("Publishing telemetry to MQTT", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	return sink
}

func thermalSeed(cfg *config.Config) uint64 {
	if cfg.ThermalSeed != 0 {
		return uint64(cfg.ThermalSeed)
	}
	return rand.Uint64()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()
	m := metrics.NewSet(registry)

	var (
		store        domain.SessionStore = auth.NewMemoryStore()
		healthChecks []httpserver.HealthCheck
	)
	if cfg.SessionStore == "redis" {
		redisClient := setupRedis(context.Background(), cfg, m.Redis)
		defer func() { _ = redisClient.Close() }()

		store = redisadapter.NewSessionStore(redisClient)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	sessions := auth.NewSessionManager(store, clock, cfg.SessionTimeout)

	hub := broadcast.NewHub(broadcast.Config{
		MaxClients:   cfg.MaxWebSocketConnections,
		SendBuffer:   cfg.WebSocketSendBuffer,
		WriteTimeout: cfg.WebSocketWriteTimeout,
		PingInterval: broadcast.DefaultPingInterval,
	}, clock, m.Hub)
	healthChecks = append(healthChecks, httpserver.HealthCheck{
		Name: "hub",
		Check: func(context.Context) error {
			if !hub.Running() {
				return domain.ErrHubStopped
			}
			return nil
		},
	})

	model := simulator.NewPositionModel()
	flight := simulator.NewFlightController(model)
	publisher := app.NewPublisher(hub, model, clock, cfg.TelemetryInterval, m.Telemetry)

	if cfg.MQTTBroker != "" {
		if sink := setupMQTT(context.Background(), cfg); sink != nil {
			defer sink.Close()
			publisher.AddSink("mqtt", sink)
		}
	}

	thermalParams := simulator.DefaultThermalParams()
	thermalParams.FPS = cfg.ThermalFPS
	thermal := simulator.NewThermalSimulator(thermalParams, thermalSeed(cfg))

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Sessions:       sessions,
		Credentials:    setupVerifier(cfg),
		Hub:            hub,
		Telemetry:      publisher,
		Commands:       app.NewCommandService(flight, clock, m.Telemetry),
		Flight:         flight,
		Thermal:        thermal,
		Clock:          clock,
		Registry:       registry,
		HTTPMetrics:    m.HTTP,
		HubMetrics:     m.Hub,
		HeatmapMetrics: m.Heatmap,
		HealthChecks:   healthChecks,
	})

	if cfg.TelemetryAutostart {
		publisher.Start()
	}

	done := runGracefulShutdown(srv, publisher, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

// Command intake runs the counseling intake HTTP API.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/counseling-intake/internal/application"
	"github.com/example/counseling-intake/internal/calendar"
	"github.com/example/counseling-intake/internal/config"
	httptransport "github.com/example/counseling-intake/internal/http"
	"github.com/example/counseling-intake/internal/messaging"
	"github.com/example/counseling-intake/internal/persistence/sqlite"
	"github.com/example/counseling-intake/internal/persistence/sqlite/migration"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("intake server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	policy := buildPolicy(cfg)
	now := time.Now

	requestService := application.NewRequestServiceWithLogger(store.Requests(), store.Users(), policy, uuid.NewString, now, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(store.Requests(), store.Users(), policy, cfg.AvailabilityCacheTTL, now, logger)
	requestService.SetAvailabilityInvalidator(availabilityService)

	var publisher application.RequestEventPublisher = messaging.NoopPublisher{}
	if cfg.AMQPURL != "" {
		broker, brokerErr := messaging.NewRabbitMQBroker(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if brokerErr != nil {
			logger.Error("message broker unavailable, lifecycle events disabled", "error", brokerErr)
		} else {
			publisher = broker
			defer func() {
				if cerr := broker.Close(); cerr != nil {
					logger.Error("failed to close message broker", "error", cerr)
				}
			}()
		}
	}
	requestService.SetEventPublisher(publisher)

	userService := application.NewUserService(store.Users(), nil, uuid.NewString, now)
	authService := application.NewAuthServiceWithLogger(store.Users(), store.Sessions(), nil, sessionTokenGenerator, now, cfg.SessionTTL, logger)

	metrics := httptransport.NewMetrics(prometheus.DefaultRegisterer)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Requests:     httptransport.NewRequestHandler(requestService, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Health: func(r *http.Request) error {
			return store.Ping(r.Context())
		},
		MetricsHandler:    promhttp.Handler(),
		SessionMiddleware: httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			metrics.Middleware(),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down server cleanly", "error", err)
		}
	}()

	logger.Info("intake API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	<-shutdownDone
	return nil
}

func buildPolicy(cfg config.Config) *calendar.Policy {
	return calendar.NewPolicy(calendar.Config{
		Location:    cfg.Location(),
		StartTime:   cfg.BusinessHoursStart,
		EndTime:     cfg.BusinessHoursEnd,
		StepMinutes: cfg.SlotStepMinutes,
		Holidays:    cfg.Holidays,
	})
}

// sessionTokenGenerator returns a 64 character hex token. The auth service
// calls it twice per login, once for the session id and once for the token.
func sessionTokenGenerator() string {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

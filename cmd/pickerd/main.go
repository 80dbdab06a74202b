package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lessonbook/internal/api"
	"lessonbook/internal/audit"
	"lessonbook/internal/config"
	"lessonbook/internal/metrics"
	"lessonbook/internal/pricing"
	"lessonbook/internal/provider"
	"lessonbook/internal/selection"
	"lessonbook/internal/widget"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PICKERD_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Provider.BaseURL == "" {
		logger.Fatal().Msg("set provider.base_url in config")
	}

	client := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey,
		cfg.Provider.RatePerSecond, cfg.Provider.Burst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Provider.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, time.Duration(cfg.Provider.CacheTTLSeconds)*time.Second)
	}

	var journal *audit.Journal
	if cfg.Audit.Enabled {
		journal, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("open audit journal error")
		}
		defer journal.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	guard := pricing.NewGuard(client)
	loc := cfg.Location()
	sink := intentLogger{logger: &logger}

	opener := func(ctx context.Context, instructor widget.Instructor, service widget.Service, initial *selection.Initial) *widget.Session {
		opts := widget.Options{
			Location:       loc,
			FetchAheadDays: cfg.Server.FetchAheadDays,
		}
		if journal != nil {
			opts.Journal = journal
		}
		return widget.Open(ctx, client, sink, guard, instructor, service, initial, logger, opts)
	}

	store := api.NewSessionStore(cfg.SessionTTL())
	go runSessionCleanup(ctx, store, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, rdb, cfg.ShutdownTimeout(), &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, cfg.ShutdownTimeout(), &logger)
	}

	server := api.NewHTTPServer(store, opener, &logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Routes(),
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
		store.CloseAll()
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("lessonbook picker started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

// intentLogger is the default sink: it logs confirmed intents for the
// downstream booking pipeline to pick up.
type intentLogger struct {
	logger *zerolog.Logger
}

func (s intentLogger) Submit(_ context.Context, intent widget.BookingIntent) error {
	s.logger.Info().
		Str("instructor_id", intent.InstructorID).
		Str("service_id", intent.ServiceID).
		Str("date", intent.Date).
		Str("start", intent.StartTime).
		Str("end", intent.EndTime).
		Int("duration", intent.DurationMinutes).
		Int64("price_cents", intent.PriceCents).
		Msg("booking intent")
	return nil
}

func runSessionCleanup(ctx context.Context, store *api.SessionStore, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := store.Cleanup(); removed > 0 {
				logger.Info().Int("removed", removed).Msg("cleaned up idle sessions")
			}
		case <-ctx.Done():
			return
		}
	}
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, shutdownTimeout time.Duration, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rdb != nil {
			ctxPing, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, shutdownTimeout time.Duration, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

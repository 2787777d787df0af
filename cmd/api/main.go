package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"garage/internal/api"
	"garage/internal/config"
	"garage/internal/database"
	"garage/internal/domain"
	"garage/internal/events"
	"garage/internal/export"
	"garage/internal/google"
	"garage/internal/logging"
	"garage/internal/metrics"
	"garage/internal/models"
	"garage/internal/repository"
	"garage/internal/service"
	"garage/internal/upload"
	"garage/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	staff, err := loadStaff(logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, staff, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	rateStore := initRateLimitStore(redisClient, logger)

	sheetsService := initGoogleSheets(cfg, logger)

	var syncWorker domain.SyncWorker
	if sheetsService != nil {
		journalWorker := worker.NewJournalWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, *logger)
		go journalWorker.Start(ctx)
		syncWorker = journalWorker
	}

	eventBus := events.NewEventBus()
	subscribeRequestEvents(eventBus, logger)

	uploader, err := upload.NewDiskStorage(cfg.Uploads.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Uploads.Path).Msg("init upload storage")
		return err
	}

	dbTimeout := time.Duration(cfg.Engine.DBTimeoutSeconds) * time.Second
	requestService := service.NewRequestService(db, eventBus, syncWorker, dbTimeout, logger)
	progressService := service.NewProgressService(db, uploader, eventBus, dbTimeout, logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, *logger)

	httpServer := api.NewHTTPServer(cfg.API, requestService, progressService, exporter, rateStore, *logger)

	startMetrics(ctx, cfg, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

// subscribeRequestEvents привязывает обработчики к шине событий.
func subscribeRequestEvents(bus *events.EventBus, logger *zerolog.Logger) {
	if bus == nil {
		return
	}

	transitionHandler := func(ev *events.Event) error {
		var payload events.RequestEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		if payload.Status == "" {
			logger.Error().Int64("request_id", payload.RequestID).Msg("event bus: missing status")
			return nil
		}
		metrics.IncTransition(payload.Status)
		return nil
	}

	bus.Subscribe(events.EventStatusChanged, transitionHandler)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

// staffConfig seeds the users and vehicles tables from configs/staff.yaml.
type staffConfig struct {
	Users    []models.User    `yaml:"users"`
	Vehicles []models.Vehicle `yaml:"vehicles"`
}

func loadStaff(logger *zerolog.Logger) (*staffConfig, error) {
	staffPath := os.Getenv("STAFF_PATH")
	if staffPath == "" {
		staffPath = "configs/staff.yaml"
	}

	data, err := os.ReadFile(staffPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("staff_path", staffPath).Msg("staff file missing, skipping seed")
			return &staffConfig{}, nil
		}
		logger.Error().Err(err).Str("staff_path", staffPath).Msg("read staff")
		return nil, err
	}

	var staff staffConfig
	if err := yaml.Unmarshal(data, &staff); err != nil {
		logger.Error().Err(err).Str("staff_path", staffPath).Msg("parse staff")
		return nil, err
	}
	return &staff, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, staff *staffConfig, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	ctx := context.Background()
	for i := range staff.Users {
		if err := db.UpsertUser(ctx, &staff.Users[i]); err != nil {
			logger.Error().Err(err).Int64("user_id", staff.Users[i].ID).Msg("seed user")
		}
	}
	for i := range staff.Vehicles {
		if err := db.UpsertVehicle(ctx, &staff.Vehicles[i]); err != nil {
			logger.Error().Err(err).Int64("vehicle_id", staff.Vehicles[i].ID).Msg("seed vehicle")
		}
	}
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initRateLimitStore(redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimitStore {
	memory := repository.NewMemoryRateLimitStore()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimitStore(repository.NewRedisRateLimitStore(redisClient), memory, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.JournalSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without journal sync")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

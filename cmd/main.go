package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"monitoring-service/internal/config"
	"monitoring-service/internal/database/minio"
	"monitoring-service/internal/database/postgres"
	"monitoring-service/internal/database/redis"
	"monitoring-service/internal/event"
	"monitoring-service/internal/gateway"
	"monitoring-service/internal/handlers"
	"monitoring-service/internal/models"
	"monitoring-service/internal/repository"
	"monitoring-service/internal/services"
	"monitoring-service/internal/worker"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupLogging(logDir string) (*os.File, error) {
	fmt.Println("Log directory:", logDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	out := io.MultiWriter(os.Stdout, file)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})))
	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func newGateway(cfg config.GatewayConfig) gateway.Gateway {
	if cfg.Mode == config.GatewayModeSynthetic {
		slog.Warn("Using synthetic imagery gateway, results are not real observations")
		return gateway.NewSyntheticGateway()
	}
	return gateway.NewHTTPGateway(cfg, &http.Client{Timeout: cfg.RequestTimeout})
}

func newQueue(cfg *config.MonitoringServiceConfig) (worker.Queue, *redis.Client) {
	redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-process job queue", "error", err)
		return worker.NewMemoryQueue(1024), nil
	}
	return worker.NewRedisQueue(redisClient.Redis(), cfg.PipelineCfg.QueueName), redisClient
}

func main() {
	cfg := config.New()
	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("error connect to database", "error", err)
		postgres.RetryConnectOnFailed(ctx, 30*time.Second, &db, cfg.PostgresCfg)
		if db == nil {
			slog.Error("shutdown before database became available")
			return
		}
	}
	defer db.Close()

	store := repository.NewPostgresStore(db)
	gw := newGateway(cfg.GatewayCfg)
	defer gw.Close()

	queue, redisClient := newQueue(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var notifier services.AlertNotifier
	rabbit, err := event.ConnectBroker(cfg.RabbitMQCfg)
	if err != nil {
		slog.Warn("RabbitMQ unavailable, alert events will not be published", "error", err)
	} else {
		defer rabbit.Close()
		notifier = event.NewAlertPublisher(rabbit)
	}

	var archive services.RunArchiver
	var minioClient *minio.MinioClient
	if cfg.PipelineCfg.ArchiveRuns {
		minioClient, err = minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			slog.Warn("MinIO unavailable, run archiving disabled", "error", err)
		} else {
			archive = minio.NewRunArchive(minioClient)
		}
	}

	pool := worker.NewWorkingPool(cfg.PipelineCfg.QueueWorkers, "monitoring", cfg.PipelineCfg.JobTimeout,
		queue, worker.NewPostgresPersistor(db))

	geometryService := services.NewGeometryService()
	calculator := services.NewIndexCalculator(gw, geometryService, cfg.PipelineCfg.ImageTimeout)
	evaluator := services.NewAlertEvaluator(store, services.NewAlertEngine(), notifier)
	orchestrator := services.NewOrchestrator(store, calculator,
		services.NewAlertJobDispatcher(pool, cfg.PipelineCfg.JobMaxRetries), archive,
		services.OrchestratorConfig{
			Workers:         cfg.PipelineCfg.Workers,
			ConfigTimeout:   cfg.PipelineCfg.ConfigTimeout,
			DefaultDaysBack: cfg.PipelineCfg.DaysBack,
			DefaultProvider: models.Provider(cfg.GatewayCfg.DefaultProvider),
		})
	retention := services.NewRetentionService(store)
	indexService := services.NewVegetationIndexService(store)

	if seeded, err := indexService.Seed(ctx); err != nil {
		slog.Error("Failed to seed vegetation index catalog", "error", err)
	} else {
		slog.Info("Vegetation index catalog seeded", "created", seeded.Created, "updated", seeded.Updated)
	}

	pool.RegisterJob(worker.JobTypeRunPipeline, services.RunPipelineHandler(orchestrator))
	pool.RegisterJob(worker.JobTypeEvaluateAlerts, services.EvaluateAlertsHandler(evaluator))
	pool.RegisterJob(worker.JobTypeRetention, services.RetentionHandler(retention, cfg.PipelineCfg.RetentionDays))

	var wg sync.WaitGroup
	wg.Add(1)
	go pool.Start(ctx, &wg)

	if cfg.PipelineCfg.SchedulerActive {
		scheduler := worker.NewCronScheduler("monitoring", pool)
		scheduled := models.RunRequest{RespectCadence: true, DaysBack: cfg.PipelineCfg.DaysBack}
		if err := scheduler.AddJob(ctx, cfg.PipelineCfg.PipelineCron, worker.JobPayload{
			Type:       worker.JobTypeRunPipeline,
			Params:     services.RunPipelineParams(scheduled),
			MaxRetries: cfg.PipelineCfg.JobMaxRetries,
		}); err != nil {
			slog.Error("Failed to schedule pipeline", "error", err)
		}
		if err := scheduler.AddJob(ctx, cfg.PipelineCfg.RetentionCron, worker.JobPayload{
			Type:       worker.JobTypeRetention,
			Params:     map[string]any{"days_to_keep": cfg.PipelineCfg.RetentionDays},
			MaxRetries: 1,
		}); err != nil {
			slog.Error("Failed to schedule retention cleanup", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	checks := map[string]handlers.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
		"gateway":  gw.Ready,
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	if rabbit != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !rabbit.IsOpen() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	if minioClient != nil {
		checks["minio"] = minioClient.Ping
	}

	app := newApp(store, geometryService, orchestrator, pool, indexService, checks)

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			slog.Error("Error starting server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	wg.Wait()
}

func newApp(
	store repository.Store,
	geometryService *services.GeometryService,
	orchestrator *services.Orchestrator,
	jobs services.JobSubmitter,
	indexService *services.VegetationIndexService,
	checks map[string]handlers.ReadinessCheck,
) *fiber.App {
	app := fiber.New()
	app.Use(recoverer.New())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	monitoringService := services.NewMonitoringService(store)
	handlers.NewAreaHandler(
		services.NewAreaService(store, geometryService),
		services.NewConfigurationService(store),
	).RegisterRoutes(app)
	handlers.NewMonitoringHandler(monitoringService, services.NewAnalyticsService(store)).RegisterRoutes(app)
	handlers.NewPipelineHandler(orchestrator, jobs, monitoringService, indexService, checks).RegisterRoutes(app)
	return app
}

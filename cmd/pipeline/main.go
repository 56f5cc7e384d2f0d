package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"candlearchive/internal/application/service/acquisition"
	"candlearchive/internal/application/service/pipeline"
	"candlearchive/internal/application/service/repair"
	"candlearchive/internal/application/service/validation"
	"candlearchive/internal/config"
	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
	"candlearchive/internal/infrastructure/checkpoint"
	"candlearchive/internal/infrastructure/notify"
	"candlearchive/internal/infrastructure/sink"
	"candlearchive/internal/infrastructure/sink/models"
	"candlearchive/internal/infrastructure/source"
	infrahttp "candlearchive/internal/interfaces/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	seriesSink, recorder, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init sinks: %v", err)
	}
	defer closeSinks()

	var checkpoints interfaces.CheckpointStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		checkpoints = checkpoint.NewRedisStore(redisClient, logger)
	}

	var publisher interfaces.OutcomePublisher
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := notify.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	orchestrator := buildOrchestrator(cfg, pipeline.Options{
		Sink:        seriesSink,
		Recorder:    recorder,
		Checkpoints: checkpoints,
		Publisher:   publisher,
	}, logger)

	if cfg.HTTP.Serve {
		serve(ctx, cfg, orchestrator, logger)
		return
	}

	units, err := pipeline.YearUnits(cfg.Pipeline.FirstYear, cfg.Pipeline.LastYear, cfg.Pipeline.PeriodSeconds, time.Now())
	if err != nil {
		logger.Fatalf("failed to plan units: %v", err)
	}
	failed := 0
	for _, unit := range units {
		outcome, err := orchestrator.Run(ctx, unit)
		if err != nil {
			logger.WithError(err).WithField("unit", unit.Label).Error("run aborted")
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if outcome.State != series.StateComplete {
			failed++
		}
	}
	if failed > 0 {
		logger.WithField("failed_units", failed).Error("pipeline finished with failures")
		os.Exit(1)
	}
	logger.WithField("units", len(units)).Info("pipeline finished")
}

func buildOrchestrator(cfg *config.Config, opts pipeline.Options, logger *logrus.Logger) *pipeline.Orchestrator {
	retry := acquisition.RetryConfig{
		MaxRetries:  cfg.Pipeline.MaxRetries,
		BackoffBase: cfg.Pipeline.BackoffBase,
	}

	primary := source.NewCoinbaseSource(cfg.Primary.BaseURL, cfg.Primary.Timeout, logger)
	primaryFetcher := acquisition.NewRangeFetcher(primary, cfg.Primary.Symbol, retry, logger)
	scheduler := acquisition.NewParallelScheduler(primaryFetcher, cfg.Pipeline.Workers, logger)

	secondary := source.NewBinanceSource(cfg.Secondary.BaseURL, cfg.Secondary.Timeout, logger)
	secondaryFetcher := acquisition.NewRangeFetcher(secondary, cfg.Secondary.Symbol, retry, logger)
	backfiller := repair.NewBackfiller(secondaryFetcher, logger)

	validator := validation.NewValidator(cfg.Pipeline.BoundaryTolerance)

	return pipeline.NewOrchestrator(
		cfg.Pipeline.Symbol,
		scheduler,
		backfiller,
		validator,
		cfg.Pipeline.Precedence,
		opts,
		logger,
	)
}

// buildSinks wires the CSV sink and, when a DSN is configured, the
// database sink in front of it. Every complete unit lands in both.
func buildSinks(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (interfaces.SeriesSink, interfaces.RunRecorder, func(), error) {
	csvSink := sink.NewCSVSink(cfg.CSVDir, logger)
	if cfg.Postgres.DSN == "" {
		return csvSink, nil, func() {}, nil
	}
	if err := models.Migrate(cfg.Postgres.DSN); err != nil {
		return nil, nil, nil, err
	}
	pgSink, err := sink.NewPostgresSink(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return &teeSink{primary: pgSink, mirror: csvSink}, pgSink, pgSink.Close, nil
}

// teeSink writes through to the database and mirrors each unit to CSV.
// Reads are served from the database only.
type teeSink struct {
	primary *sink.PostgresSink
	mirror  *sink.CSVSink
}

func (t *teeSink) WriteSeries(ctx context.Context, symbol, unit string, s *series.CandleSeries) error {
	if err := t.primary.WriteSeries(ctx, symbol, unit, s); err != nil {
		return err
	}
	return t.mirror.WriteSeries(ctx, symbol, unit, s)
}

func (t *teeSink) LoadSeries(ctx context.Context, symbol, unit string, start, end, period int64) (*series.CandleSeries, error) {
	return t.primary.LoadSeries(ctx, symbol, unit, start, end, period)
}

func serve(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, logger *logrus.Logger) {
	runner := pipeline.NewRunner(ctx, orchestrator, logger)
	handler := infrahttp.NewHandler(runner, cfg.Pipeline.PeriodSeconds)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}

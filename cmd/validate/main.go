package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"candlearchive/internal/application/service/pipeline"
	"candlearchive/internal/application/service/validation"
	"candlearchive/internal/config"
	"candlearchive/internal/domain/interfaces"
	"candlearchive/internal/infrastructure/sink"
)

// Validates one stored unit and prints the report to stdout. Exits non-zero
// when the unit has violations, so it can gate downstream jobs.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	unitLabel := os.Getenv("UNIT")
	if unitLabel == "" {
		logger.Fatal("UNIT is required, e.g. UNIT=2023")
	}
	year, err := strconv.Atoi(unitLabel)
	if err != nil {
		logger.Fatalf("UNIT must be a year: %v", err)
	}

	units, err := pipeline.YearUnits(year, year, cfg.Pipeline.PeriodSeconds, time.Now())
	if err != nil {
		logger.Fatalf("failed to plan unit: %v", err)
	}
	if len(units) == 0 {
		logger.Fatalf("unit %s has no completed periods yet", unitLabel)
	}
	unit := units[0]

	var store interfaces.SeriesSink
	if cfg.Postgres.DSN != "" {
		pgSink, err := sink.NewPostgresSink(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			logger.Fatalf("failed to init postgres sink: %v", err)
		}
		defer pgSink.Close()
		store = pgSink
	} else {
		store = sink.NewCSVSink(cfg.CSVDir, logger)
	}

	cs, err := store.LoadSeries(ctx, cfg.Pipeline.Symbol, unit.Label, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if err != nil {
		logger.Fatalf("failed to load unit %s: %v", unit.Label, err)
	}

	validator := validation.NewValidator(cfg.Pipeline.BoundaryTolerance)
	report := validator.Validate(cs, unit.Span.Start, unit.Span.End, unit.Span.Period)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatalf("failed to encode report: %v", err)
	}
	if !report.OK {
		os.Exit(1)
	}
}

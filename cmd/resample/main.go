package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"candlearchive/internal/application/service/pipeline"
	"candlearchive/internal/application/service/resample"
	"candlearchive/internal/config"
	"candlearchive/internal/infrastructure/sink"
)

// Reads one stored unit at the base granularity and writes it back at a
// coarser one, e.g. 1m candles aggregated to 1h.
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
	targetStr := os.Getenv("TARGET_PERIOD_SECONDS")
	if targetStr == "" {
		logger.Fatal("TARGET_PERIOD_SECONDS is required, e.g. 3600")
	}
	target, err := strconv.ParseInt(targetStr, 10, 64)
	if err != nil {
		logger.Fatalf("TARGET_PERIOD_SECONDS must be an integer: %v", err)
	}

	units, err := pipeline.YearUnits(year, year, cfg.Pipeline.PeriodSeconds, time.Now())
	if err != nil {
		logger.Fatalf("failed to plan unit: %v", err)
	}
	if len(units) == 0 {
		logger.Fatalf("unit %s has no completed periods yet", unitLabel)
	}
	unit := units[0]

	csvSink := sink.NewCSVSink(cfg.CSVDir, logger)
	cs, err := csvSink.LoadSeries(ctx, cfg.Pipeline.Symbol, unit.Label, unit.Span.Start, unit.Span.End, unit.Span.Period)
	if err != nil {
		logger.Fatalf("failed to load unit %s: %v", unit.Label, err)
	}

	coarse, err := resample.Downsample(cs, target)
	if err != nil {
		logger.Fatalf("failed to resample: %v", err)
	}
	if err := csvSink.WriteSeries(ctx, cfg.Pipeline.Symbol, unit.Label, coarse); err != nil {
		logger.Fatalf("failed to write resampled unit: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"unit":    unit.Label,
		"period":  sink.PeriodLabel(target),
		"candles": coarse.Len(),
	}).Info("unit resampled")
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

// PostgresSink stores complete candle series and run outcomes. Candles are
// keyed by (symbol, period_seconds, ts); an existing candle is never
// overwritten, so the first complete write of a unit wins.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

func NewPostgresSink(ctx context.Context, dsn string, logger *logrus.Logger) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &PostgresSink{
		pool:   pool,
		logger: logger.WithField("component", "postgres_sink"),
	}, nil
}

func (s *PostgresSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

var candleColumns = []string{"symbol", "period_seconds", "unit", "ts", "open", "high", "low", "close", "volume"}

// WriteSeries persists the series in one transaction: the candles are
// copied into a temporary table and merged into candles with conflicts
// ignored. A partially written unit is impossible.
func (s *PostgresSink) WriteSeries(ctx context.Context, symbol, unit string, cs *series.CandleSeries) error {
	candles := cs.Candles()
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin candle write: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE candles_incoming
		(LIKE candles INCLUDING DEFAULTS)
		ON COMMIT DROP`)
	if err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	rows := make([][]interface{}, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, []interface{}{
			symbol, cs.Period(), unit, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume,
		})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"candles_incoming"}, candleColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy candles: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO candles (symbol, period_seconds, unit, ts, open, high, low, close, volume)
		SELECT symbol, period_seconds, unit, ts, open, high, low, close, volume
		FROM candles_incoming
		ON CONFLICT (symbol, period_seconds, ts) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("merge candles: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit candle write: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"unit":     unit,
		"candles":  len(candles),
		"inserted": tag.RowsAffected(),
	}).Info("series written")
	return nil
}

// LoadSeries reads one unit back in ascending order.
func (s *PostgresSink) LoadSeries(ctx context.Context, symbol, unit string, start, end, period int64) (*series.CandleSeries, error) {
	const query = `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol=$1 AND period_seconds=$2 AND unit=$3 AND ts >= $4 AND ts <= $5
		ORDER BY ts ASC`
	rows, err := s.pool.Query(ctx, query, symbol, period, unit, start, end)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	cs := series.NewSeries(period)
	for rows.Next() {
		var c series.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		if err := cs.Put(c); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	if cs.Len() == 0 {
		return nil, interfaces.ErrUnitNotFound
	}
	return cs, nil
}

// RecordRun appends one run outcome to the audit table.
func (s *PostgresSink) RecordRun(ctx context.Context, outcome *series.RunOutcome) error {
	repairs, err := json.Marshal(outcome.Repairs)
	if err != nil {
		return fmt.Errorf("marshal repairs: %w", err)
	}
	violations, err := json.Marshal(outcome.RemainingViolations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	const query = `
		INSERT INTO pipeline_runs (
			run_id, unit_id, symbol, unit, period_seconds, state, fetched, failed_windows,
			ranges_repaired, points_synthesized, duplicates_dropped,
			indeterminate_start, skipped_fetch, repairs, remaining_violations,
			started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = s.pool.Exec(ctx, query,
		outcome.RunID,
		outcome.UnitID,
		outcome.Symbol,
		outcome.Unit,
		outcome.PeriodSeconds,
		string(outcome.State),
		outcome.Fetched,
		outcome.FailedWindows,
		outcome.RangesRepaired,
		outcome.PointsSynthesized,
		outcome.DuplicatesDropped,
		outcome.IndeterminateStart,
		outcome.SkippedFetch,
		repairs,
		violations,
		outcome.StartedAt,
		outcome.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

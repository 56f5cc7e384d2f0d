package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

// CSVSink writes one file per unit under a base directory, named
// <SYMBOL>_<period>_candles_<unit>.csv with the seven-column record layout.
type CSVSink struct {
	dir    string
	logger *logrus.Entry
}

func NewCSVSink(dir string, logger *logrus.Logger) *CSVSink {
	return &CSVSink{
		dir:    dir,
		logger: logger.WithField("component", "csv_sink"),
	}
}

func (s *CSVSink) path(symbol, unit string, period int64) string {
	name := fmt.Sprintf("%s_%s_candles_%s.csv",
		strings.ToUpper(symbol), PeriodLabel(period), unit)
	return filepath.Join(s.dir, name)
}

// WriteSeries writes the whole unit atomically: the file is staged under a
// temporary name and renamed into place once fully written.
func (s *CSVSink) WriteSeries(ctx context.Context, symbol, unit string, cs *series.CandleSeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	target := s.path(symbol, unit, cs.Period())
	staging := target + ".tmp"

	f, err := os.Create(staging)
	if err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(series.RecordHeader); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range cs.Candles() {
		if err := w.Write(series.NewRecord(c).CSV()); err != nil {
			f.Close()
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", staging, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", staging, err)
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("publish %s: %w", target, err)
	}
	s.logger.WithFields(logrus.Fields{
		"file":    target,
		"candles": cs.Len(),
	}).Info("series written")
	return nil
}

// LoadSeries reads a unit file back, keeping only candles inside the span.
func (s *CSVSink) LoadSeries(ctx context.Context, symbol, unit string, start, end, period int64) (*series.CandleSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := s.path(symbol, unit, period)
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrUnitNotFound
		}
		return nil, fmt.Errorf("open %s: %w", target, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if len(rows) == 0 {
		return nil, interfaces.ErrUnitNotFound
	}

	cs := series.NewSeries(period)
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == series.RecordHeader[0] {
			continue
		}
		rec, err := series.RecordFromCSV(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", target, i+1, err)
		}
		c, err := rec.Candle()
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", target, i+1, err)
		}
		if c.Timestamp < start || c.Timestamp > end {
			continue
		}
		if err := cs.Put(c); err != nil {
			return nil, err
		}
	}
	if cs.Len() == 0 {
		return nil, interfaces.ErrUnitNotFound
	}
	return cs, nil
}

// PeriodLabel renders a period in seconds as the conventional short form,
// for example 60 -> "1m" and 86400 -> "1d".
func PeriodLabel(period int64) string {
	switch {
	case period >= 604800 && period%604800 == 0:
		return fmt.Sprintf("%dw", period/604800)
	case period >= 86400 && period%86400 == 0:
		return fmt.Sprintf("%dd", period/86400)
	case period >= 3600 && period%3600 == 0:
		return fmt.Sprintf("%dh", period/3600)
	case period >= 60 && period%60 == 0:
		return fmt.Sprintf("%dm", period/60)
	default:
		return fmt.Sprintf("%ds", period)
	}
}

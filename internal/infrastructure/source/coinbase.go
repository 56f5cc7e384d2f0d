package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

const (
	coinbaseName      = "coinbase"
	coinbasePageLimit = 300
)

// CoinbaseSource adapts the Coinbase Exchange candles endpoint. The
// endpoint treats its end parameter as inclusive and answers newest-first;
// both quirks are normalized here.
type CoinbaseSource struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

func NewCoinbaseSource(baseURL string, timeout time.Duration, logger *logrus.Logger) *CoinbaseSource {
	return &CoinbaseSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithField("component", "coinbase_source"),
	}
}

func (s *CoinbaseSource) Name() string   { return coinbaseName }
func (s *CoinbaseSource) PageLimit() int { return coinbasePageLimit }

// Fetch returns candles for [window.Start, window.End) in ascending order.
func (s *CoinbaseSource) Fetch(ctx context.Context, symbol string, window series.FetchWindow) ([]series.Candle, error) {
	endpoint := fmt.Sprintf("%s/products/%s/candles", s.baseURL, url.PathEscape(symbol))
	query := url.Values{
		"start":       {time.Unix(window.Start, 0).UTC().Format(time.RFC3339)},
		"end":         {time.Unix(window.End, 0).UTC().Format(time.RFC3339)},
		"granularity": {strconv.FormatInt(window.Period, 10)},
	}

	var rows [][]json.Number
	if err := s.get(ctx, endpoint+"?"+query.Encode(), &rows); err != nil {
		return nil, err
	}

	candles := make([]series.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := coinbaseCandle(row)
		if err != nil {
			return nil, &interfaces.SourceError{Source: coinbaseName, Kind: interfaces.KindFatal, Err: err}
		}
		if c.Timestamp < window.Start || c.Timestamp >= window.End {
			continue
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	s.logger.WithFields(logrus.Fields{
		"symbol":       symbol,
		"window_start": window.Start,
		"candles":      len(candles),
	}).Debug("fetched window")
	return candles, nil
}

func (s *CoinbaseSource) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &interfaces.SourceError{Source: coinbaseName, Kind: interfaces.KindFatal, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &interfaces.SourceError{Source: coinbaseName, Kind: interfaces.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &interfaces.SourceError{
			Source:     coinbaseName,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &interfaces.SourceError{Source: coinbaseName, Kind: interfaces.KindFatal, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// coinbaseCandle maps one [time, low, high, open, close, volume] row.
func coinbaseCandle(row []json.Number) (series.Candle, error) {
	if len(row) < 6 {
		return series.Candle{}, fmt.Errorf("candle row has %d fields, want 6", len(row))
	}
	ts, err := row[0].Int64()
	if err != nil {
		return series.Candle{}, fmt.Errorf("parse candle timestamp: %w", err)
	}
	vals := make([]float64, 5)
	for i, n := range row[1:6] {
		v, err := n.Float64()
		if err != nil {
			return series.Candle{}, fmt.Errorf("parse candle field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return series.Candle{
		Timestamp: ts,
		Low:       vals[0],
		High:      vals[1],
		Open:      vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// classifyStatus maps a non-OK HTTP status to a retry classification.
func classifyStatus(status int) interfaces.SourceErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return interfaces.KindRateLimit
	case status >= 500:
		return interfaces.KindTransient
	default:
		return interfaces.KindFatal
	}
}

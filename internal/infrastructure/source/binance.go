package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"candlearchive/internal/domain/entity/series"
	"candlearchive/internal/domain/interfaces"
)

const (
	binanceName      = "binance"
	binancePageLimit = 1000
)

// binanceIntervals maps a period in seconds to the klines interval token.
var binanceIntervals = map[int64]string{
	1:      "1s",
	60:     "1m",
	180:    "3m",
	300:    "5m",
	900:    "15m",
	1800:   "30m",
	3600:   "1h",
	7200:   "2h",
	14400:  "4h",
	21600:  "6h",
	28800:  "8h",
	43200:  "12h",
	86400:  "1d",
	259200: "3d",
	604800: "1w",
}

// BinanceSource adapts the Binance klines endpoint. Binance takes
// millisecond bounds with an inclusive endTime, so the half-open window is
// translated to endTime = End*1000 - 1.
type BinanceSource struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Entry
}

func NewBinanceSource(baseURL string, timeout time.Duration, logger *logrus.Logger) *BinanceSource {
	return &BinanceSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithField("component", "binance_source"),
	}
}

func (s *BinanceSource) Name() string   { return binanceName }
func (s *BinanceSource) PageLimit() int { return binancePageLimit }

func (s *BinanceSource) Fetch(ctx context.Context, symbol string, window series.FetchWindow) ([]series.Candle, error) {
	interval, ok := binanceIntervals[window.Period]
	if !ok {
		return nil, &interfaces.SourceError{
			Source: binanceName,
			Kind:   interfaces.KindFatal,
			Err:    fmt.Errorf("no klines interval for period %ds", window.Period),
		}
	}
	query := url.Values{
		"symbol":    {symbol},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(window.Start*1000, 10)},
		"endTime":   {strconv.FormatInt(window.End*1000-1, 10)},
		"limit":     {strconv.Itoa(binancePageLimit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v3/klines?"+query.Encode(), nil)
	if err != nil {
		return nil, &interfaces.SourceError{Source: binanceName, Kind: interfaces.KindFatal, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &interfaces.SourceError{Source: binanceName, Kind: interfaces.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &interfaces.SourceError{
			Source:     binanceName,
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &interfaces.SourceError{Source: binanceName, Kind: interfaces.KindFatal, Err: fmt.Errorf("decode response: %w", err)}
	}

	candles := make([]series.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := binanceCandle(row)
		if err != nil {
			return nil, &interfaces.SourceError{Source: binanceName, Kind: interfaces.KindFatal, Err: err}
		}
		if c.Timestamp < window.Start || c.Timestamp >= window.End {
			continue
		}
		candles = append(candles, c)
	}
	s.logger.WithFields(logrus.Fields{
		"symbol":       symbol,
		"window_start": window.Start,
		"candles":      len(candles),
	}).Debug("fetched window")
	return candles, nil
}

// binanceCandle maps one kline row: open time in milliseconds followed by
// open, high, low, close and volume as decimal strings.
func binanceCandle(row []json.RawMessage) (series.Candle, error) {
	if len(row) < 6 {
		return series.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}
	var openMillis int64
	if err := json.Unmarshal(row[0], &openMillis); err != nil {
		return series.Candle{}, fmt.Errorf("parse kline open time: %w", err)
	}
	vals := make([]float64, 5)
	for i, raw := range row[1:6] {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return series.Candle{}, fmt.Errorf("parse kline field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return series.Candle{}, fmt.Errorf("parse kline field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return series.Candle{
		Timestamp: openMillis / 1000,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

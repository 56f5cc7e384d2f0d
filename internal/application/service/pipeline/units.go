package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"candlearchive/internal/application/service/acquisition"
)

// UnitID derives a stable identifier for a symbol and unit label, the same
// across runs and processes.
func UnitID(symbol, label string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("candlearchive/"+symbol+"/"+label))
}

// YearUnits expands the inclusive year range into per-year units. The span
// of each unit covers every period boundary inside the calendar year; the
// current year is truncated to the last fully closed period before now.
func YearUnits(firstYear, lastYear int, period int64, now time.Time) ([]Unit, error) {
	if firstYear > lastYear {
		return nil, fmt.Errorf("year range %d..%d is inverted", firstYear, lastYear)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period %ds must be positive", period)
	}
	units := make([]Unit, 0, lastYear-firstYear+1)
	for year := firstYear; year <= lastYear; year++ {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
		end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Unix() - period
		if cutoff := lastClosed(now, period); end > cutoff {
			end = cutoff
		}
		if end < start {
			continue
		}
		units = append(units, Unit{
			Label: strconv.Itoa(year),
			Span:  acquisition.Span{Start: start, End: end, Period: period},
		})
	}
	return units, nil
}

// lastClosed returns the start of the most recent period that has fully
// elapsed before now.
func lastClosed(now time.Time, period int64) int64 {
	ts := now.UTC().Unix()
	return (ts/period)*period - period
}

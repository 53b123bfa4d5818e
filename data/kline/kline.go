// Package kline loads historical candle data into the bar type the
// backtesting engines replay
package kline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/market"
)

var errTooFewColumns = errors.New("candle row has too few columns")

// csv columns: datetime, open, high, low, close, volume and an optional
// trailing open interest
const minColumns = 6

// LoadCSV reads candles for one instrument from a CSV file. A header row
// starting with "datetime" is skipped. Rows are returned sorted by time
func LoadCSV(path string, i market.Instrument, interval market.Interval) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadCSV(f, i, interval)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses candle rows from r. Exposed separately so callers can feed
// archives or network bodies without touching disk
func ReadCSV(r io.Reader, i market.Instrument, interval market.Interval) ([]market.Bar, error) {
	if i.IsEmpty() {
		return nil, market.ErrSymbolStringEmpty
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var bars []market.Bar
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && record[0] == "datetime" {
			continue
		}
		b, err := parseRow(record, i, interval)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, common.ErrNoData
	}
	SortBars(bars)
	return bars, nil
}

func parseRow(record []string, i market.Instrument, interval market.Interval) (market.Bar, error) {
	if len(record) < minColumns {
		return market.Bar{}, fmt.Errorf("%w: got %d", errTooFewColumns, len(record))
	}
	when, err := time.Parse(common.SimpleTimeFormat, record[0])
	if err != nil {
		return market.Bar{}, err
	}
	values := make([]float64, 0, len(record)-1)
	for _, field := range record[1:] {
		v, parseErr := strconv.ParseFloat(field, 64)
		if parseErr != nil {
			return market.Bar{}, parseErr
		}
		values = append(values, v)
	}
	b := market.Bar{
		Instrument: i,
		Datetime:   when,
		Interval:   interval,
		Open:       values[0],
		High:       values[1],
		Low:        values[2],
		Close:      values[3],
		Volume:     values[4],
	}
	if len(values) > 5 {
		b.OpenInterest = values[5]
	}
	return b, nil
}

// SortBars orders bars ascending by datetime, preserving arrival order of
// equal timestamps
func SortBars(bars []market.Bar) {
	sort.SliceStable(bars, func(a, b int) bool {
		return bars[a].Datetime.Before(bars[b].Datetime)
	})
}

// FilterRange returns the bars falling within [start, end)
func FilterRange(bars []market.Bar, start, end time.Time) ([]market.Bar, error) {
	if err := common.StartEndTimeCheck(start, end); err != nil {
		return nil, err
	}
	out := make([]market.Bar, 0, len(bars))
	for i := range bars {
		if bars[i].Datetime.Before(start) || !bars[i].Datetime.Before(end) {
			continue
		}
		out = append(out, bars[i])
	}
	return out, nil
}

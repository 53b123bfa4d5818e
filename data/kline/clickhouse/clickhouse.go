// Package clickhouse loads candle history from a ClickHouse cluster. The
// table layout mirrors the candle installer's schema of one row per
// (symbol, interval, timestamp)
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/data/kline"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
)

// DefaultTable is queried when the config leaves Table empty
const DefaultTable = "candles"

var errNoAddrs = errors.New("no clickhouse addresses configured")

// Config holds connection details for a ClickHouse candle store
type Config struct {
	Addrs    []string `json:"addrs"`
	Database string   `json:"database"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Table    string   `json:"table"`
}

// Loader reads candle history over a native protocol connection
type Loader struct {
	conn  driver.Conn
	table string
}

// NewLoader connects to ClickHouse and verifies the connection with a ping
func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errNoAddrs
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	log.Debugf(log.Data, "clickhouse loader connected to %v table %v", cfg.Addrs, table)
	return &Loader{conn: conn, table: table}, nil
}

// LoadBars fetches candles for one instrument and interval within
// [start, end), sorted ascending by timestamp
func (l *Loader) LoadBars(ctx context.Context, i market.Instrument, interval market.Interval, start, end time.Time) ([]market.Bar, error) {
	if i.IsEmpty() {
		return nil, market.ErrSymbolStringEmpty
	}
	if err := common.StartEndTimeCheck(start, end); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT ts, open, high, low, close, volume, open_interest
FROM %s
WHERE symbol = ? AND interval = ? AND ts >= ? AND ts < ?
ORDER BY ts`, l.table)
	rows, err := l.conn.Query(ctx, query, i.String(), interval.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("clickhouse query: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		b := market.Bar{Instrument: i, Interval: interval}
		if err := rows.Scan(&b.Datetime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.OpenInterest); err != nil {
			return nil, fmt.Errorf("clickhouse scan: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, common.ErrNoData
	}
	kline.SortBars(bars)
	return bars, nil
}

// Close releases the underlying connection
func (l *Loader) Close() error {
	return l.conn.Close()
}

package config

import (
	"errors"

	"github.com/shopspring/decimal"

	clickhouseloader "github.com/quantetra/stratsim/data/kline/clickhouse"
)

var (
	errNoStrategyName  = errors.New("strategy name unset")
	errNoDataSource    = errors.New("exactly one of csv-path or clickhouse must be set")
	errBadDate         = errors.New("could not parse date")
	errUnknownInterval = errors.New("unknown interval")
)

// StrategySettings names the strategy to run and its tuning knobs
type StrategySettings struct {
	Name string `json:"name"`
	// Settings carries strategy specific numeric parameters such as
	// indicator periods and trade volume
	Settings map[string]float64 `json:"settings,omitempty"`
}

// DataSettings selects the candle source. Exactly one source must be set
type DataSettings struct {
	CSVPath    string                   `json:"csv-path,omitempty"`
	ClickHouse *clickhouseloader.Config `json:"clickhouse,omitempty"`
}

// Config is one backtest run loaded from a JSON file
type Config struct {
	Instrument   string           `json:"instrument"`
	Interval     string           `json:"interval"`
	Start        string           `json:"start"`
	End          string           `json:"end"`
	Mode         string           `json:"mode,omitempty"`
	Capital      decimal.Decimal  `json:"capital"`
	Rate         decimal.Decimal  `json:"rate"`
	Slippage     decimal.Decimal  `json:"slippage"`
	Size         decimal.Decimal  `json:"size"`
	PriceTick    float64          `json:"price-tick"`
	RiskFreeRate decimal.Decimal  `json:"risk-free-rate"`
	AnnualDays   int              `json:"annual-days,omitempty"`
	Strategy     StrategySettings `json:"strategy"`
	Data         DataSettings     `json:"data"`
}

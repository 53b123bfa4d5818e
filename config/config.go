// Package config loads and validates JSON run configuration for the
// stratsim binary
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quantetra/stratsim/backtest"
	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
)

// ReadConfigFromFile loads and validates a run config from a path
func ReadConfigFromFile(path string) (*Config, error) {
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := LoadConfig(fileData)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	log.Debugf(log.Config, "loaded run config from %v", path)
	return c, nil
}

// LoadConfig unmarshals byte data into a validated config
func LoadConfig(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks all config settings without touching the data source
func (c *Config) Validate() error {
	if c.Strategy.Name == "" {
		return errNoStrategyName
	}
	hasCSV := c.Data.CSVPath != ""
	hasClickHouse := c.Data.ClickHouse != nil
	if hasCSV == hasClickHouse {
		return errNoDataSource
	}
	if _, err := c.Parameters(); err != nil {
		return err
	}
	return nil
}

// Parameters converts the config into engine run parameters
func (c *Config) Parameters() (backtest.Parameters, error) {
	i, err := market.ParseInstrument(c.Instrument)
	if err != nil {
		return backtest.Parameters{}, err
	}
	interval, err := market.ParseInterval(c.Interval)
	if err != nil {
		return backtest.Parameters{}, fmt.Errorf("%w %q", errUnknownInterval, c.Interval)
	}
	start, err := parseDate(c.Start)
	if err != nil {
		return backtest.Parameters{}, err
	}
	end, err := parseDate(c.End)
	if err != nil {
		return backtest.Parameters{}, err
	}
	return backtest.Parameters{
		Instrument:   i,
		Interval:     interval,
		Start:        start,
		End:          end,
		Rate:         c.Rate,
		Slippage:     c.Slippage,
		Size:         c.Size,
		PriceTick:    c.PriceTick,
		Capital:      c.Capital,
		Mode:         backtest.Mode(c.Mode),
		RiskFreeRate: c.RiskFreeRate,
		AnnualDays:   c.AnnualDays,
	}, nil
}

// parseDate accepts either a bare date or a full timestamp
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, common.ErrDateUnset
	}
	if parsed, err := time.Parse(common.SimpleTimeFormat, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(common.SimpleDateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", errBadDate, value)
	}
	return parsed, nil
}

// Setting returns a strategy tuning value, falling back to def when unset
func (c *Config) Setting(key string, def float64) float64 {
	if v, ok := c.Strategy.Settings[key]; ok {
		return v
	}
	return def
}

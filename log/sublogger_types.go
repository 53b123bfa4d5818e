package log

import (
	"io"
	"sync"
)

// Global vars related to the logger package
var (
	subLoggers = map[string]*SubLogger{}

	// Global is the catch-all sublogger
	Global *SubLogger
	// Backtest covers the single-instrument backtesting engine
	Backtest *SubLogger
	// Portfolio covers the multi-instrument backtesting engine
	Portfolio *SubLogger
	// Strategy covers the live strategy engine and strategy callbacks
	Strategy *SubLogger
	// Statistics covers result and performance calculation
	Statistics *SubLogger
	// Data covers historical data loading
	Data *SubLogger
	// Config covers configuration loading and validation
	Config *SubLogger

	mu sync.RWMutex
)

// Levels flags each log level on or off for a sublogger
type Levels struct {
	Debug, Info, Warn, Error bool
}

// SubLogger defines a sectioned output for the logger, so subsystem
// noise can be turned off independently
type SubLogger struct {
	name   string
	levels Levels
	output io.Writer
}

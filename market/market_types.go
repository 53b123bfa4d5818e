package market

import (
	"errors"
	"time"
)

// Interval type for available candle periods
type Interval time.Duration

// Intervals the engines support
const (
	OneMin     = Interval(time.Minute)
	FiveMin    = Interval(5 * time.Minute)
	FifteenMin = Interval(15 * time.Minute)
	ThirtyMin  = Interval(30 * time.Minute)
	OneHour    = Interval(time.Hour)
	FourHour   = Interval(4 * time.Hour)
	OneDay     = Interval(24 * time.Hour)
)

// ErrUnsupportedInterval is returned when an interval string cannot be mapped
var ErrUnsupportedInterval = errors.New("unsupported interval")

// Bar is one market observation of open-high-low-close prices and volume for
// an instrument over an interval. Produced externally, consumed read-only
type Bar struct {
	Instrument   Instrument
	Datetime     time.Time
	Interval     Interval
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	OpenInterest float64
}

// Tick is one market observation of the top of book and last traded price
type Tick struct {
	Instrument Instrument
	Datetime   time.Time
	LastPrice  float64
	Volume     float64
	BidPrice1  float64
	BidVolume1 float64
	AskPrice1  float64
	AskVolume1 float64
}

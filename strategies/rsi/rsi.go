// Package rsi trades mean reversion off the relative strength index. It
// buys when RSI drops at or below the low threshold and sells the position
// back when RSI reaches the high threshold
package rsi

import (
	"fmt"

	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

// Name is the strategy name used for registration and run tracking
const Name = "rsi"

// Defaults applied when a setting is left at its zero value
const (
	DefaultPeriod = 14
	DefaultLow    = 30.0
	DefaultHigh   = 70.0
	DefaultVolume = 1.0
)

// Settings tunes the indicator thresholds and trade size
type Settings struct {
	Period int
	Low    float64
	High   float64
	Volume float64
	// PriceOffset widens the submitted limit price past the close so the
	// intent is marketable on the next event
	PriceOffset float64
}

// Strategy is a single instrument RSI mean reversion strategy
type Strategy struct {
	strategy.Base
	settings Settings
	closes   []float64
}

// New returns an RSI strategy, filling unset settings with defaults
func New(s Settings) *Strategy {
	if s.Period <= 0 {
		s.Period = DefaultPeriod
	}
	if s.Low <= 0 {
		s.Low = DefaultLow
	}
	if s.High <= 0 {
		s.High = DefaultHigh
	}
	if s.Volume <= 0 {
		s.Volume = DefaultVolume
	}
	return &Strategy{settings: s}
}

// Name returns the strategy name
func (s *Strategy) Name() string {
	return Name
}

// OnBar appends the close to the indicator window and trades the thresholds
func (s *Strategy) OnBar(b *market.Bar) {
	if b == nil {
		return
	}
	s.closes = append(s.closes, b.Close)
	if len(s.closes) <= s.settings.Period {
		return
	}

	values := indicators.RSI(s.closes, s.settings.Period)
	latest := values[len(values)-1]

	switch {
	case latest <= s.settings.Low && s.Position() <= 0:
		s.submit(b, order.Long, order.Open, b.Close+s.settings.PriceOffset)
	case latest >= s.settings.High && s.Position() > 0:
		s.submit(b, order.Long, order.Close, b.Close+s.settings.PriceOffset)
	}
}

func (s *Strategy) submit(b *market.Bar, d order.Direction, o order.Offset, price float64) {
	id, err := s.Trader().SendLimitOrder(&order.Request{
		Instrument: b.Instrument,
		Direction:  d,
		Offset:     o,
		Price:      price,
		Volume:     s.settings.Volume,
	})
	if err != nil {
		log.Errorf(log.Strategy, "%v: submit %v %v: %v", Name, d, o, err)
		return
	}
	log.Debugf(log.Strategy, "%v: order %v %v %v @ %v", Name, id, d, o, price)
}

// String describes the configured thresholds
func (s *Strategy) String() string {
	return fmt.Sprintf("%v(period=%v low=%v high=%v)", Name, s.settings.Period, s.settings.Low, s.settings.High)
}

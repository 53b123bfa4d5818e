// Package doublesma trades simple moving average crossovers. A fast average
// crossing above the slow average opens a long, crossing below closes it
// and opens a short
package doublesma

import (
	"fmt"

	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

// Name is the strategy name used for registration and run tracking
const Name = "doublesma"

// Defaults applied when a setting is left at its zero value
const (
	DefaultFastPeriod = 10
	DefaultSlowPeriod = 20
	DefaultVolume     = 1.0
)

// Settings tunes the two average windows and trade size
type Settings struct {
	FastPeriod int
	SlowPeriod int
	Volume     float64
	// PriceOffset widens the submitted limit price past the close so the
	// intent is marketable on the next event
	PriceOffset float64
}

// Strategy is a single instrument dual moving average crossover strategy
type Strategy struct {
	strategy.Base
	settings Settings
	closes   []float64
	lastFast float64
	lastSlow float64
	primed   bool
}

// New returns a crossover strategy, filling unset settings with defaults
func New(s Settings) *Strategy {
	if s.FastPeriod <= 0 {
		s.FastPeriod = DefaultFastPeriod
	}
	if s.SlowPeriod <= 0 {
		s.SlowPeriod = DefaultSlowPeriod
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

// OnBar appends the close to the indicator window and trades the crossover
func (s *Strategy) OnBar(b *market.Bar) {
	if b == nil {
		return
	}
	s.closes = append(s.closes, b.Close)
	if len(s.closes) < s.settings.SlowPeriod {
		return
	}

	fastValues := indicators.SMA(s.closes, s.settings.FastPeriod)
	slowValues := indicators.SMA(s.closes, s.settings.SlowPeriod)
	fast := fastValues[len(fastValues)-1]
	slow := slowValues[len(slowValues)-1]

	if !s.primed {
		s.lastFast, s.lastSlow, s.primed = fast, slow, true
		return
	}

	crossedUp := fast > slow && s.lastFast <= s.lastSlow
	crossedDown := fast < slow && s.lastFast >= s.lastSlow
	s.lastFast, s.lastSlow = fast, slow

	// close orders name the side of the position they exit, so exiting a
	// short is a short close and exiting a long is a long close
	switch {
	case crossedUp:
		if pos := s.Position(); pos < 0 {
			s.submit(b, order.Short, order.Close, -pos, b.Close-s.settings.PriceOffset)
		}
		s.submit(b, order.Long, order.Open, s.settings.Volume, b.Close+s.settings.PriceOffset)
	case crossedDown:
		if pos := s.Position(); pos > 0 {
			s.submit(b, order.Long, order.Close, pos, b.Close+s.settings.PriceOffset)
		}
		s.submit(b, order.Short, order.Open, s.settings.Volume, b.Close-s.settings.PriceOffset)
	}
}

func (s *Strategy) submit(b *market.Bar, d order.Direction, o order.Offset, volume, price float64) {
	id, err := s.Trader().SendLimitOrder(&order.Request{
		Instrument: b.Instrument,
		Direction:  d,
		Offset:     o,
		Price:      price,
		Volume:     volume,
	})
	if err != nil {
		log.Errorf(log.Strategy, "%v: submit %v %v: %v", Name, d, o, err)
		return
	}
	log.Debugf(log.Strategy, "%v: order %v %v %v %v @ %v", Name, id, d, o, volume, price)
}

// String describes the configured windows
func (s *Strategy) String() string {
	return fmt.Sprintf("%v(fast=%v slow=%v)", Name, s.settings.FastPeriod, s.settings.SlowPeriod)
}

// Package strategy defines the execution contract strategies implement and
// the live engine that routes market events to them. A strategy written
// against Template and Trader runs unchanged under the backtesting engines
// and the live engine
package strategy

import (
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
)

// Trader is the order submission surface handed to a strategy. Both
// backtesting engines and the live engine implement it
type Trader interface {
	// SendLimitOrder places a resting limit order and returns its id.
	// Market intents are expressed as marketable limit prices
	SendLimitOrder(r *order.Request) (string, error)
	// SendStopOrder places a conditional order and returns its id
	SendStopOrder(r *order.Request) (string, error)
	// CancelOrder removes a limit or stop order from the active set. A fill
	// that raced ahead of the cancel stands
	CancelOrder(id string) error
	// CancelAll removes every active order this strategy has outstanding
	CancelAll() error
}

// Template is the capability set a strategy implements. The engines hold
// strategies through this interface so implementations stay externally
// pluggable
type Template interface {
	Name() string
	// OnInit is called once before any market data is delivered. The passed
	// Trader remains valid until OnStop returns
	OnInit(t Trader) error
	OnStart() error
	OnStop() error
	OnBar(b *market.Bar)
	OnTick(tk *market.Tick)
	// OnTrade is invoked synchronously for each fill, before the bar or tick
	// that caused it is delivered
	OnTrade(tr *order.Trade)
	OnOrder(o *order.LimitOrder)
	OnStopOrder(so *order.StopOrder)
}

// Base supplies default no-op callbacks and common bookkeeping so concrete
// strategies only override what they use
type Base struct {
	trader Trader
	pos    float64
}

// OnInit stores the trading surface for the embedding strategy
func (b *Base) OnInit(t Trader) error {
	b.trader = t
	return nil
}

// OnStart is a no-op default
func (b *Base) OnStart() error { return nil }

// OnStop is a no-op default
func (b *Base) OnStop() error { return nil }

// OnBar is a no-op default
func (b *Base) OnBar(_ *market.Bar) {}

// OnTick is a no-op default
func (b *Base) OnTick(_ *market.Tick) {}

// OnTrade keeps the running signed position current
func (b *Base) OnTrade(tr *order.Trade) {
	if tr == nil {
		return
	}
	b.pos += order.PositionChange(tr.Direction, tr.Offset, tr.Volume)
}

// OnOrder is a no-op default
func (b *Base) OnOrder(_ *order.LimitOrder) {}

// OnStopOrder is a no-op default
func (b *Base) OnStopOrder(_ *order.StopOrder) {}

// Trader exposes the stored trading surface
func (b *Base) Trader() Trader {
	return b.trader
}

// Position returns the running signed position derived from fills
func (b *Base) Position() float64 {
	return b.pos
}

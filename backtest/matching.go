package backtest

import (
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
)

// The crossing rules are pure state-transition checks shared by both engines.
// Ties fill, and a crossing order fills its entire remaining volume in one
// step; partial fills are not modelled.

// limitCrossesBar reports whether a resting limit order crosses within a bar
func limitCrossesBar(o *order.LimitOrder, b *market.Bar) bool {
	switch o.Direction {
	case order.Long:
		return o.Price >= b.Low
	case order.Short:
		return o.Price <= b.High
	default:
		return false
	}
}

// limitBarFillPrice is the pessimistic bar mode fill price, the order's own
// limit with no price improvement
func limitBarFillPrice(o *order.LimitOrder, _ *market.Bar) float64 {
	return o.Price
}

// limitCrossesTick reports whether a limit order is marketable against the
// touched quote
func limitCrossesTick(o *order.LimitOrder, tk *market.Tick) bool {
	switch o.Direction {
	case order.Long:
		return o.Price >= tk.AskPrice1
	case order.Short:
		return o.Price <= tk.BidPrice1
	default:
		return false
	}
}

// limitTickFillPrice models marketable execution against the book; the fill
// is the touched quote, not the order's own limit
func limitTickFillPrice(o *order.LimitOrder, tk *market.Tick) float64 {
	if o.Direction == order.Long {
		return tk.AskPrice1
	}
	return tk.BidPrice1
}

// stopTriggersBar reports whether a waiting stop order triggers within a bar
func stopTriggersBar(so *order.StopOrder, b *market.Bar) bool {
	switch so.Direction {
	case order.Long:
		return b.High >= so.Price
	case order.Short:
		return b.Low <= so.Price
	default:
		return false
	}
}

// stopTriggersTick checks the last traded price directly, with no look-ahead
// into bars
func stopTriggersTick(so *order.StopOrder, tk *market.Tick) bool {
	switch so.Direction {
	case order.Long:
		return tk.LastPrice >= so.Price
	case order.Short:
		return tk.LastPrice <= so.Price
	default:
		return false
	}
}

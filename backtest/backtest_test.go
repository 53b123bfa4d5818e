package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

// scriptedStrategy records every callback in arrival order and runs an
// optional script at start so tests can seed resting orders before the
// first event crosses
type scriptedStrategy struct {
	strategy.Base
	onStart func(tr strategy.Trader)
	onBar   func(tr strategy.Trader, b *market.Bar)

	events     []string
	trades     []*order.Trade
	orders     []*order.LimitOrder
	stopOrders []*order.StopOrder
}

func (s *scriptedStrategy) Name() string { return "scripted" }

func (s *scriptedStrategy) OnStart() error {
	if s.onStart != nil {
		s.onStart(s.Trader())
	}
	return nil
}

func (s *scriptedStrategy) OnBar(b *market.Bar) {
	s.events = append(s.events, "bar "+b.Datetime.Format(common.SimpleDateFormat))
	if s.onBar != nil {
		s.onBar(s.Trader(), b)
	}
}

func (s *scriptedStrategy) OnTick(tk *market.Tick) {
	s.events = append(s.events, fmt.Sprintf("tick %v", tk.LastPrice))
}

func (s *scriptedStrategy) OnTrade(tr *order.Trade) {
	s.Base.OnTrade(tr)
	s.trades = append(s.trades, tr)
	s.events = append(s.events, "trade "+tr.ID)
}

func (s *scriptedStrategy) OnOrder(o *order.LimitOrder) {
	s.orders = append(s.orders, o)
	s.events = append(s.events, fmt.Sprintf("order %v %v", o.ID, o.Status))
}

func (s *scriptedStrategy) OnStopOrder(so *order.StopOrder) {
	s.stopOrders = append(s.stopOrders, so)
	s.events = append(s.events, fmt.Sprintf("stop %v %v", so.ID, so.Status))
}

var testInstrument = market.NewInstrument("rb2401", "SHFE")

func testParameters() Parameters {
	return Parameters{
		Instrument: testInstrument,
		Interval:   market.OneDay,
		Start:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
		Size:       decimal.NewFromInt(10),
		PriceTick:  1,
		Capital:    decimal.NewFromInt(1000000),
	}
}

// threeDayBars is the canonical three day scenario the accounting tests
// share
func threeDayBars() []market.Bar {
	day := func(d int, o, h, l, c float64) market.Bar {
		return market.Bar{
			Instrument: testInstrument,
			Datetime:   time.Date(2023, 6, d, 15, 0, 0, 0, time.UTC),
			Interval:   market.OneDay,
			Open:       o,
			High:       h,
			Low:        l,
			Close:      c,
			Volume:     1000,
		}
	}
	return []market.Bar{
		day(1, 100, 105, 95, 102),
		day(2, 102, 103, 98, 99),
		day(3, 99, 104, 97, 103),
	}
}

func preparedEngine(t *testing.T, s strategy.Template) *Backtesting {
	t.Helper()
	b := New()
	require.NoError(t, b.SetParameters(testParameters()))
	require.NoError(t, b.SetHistoryData(threeDayBars()))
	require.NoError(t, b.AddStrategy(s))
	return b
}

func TestSetParameters(t *testing.T) {
	t.Parallel()
	b := New()

	p := testParameters()
	p.Instrument = market.Instrument{}
	assert.ErrorIs(t, b.SetParameters(p), market.ErrSymbolStringEmpty)

	p = testParameters()
	p.Start, p.End = p.End, p.Start
	assert.ErrorIs(t, b.SetParameters(p), common.ErrStartAfterEnd)

	p = testParameters()
	p.Mode = "candle"
	assert.ErrorIs(t, b.SetParameters(p), errInvalidMode)

	p = testParameters()
	p.Size = decimal.Zero
	assert.ErrorIs(t, b.SetParameters(p), errInvalidSize)

	p = testParameters()
	p.Rate = decimal.NewFromInt(-1)
	assert.ErrorIs(t, b.SetParameters(p), errNegativeCosts)

	p = testParameters()
	require.NoError(t, b.SetParameters(p))
	assert.Equal(t, BarMode, b.params.Mode)
	assert.Equal(t, DefaultAnnualDays, b.params.AnnualDays)
}

func TestSetHistoryData(t *testing.T) {
	t.Parallel()
	b := New()
	assert.ErrorIs(t, b.SetHistoryData(threeDayBars()), errParametersUnset)

	require.NoError(t, b.SetParameters(testParameters()))
	assert.ErrorIs(t, b.SetHistoryData(nil), common.ErrNoData)
	assert.NoError(t, b.SetHistoryData(threeDayBars()))
}

func TestSetTickData(t *testing.T) {
	t.Parallel()
	b := New()
	assert.ErrorIs(t, b.SetTickData([]market.Tick{{}}), errParametersUnset)

	p := testParameters()
	p.Mode = TickMode
	require.NoError(t, b.SetParameters(p))
	assert.ErrorIs(t, b.SetTickData(nil), common.ErrNoData)
	assert.NoError(t, b.SetTickData([]market.Tick{{Instrument: testInstrument}}))
}

func TestAddStrategy(t *testing.T) {
	t.Parallel()
	b := New()
	assert.ErrorIs(t, b.AddStrategy(nil), common.ErrNilArguments)
	require.NoError(t, b.AddStrategy(&scriptedStrategy{}))
	assert.ErrorIs(t, b.AddStrategy(&scriptedStrategy{}), errStrategySet)
}

func TestRunValidation(t *testing.T) {
	t.Parallel()
	b := New()
	assert.ErrorIs(t, b.Run(t.Context()), errParametersUnset)

	require.NoError(t, b.SetParameters(testParameters()))
	assert.ErrorIs(t, b.Run(t.Context()), errNoStrategy)

	require.NoError(t, b.AddStrategy(&scriptedStrategy{}))
	assert.ErrorIs(t, b.Run(t.Context()), errNoData)
}

func TestRunTwice(t *testing.T) {
	t.Parallel()
	b := preparedEngine(t, &scriptedStrategy{})
	require.NoError(t, b.Run(t.Context()))
	assert.ErrorIs(t, b.Run(t.Context()), errAlreadyRan)

	// ClearData is the documented path between repeated runs
	b.ClearData()
	require.NoError(t, b.SetHistoryData(threeDayBars()))
	assert.NoError(t, b.Run(t.Context()))
}

func TestRunContextCancelled(t *testing.T) {
	t.Parallel()
	b := preparedEngine(t, &scriptedStrategy{})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, b.Run(ctx), context.Canceled)
}

func TestSendLimitOrderValidation(t *testing.T) {
	t.Parallel()
	b := New()
	require.NoError(t, b.SetParameters(testParameters()))

	_, err := b.SendLimitOrder(nil)
	assert.ErrorIs(t, err, order.ErrSubmissionIsNil)

	_, err = b.SendLimitOrder(&order.Request{
		Instrument: market.NewInstrument("cu2402", "SHFE"),
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100,
		Volume:     1,
	})
	assert.ErrorIs(t, err, errWrongInstrument)

	// prices snap to the instrument's tick
	id, err := b.SendLimitOrder(&order.Request{
		Instrument: testInstrument,
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100.4,
		Volume:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, b.limitOrders[id].Price)
	assert.Equal(t, order.Submitting, b.limitOrders[id].Status)
}

func TestCancelOrder(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{}
	b := New()
	require.NoError(t, b.SetParameters(testParameters()))
	require.NoError(t, b.AddStrategy(s))

	assert.ErrorIs(t, b.CancelOrder("404"), errUnknownOrder)
	assert.ErrorIs(t, b.CancelOrder("STOP.404"), errUnknownOrder)

	limitID, err := b.SendLimitOrder(&order.Request{
		Instrument: testInstrument,
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100,
		Volume:     1,
	})
	require.NoError(t, err)
	stopID, err := b.SendStopOrder(&order.Request{
		Instrument: testInstrument,
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      105,
		Volume:     1,
	})
	require.NoError(t, err)

	require.NoError(t, b.CancelAll())
	assert.Empty(t, b.activeLimitOrders)
	assert.Empty(t, b.activeStopOrders)
	assert.Equal(t, order.Cancelled, b.limitOrders[limitID].Status)
	assert.Equal(t, order.StopCancelled, b.stopOrders[stopID].Status)

	// the historical record survives cancellation
	assert.Contains(t, b.limitOrders, limitID)
	assert.Contains(t, b.stopOrders, stopID)
}

func TestRunLimitFillAndDailyAccounting(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, err := tr.SendLimitOrder(&order.Request{
				Instrument: testInstrument,
				Direction:  order.Long,
				Offset:     order.Open,
				Price:      96,
				Volume:     1,
			})
			if err != nil {
				t.Error(err)
			}
		},
	}
	b := preparedEngine(t, s)
	require.NoError(t, b.Run(t.Context()))

	// the resting buy at 96 crosses on day one because the low trades
	// through it, and fills at its own limit price
	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 96.0, trades[0].Price)
	assert.Equal(t, 1.0, trades[0].Volume)
	assert.Equal(t, "2023-06-01", trades[0].Datetime.Format(common.SimpleDateFormat))
	assert.Equal(t, 1.0, b.Position())
	assert.Equal(t, 1.0, s.Position())

	// submission flip, fill notification, trade, then the bar itself
	assert.Equal(t, []string{
		"order 1 NOTTRADED",
		"order 1 ALLTRADED",
		"trade 1",
		"bar 2023-06-01",
		"bar 2023-06-02",
		"bar 2023-06-03",
	}, s.events)

	res, err := b.CalculateResult()
	require.NoError(t, err)
	require.Len(t, res.DailyResults, 3)

	// day one: bought 1 at 96, close 102, size 10
	d1 := res.DailyResults[0]
	assert.Equal(t, 0.0, d1.StartPos)
	assert.Equal(t, 1.0, d1.EndPos)
	assert.True(t, d1.TradingPnL.Equal(decimal.NewFromInt(60)), "got %v", d1.TradingPnL)
	assert.True(t, d1.HoldingPnL.IsZero())
	assert.True(t, d1.NetPnL.Equal(decimal.NewFromInt(60)))
	assert.True(t, d1.Turnover.Equal(decimal.NewFromInt(960)))

	// day two: carried long marks 102 -> 99
	d2 := res.DailyResults[1]
	assert.Equal(t, 102.0, d2.PreClose)
	assert.Equal(t, 1.0, d2.StartPos)
	assert.True(t, d2.HoldingPnL.Equal(decimal.NewFromInt(-30)), "got %v", d2.HoldingPnL)
	assert.True(t, d2.NetPnL.Equal(decimal.NewFromInt(-30)))

	// day three: carried long marks 99 -> 103
	d3 := res.DailyResults[2]
	assert.True(t, d3.HoldingPnL.Equal(decimal.NewFromInt(40)), "got %v", d3.HoldingPnL)

	assert.True(t, res.EndCapital.Equal(decimal.NewFromInt(1000070)), "got %v", res.EndCapital)
}

func TestRunAppliesCosts(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, _ = tr.SendLimitOrder(&order.Request{
				Instrument: testInstrument,
				Direction:  order.Long,
				Offset:     order.Open,
				Price:      96,
				Volume:     2,
			})
		},
	}
	b := New()
	p := testParameters()
	p.Rate = decimal.NewFromFloat(0.001)
	p.Slippage = decimal.NewFromFloat(0.5)
	require.NoError(t, b.SetParameters(p))
	require.NoError(t, b.SetHistoryData(threeDayBars()))
	require.NoError(t, b.AddStrategy(s))
	require.NoError(t, b.Run(t.Context()))

	res, err := b.CalculateResult()
	require.NoError(t, err)
	d1 := res.DailyResults[0]

	// turnover 96*2*10 = 1920, commission 1.92, slippage 2*10*0.5 = 10
	assert.True(t, d1.Turnover.Equal(decimal.NewFromInt(1920)))
	assert.True(t, d1.Commission.Equal(decimal.NewFromFloat(1.92)), "got %v", d1.Commission)
	assert.True(t, d1.Slippage.Equal(decimal.NewFromInt(10)))
	wantNet := d1.TotalPnL.Sub(d1.Commission).Sub(d1.Slippage)
	assert.True(t, d1.NetPnL.Equal(wantNet))
}

func TestStopOrderTriggersThenFillsNextEvent(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, err := tr.SendStopOrder(&order.Request{
				Instrument: testInstrument,
				Direction:  order.Long,
				Offset:     order.Open,
				Price:      104,
				Volume:     1,
			})
			if err != nil {
				t.Error(err)
			}
		},
	}
	b := preparedEngine(t, s)
	require.NoError(t, b.Run(t.Context()))

	// the stop triggers on day one because the high touches 104, but its
	// emitted limit order only crosses on day two
	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 104.0, trades[0].Price)
	assert.Equal(t, "2023-06-02", trades[0].Datetime.Format(common.SimpleDateFormat))

	require.Len(t, s.stopOrders, 2)
	assert.Equal(t, order.Waiting, s.stopOrders[0].Status)
	triggered := s.stopOrders[1]
	assert.Equal(t, order.Triggered, triggered.Status)
	require.Len(t, triggered.OrderIDs, 1)
	assert.Equal(t, trades[0].OrderID, triggered.OrderIDs[0])

	assert.Equal(t, []string{
		"stop STOP.1 WAITING",
		"stop STOP.1 TRIGGERED",
		"order 1 NOTTRADED",
		"bar 2023-06-01",
		"order 1 ALLTRADED",
		"trade 1",
		"bar 2023-06-02",
		"bar 2023-06-03",
	}, s.events)
}

func TestTickModeRun(t *testing.T) {
	t.Parallel()
	when := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	ticks := []market.Tick{
		{Instrument: testInstrument, Datetime: when, LastPrice: 100, BidPrice1: 99.5, AskPrice1: 100.5},
		{Instrument: testInstrument, Datetime: when.Add(time.Second), LastPrice: 99, BidPrice1: 98.5, AskPrice1: 99.5},
	}
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, _ = tr.SendLimitOrder(&order.Request{
				Instrument: testInstrument,
				Direction:  order.Long,
				Offset:     order.Open,
				Price:      100,
				Volume:     1,
			})
		},
	}
	b := New()
	p := testParameters()
	p.Mode = TickMode
	p.PriceTick = 0.5
	require.NoError(t, b.SetParameters(p))
	require.NoError(t, b.SetTickData(ticks))
	require.NoError(t, b.AddStrategy(s))
	require.NoError(t, b.Run(t.Context()))

	// not marketable against the first quote, fills at the second's offer
	trades := b.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 99.5, trades[0].Price)
}

func TestCalculateResultBeforeRun(t *testing.T) {
	t.Parallel()
	b := preparedEngine(t, &scriptedStrategy{})
	_, err := b.CalculateResult()
	assert.ErrorIs(t, err, errNotRun)
	_, err = b.CalculateStatistics(false)
	assert.ErrorIs(t, err, errNotRun)
}

package backtest

import (
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

var (
	rbInstrument = market.NewInstrument("rb2401", "SHFE")
	cuInstrument = market.NewInstrument("cu2402", "SHFE")
)

func portfolioParameters() PortfolioParameters {
	settings := func(i market.Instrument) InstrumentSettings {
		return InstrumentSettings{
			Instrument: i,
			Size:       decimal.NewFromInt(1),
			PriceTick:  1,
		}
	}
	return PortfolioParameters{
		Start:   time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
		Capital: decimal.NewFromInt(100000),
		Instruments: []InstrumentSettings{
			settings(rbInstrument),
			settings(cuInstrument),
		},
	}
}

func portfolioBar(i market.Instrument, d int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Instrument: i,
		Datetime:   time.Date(2023, 6, d, 15, 0, 0, 0, time.UTC),
		Interval:   market.OneDay,
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
	}
}

func TestPortfolioSetParameters(t *testing.T) {
	t.Parallel()
	p := NewPortfolio()

	params := portfolioParameters()
	params.Instruments = nil
	assert.ErrorIs(t, p.SetParameters(params), errNoInstruments)

	params = portfolioParameters()
	params.Start, params.End = params.End, params.Start
	assert.ErrorIs(t, p.SetParameters(params), common.ErrStartAfterEnd)

	params = portfolioParameters()
	params.Instruments[1] = params.Instruments[0]
	assert.ErrorIs(t, p.SetParameters(params), errDuplicateSettings)

	params = portfolioParameters()
	params.Instruments[0].Size = decimal.Zero
	assert.ErrorIs(t, p.SetParameters(params), errInvalidSize)

	params = portfolioParameters()
	params.Instruments[0].Rate = decimal.NewFromInt(-1)
	assert.ErrorIs(t, p.SetParameters(params), errNegativeCosts)

	require.NoError(t, p.SetParameters(portfolioParameters()))
	assert.Equal(t, DefaultAnnualDays, p.params.AnnualDays)
}

func TestPortfolioSetHistoryData(t *testing.T) {
	t.Parallel()
	p := NewPortfolio()
	err := p.SetHistoryData(rbInstrument, []market.Bar{portfolioBar(rbInstrument, 1, 100, 105, 95, 102)})
	assert.ErrorIs(t, err, errParametersUnset)

	require.NoError(t, p.SetParameters(portfolioParameters()))
	err = p.SetHistoryData(market.NewInstrument("au2406", "SHFE"), []market.Bar{portfolioBar(rbInstrument, 1, 100, 105, 95, 102)})
	assert.ErrorIs(t, err, errUnknownInstrument)

	err = p.SetHistoryData(rbInstrument, nil)
	assert.ErrorIs(t, err, common.ErrNoData)

	assert.NoError(t, p.SetHistoryData(rbInstrument, []market.Bar{portfolioBar(rbInstrument, 1, 100, 105, 95, 102)}))
}

func TestPortfolioMergeOrdering(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{}
	barSeen := make([]string, 0, 4)
	s.onBar = func(_ strategy.Trader, b *market.Bar) {
		barSeen = append(barSeen, b.Instrument.String()+" "+b.Datetime.Format(common.SimpleDateFormat))
	}

	p := NewPortfolio()
	require.NoError(t, p.SetParameters(portfolioParameters()))
	require.NoError(t, p.SetHistoryData(rbInstrument, []market.Bar{
		portfolioBar(rbInstrument, 1, 100, 105, 95, 102),
		portfolioBar(rbInstrument, 2, 102, 103, 98, 99),
	}))
	require.NoError(t, p.SetHistoryData(cuInstrument, []market.Bar{
		portfolioBar(cuInstrument, 1, 50, 55, 45, 52),
	}))
	require.NoError(t, p.AddStrategy(s))
	require.NoError(t, p.Run(t.Context()))

	// equal timestamps resolve by sorted symbol order, later timestamps after
	assert.Equal(t, []string{
		"cu2402.SHFE 2023-06-01",
		"rb2401.SHFE 2023-06-01",
		"rb2401.SHFE 2023-06-02",
	}, barSeen)
}

func TestPortfolioRunValidation(t *testing.T) {
	t.Parallel()
	p := NewPortfolio()
	assert.ErrorIs(t, p.Run(t.Context()), errParametersUnset)

	require.NoError(t, p.SetParameters(portfolioParameters()))
	assert.ErrorIs(t, p.Run(t.Context()), errNoStrategy)

	require.NoError(t, p.AddStrategy(&scriptedStrategy{}))
	assert.ErrorIs(t, p.Run(t.Context()), errNoData)

	require.NoError(t, p.SetHistoryData(rbInstrument, []market.Bar{portfolioBar(rbInstrument, 1, 100, 105, 95, 102)}))
	require.NoError(t, p.Run(t.Context()))
	assert.ErrorIs(t, p.Run(t.Context()), errAlreadyRan)
}

func TestPortfolioFillsAndRealizedPnL(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, err := tr.SendLimitOrder(&order.Request{
				Instrument: rbInstrument,
				Direction:  order.Long,
				Offset:     order.Open,
				Price:      96,
				Volume:     1,
			})
			if err != nil {
				t.Error(err)
			}
			_, err = tr.SendLimitOrder(&order.Request{
				Instrument: cuInstrument,
				Direction:  order.Short,
				Offset:     order.Open,
				Price:      54,
				Volume:     1,
			})
			if err != nil {
				t.Error(err)
			}
		},
	}
	p := NewPortfolio()
	require.NoError(t, p.SetParameters(portfolioParameters()))
	require.NoError(t, p.SetHistoryData(rbInstrument, []market.Bar{
		portfolioBar(rbInstrument, 1, 100, 105, 95, 102),
	}))
	require.NoError(t, p.SetHistoryData(cuInstrument, []market.Bar{
		portfolioBar(cuInstrument, 1, 50, 55, 45, 52),
	}))
	require.NoError(t, p.AddStrategy(s))
	require.NoError(t, p.Run(t.Context()))

	require.Len(t, p.trades, 2)

	positions := p.Positions()
	assert.Equal(t, 1.0, positions[rbInstrument.String()])
	assert.Equal(t, -1.0, positions[cuInstrument.String()])

	// open legs consume notional, flipped for the short direction
	realized := p.RealizedPnL()
	assert.True(t, realized[rbInstrument.String()].Equal(decimal.NewFromInt(-96)),
		"got %v", realized[rbInstrument.String()])
	assert.True(t, realized[cuInstrument.String()].Equal(decimal.NewFromInt(54)),
		"got %v", realized[cuInstrument.String()])

	res, err := p.CalculateResult()
	require.NoError(t, err)
	require.Len(t, res.DailyResults, 1)
	d1 := res.DailyResults[0]
	assert.Equal(t, 2, d1.TradeCount)
	// realised notional only, open inventory is not marked to market
	assert.True(t, d1.TradingPnL.Equal(decimal.NewFromInt(-42)), "got %v", d1.TradingPnL)
	assert.True(t, d1.NetPnL.Equal(decimal.NewFromInt(-42)))
	assert.True(t, res.EndCapital.Equal(decimal.NewFromInt(99958)), "got %v", res.EndCapital)

	_, err = p.CalculateStatistics(false)
	assert.NoError(t, err)
}

func TestPortfolioStopOrder(t *testing.T) {
	t.Parallel()
	s := &scriptedStrategy{
		onStart: func(tr strategy.Trader) {
			_, err := tr.SendStopOrder(&order.Request{
				Instrument: rbInstrument,
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
	p := NewPortfolio()
	require.NoError(t, p.SetParameters(portfolioParameters()))
	require.NoError(t, p.SetHistoryData(rbInstrument, []market.Bar{
		portfolioBar(rbInstrument, 1, 100, 105, 95, 102),
		portfolioBar(rbInstrument, 2, 102, 103, 98, 99),
	}))
	require.NoError(t, p.AddStrategy(s))
	require.NoError(t, p.Run(t.Context()))

	// triggered on day one, the emitted limit order crosses on day two
	require.Len(t, p.trades, 1)
	assert.Equal(t, 104.0, p.trades[0].Price)
	assert.Equal(t, "2023-06-02", p.trades[0].Datetime.Format(common.SimpleDateFormat))
}

func TestPortfolioOrderValidation(t *testing.T) {
	t.Parallel()
	p := NewPortfolio()
	require.NoError(t, p.SetParameters(portfolioParameters()))

	_, err := p.SendLimitOrder(&order.Request{
		Instrument: market.NewInstrument("au2406", "SHFE"),
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100,
		Volume:     1,
	})
	assert.ErrorIs(t, err, errUnknownInstrument)

	_, err = p.SendStopOrder(&order.Request{
		Instrument: market.NewInstrument("au2406", "SHFE"),
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100,
		Volume:     1,
	})
	assert.ErrorIs(t, err, errUnknownInstrument)

	assert.ErrorIs(t, p.CancelOrder("404"), errUnknownOrder)

	id, err := p.SendLimitOrder(&order.Request{
		Instrument: rbInstrument,
		Direction:  order.Long,
		Offset:     order.Open,
		Price:      100.4,
		Volume:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.limitOrders[id].Price)

	require.NoError(t, p.CancelAll())
	assert.Empty(t, p.activeLimitOrders)
}

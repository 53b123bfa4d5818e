package rsi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
)

type captureTrader struct {
	requests []*order.Request
}

func (c *captureTrader) SendLimitOrder(r *order.Request) (string, error) {
	c.requests = append(c.requests, r)
	return "1", nil
}

func (c *captureTrader) SendStopOrder(_ *order.Request) (string, error) { return "STOP.1", nil }
func (c *captureTrader) CancelOrder(_ string) error                     { return nil }
func (c *captureTrader) CancelAll() error                               { return nil }

func feedCloses(s *Strategy, closes []float64) {
	i := market.NewInstrument("rb2401", "SHFE")
	when := time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)
	for n, c := range closes {
		s.OnBar(&market.Bar{
			Instrument: i,
			Datetime:   when.Add(time.Duration(n) * time.Minute),
			Interval:   market.OneMin,
			Open:       c,
			High:       c,
			Low:        c,
			Close:      c,
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()
	s := New(Settings{})
	assert.Equal(t, DefaultPeriod, s.settings.Period)
	assert.Equal(t, DefaultLow, s.settings.Low)
	assert.Equal(t, DefaultHigh, s.settings.High)
	assert.Equal(t, DefaultVolume, s.settings.Volume)
	assert.Equal(t, Name, s.Name())
}

func TestOnBarBuysOversold(t *testing.T) {
	t.Parallel()
	s := New(Settings{Period: 3, Volume: 2, PriceOffset: 1})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	// a strictly falling series drives RSI to zero once the window fills
	feedCloses(s, []float64{100, 99, 98, 97})

	require.Len(t, tr.requests, 1)
	r := tr.requests[0]
	assert.Equal(t, order.Long, r.Direction)
	assert.Equal(t, order.Open, r.Offset)
	assert.Equal(t, 2.0, r.Volume)
	assert.Equal(t, 98.0, r.Price)
}

func TestOnBarSellsOverbought(t *testing.T) {
	t.Parallel()
	s := New(Settings{Period: 3, Volume: 2})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	// hold a long so the overbought branch is allowed to close it
	s.OnTrade(&order.Trade{Direction: order.Long, Offset: order.Open, Volume: 2})

	// a strictly rising series drives RSI to one hundred
	feedCloses(s, []float64{100, 101, 102, 103})

	require.Len(t, tr.requests, 1)
	r := tr.requests[0]
	assert.Equal(t, order.Long, r.Direction)
	assert.Equal(t, order.Close, r.Offset)
	assert.Equal(t, 103.0, r.Price)
}

func TestOnBarNoSignalWithoutWindow(t *testing.T) {
	t.Parallel()
	s := New(Settings{Period: 14})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	feedCloses(s, []float64{100, 99, 98, 97})
	assert.Empty(t, tr.requests)
	s.OnBar(nil)
	assert.Empty(t, tr.requests)
}

func TestOnBarNoSellWithoutPosition(t *testing.T) {
	t.Parallel()
	s := New(Settings{Period: 3})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	feedCloses(s, []float64{100, 101, 102, 103})
	assert.Empty(t, tr.requests)
}

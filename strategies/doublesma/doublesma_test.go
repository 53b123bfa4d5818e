package doublesma

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
	assert.Equal(t, DefaultFastPeriod, s.settings.FastPeriod)
	assert.Equal(t, DefaultSlowPeriod, s.settings.SlowPeriod)
	assert.Equal(t, DefaultVolume, s.settings.Volume)
	assert.Equal(t, Name, s.Name())
}

func TestGoldenCrossOpensLong(t *testing.T) {
	t.Parallel()
	s := New(Settings{FastPeriod: 2, SlowPeriod: 3, Volume: 1, PriceOffset: 1})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	// falling closes prime the averages with fast below slow, then the jump
	// to 12 flips them
	feedCloses(s, []float64{10, 9, 8, 12})

	require.Len(t, tr.requests, 1)
	r := tr.requests[0]
	assert.Equal(t, order.Long, r.Direction)
	assert.Equal(t, order.Open, r.Offset)
	assert.Equal(t, 13.0, r.Price)
	assert.Equal(t, 1.0, r.Volume)
}

func TestDeathCrossFlipsToShort(t *testing.T) {
	t.Parallel()
	s := New(Settings{FastPeriod: 2, SlowPeriod: 3, Volume: 1})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	feedCloses(s, []float64{10, 9, 8, 12})
	require.Len(t, tr.requests, 1)

	// acknowledge the fill so the crossover the other way closes it
	s.OnTrade(&order.Trade{Direction: order.Long, Offset: order.Open, Volume: 1})

	feedCloses(s, []float64{13, 5})
	require.Len(t, tr.requests, 3)
	closeReq := tr.requests[1]
	assert.Equal(t, order.Long, closeReq.Direction)
	assert.Equal(t, order.Close, closeReq.Offset)
	assert.Equal(t, 1.0, closeReq.Volume)
	openReq := tr.requests[2]
	assert.Equal(t, order.Short, openReq.Direction)
	assert.Equal(t, order.Open, openReq.Offset)
}

func TestNoSignalWithoutWindow(t *testing.T) {
	t.Parallel()
	s := New(Settings{FastPeriod: 2, SlowPeriod: 3})
	tr := &captureTrader{}
	require.NoError(t, s.OnInit(tr))

	feedCloses(s, []float64{10, 9})
	assert.Empty(t, tr.requests)
	s.OnBar(nil)
	assert.Empty(t, tr.requests)
}

package backtest

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

var (
	errNoInstruments     = errors.New("no instrument settings supplied")
	errDuplicateSettings = errors.New("duplicate instrument settings")
	errUnknownInstrument = errors.New("instrument has no settings in this portfolio")
)

// InstrumentSettings carries the per-symbol cost model for a portfolio run
type InstrumentSettings struct {
	Instrument market.Instrument
	Rate       decimal.Decimal
	Slippage   decimal.Decimal
	Size       decimal.Decimal
	PriceTick  float64
}

// PortfolioParameters is everything a portfolio run requires up front
type PortfolioParameters struct {
	Start        time.Time
	End          time.Time
	Capital      decimal.Decimal
	RiskFreeRate decimal.Decimal
	AnnualDays   int
	Instruments  []InstrumentSettings
}

// Portfolio replays a merged, globally time-sorted multi-instrument bar
// stream through a single strategy, tracking positions and realised P&L per
// symbol. It shares the crossing rules and statistics reduction with the
// single-instrument engine
type Portfolio struct {
	params    PortfolioParameters
	settings  map[string]InstrumentSettings
	paramsSet bool
	strategy  strategy.Template

	bars   map[string][]market.Bar
	merged []market.Bar

	datetime time.Time
	bar      *market.Bar

	limitOrders       map[string]*order.LimitOrder
	activeLimitOrders map[string]*order.LimitOrder
	stopOrders        map[string]*order.StopOrder
	activeStopOrders  map[string]*order.StopOrder
	trades            []*order.Trade

	limitOrderCount int64
	stopOrderCount  int64
	tradeCount      int64

	positions map[string]float64
	realized  map[string]decimal.Decimal

	dailyResults map[string]*DailyResult
	dailyDates   []time.Time

	hasRun bool
}

// NewPortfolio returns a fresh portfolio backtesting engine
func NewPortfolio() *Portfolio {
	p := &Portfolio{}
	p.resetPortfolio()
	return p
}

func (p *Portfolio) resetPortfolio() {
	p.bars = make(map[string][]market.Bar)
	p.merged = nil
	p.datetime = time.Time{}
	p.bar = nil
	p.limitOrders = make(map[string]*order.LimitOrder)
	p.activeLimitOrders = make(map[string]*order.LimitOrder)
	p.stopOrders = make(map[string]*order.StopOrder)
	p.activeStopOrders = make(map[string]*order.StopOrder)
	p.trades = nil
	p.limitOrderCount = 0
	p.stopOrderCount = 0
	p.tradeCount = 0
	p.positions = make(map[string]float64)
	p.realized = make(map[string]decimal.Decimal)
	p.dailyResults = make(map[string]*DailyResult)
	p.dailyDates = nil
	p.hasRun = false
}

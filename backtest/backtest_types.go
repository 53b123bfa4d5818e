package backtest

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

// Mode selects which event type drives the engine
type Mode string

// Engine modes
const (
	BarMode  Mode = "bar"
	TickMode Mode = "tick"
)

const (
	// DefaultAnnualDays is the trading day count used to annualise returns
	DefaultAnnualDays = 252
)

var (
	errNoStrategy      = errors.New("no strategy attached")
	errStrategySet     = errors.New("strategy already attached")
	errNoData          = errors.New("no history data set")
	errAlreadyRan      = errors.New("backtest already ran, call ClearData before running again")
	errInvalidMode     = errors.New("invalid engine mode")
	errUnknownOrder    = errors.New("order id not found in active set")
	errWrongInstrument = errors.New("request instrument does not match engine instrument")
	errInvalidSize     = errors.New("contract size must be positive")
	errNegativeCosts   = errors.New("rate, slippage and capital cannot be negative")
	errParametersUnset = errors.New("parameters must be set before running")
	errNotRun          = errors.New("backtest has not been run")
)

// Parameters is everything SetParameters requires before a run
type Parameters struct {
	Instrument market.Instrument
	Interval   market.Interval
	Start      time.Time
	End        time.Time
	// Rate is the commission rate applied to traded notional
	Rate decimal.Decimal
	// Slippage is the cost per traded unit of volume, in price terms
	Slippage decimal.Decimal
	// Size is the contract multiplier
	Size decimal.Decimal
	// PriceTick is the minimum price increment of the instrument
	PriceTick float64
	// Capital is the starting balance
	Capital decimal.Decimal
	Mode    Mode
	// RiskFreeRate is annualised and used by statistics calculation
	RiskFreeRate decimal.Decimal
	// AnnualDays defaults to DefaultAnnualDays when zero
	AnnualDays int
}

// Result is the accounting outcome of one run
type Result struct {
	StartCapital decimal.Decimal
	EndCapital   decimal.Decimal
	DailyResults []*DailyResult
}

// Backtesting replays one instrument's ordered market events against a
// strategy, simulating fills for resting limit and stop orders. It is a
// deterministic single threaded event loop; all mutation happens inside Run
type Backtesting struct {
	params    Parameters
	paramsSet bool
	strategy  strategy.Template

	bars  []market.Bar
	ticks []market.Tick

	datetime time.Time
	bar      *market.Bar
	tick     *market.Tick

	limitOrders       map[string]*order.LimitOrder
	activeLimitOrders map[string]*order.LimitOrder
	stopOrders        map[string]*order.StopOrder
	activeStopOrders  map[string]*order.StopOrder
	trades            []*order.Trade

	limitOrderCount int64
	stopOrderCount  int64
	tradeCount      int64

	pos float64

	dailyResults map[string]*DailyResult
	dailyDates   []time.Time

	hasRun bool
}

// New returns a fresh single-instrument backtesting engine
func New() *Backtesting {
	b := &Backtesting{}
	b.reset()
	return b
}

func (b *Backtesting) reset() {
	b.bars = nil
	b.ticks = nil
	b.datetime = time.Time{}
	b.bar = nil
	b.tick = nil
	b.limitOrders = make(map[string]*order.LimitOrder)
	b.activeLimitOrders = make(map[string]*order.LimitOrder)
	b.stopOrders = make(map[string]*order.StopOrder)
	b.activeStopOrders = make(map[string]*order.StopOrder)
	b.trades = nil
	b.limitOrderCount = 0
	b.stopOrderCount = 0
	b.tradeCount = 0
	b.pos = 0
	b.dailyResults = make(map[string]*DailyResult)
	b.dailyDates = nil
	b.hasRun = false
}

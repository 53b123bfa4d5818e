package backtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

// SetParameters configures the portfolio run and must be called before data
// is injected
func (p *Portfolio) SetParameters(params PortfolioParameters) error {
	if err := common.StartEndTimeCheck(params.Start, params.End); err != nil {
		return err
	}
	if len(params.Instruments) == 0 {
		return errNoInstruments
	}
	if params.Capital.IsNegative() {
		return errNegativeCosts
	}
	if params.AnnualDays <= 0 {
		params.AnnualDays = DefaultAnnualDays
	}
	settings := make(map[string]InstrumentSettings, len(params.Instruments))
	for i := range params.Instruments {
		s := params.Instruments[i]
		if s.Instrument.IsEmpty() {
			return market.ErrSymbolStringEmpty
		}
		if !s.Size.IsPositive() {
			return fmt.Errorf("%w for %v", errInvalidSize, s.Instrument)
		}
		if s.Rate.IsNegative() || s.Slippage.IsNegative() {
			return fmt.Errorf("%w for %v", errNegativeCosts, s.Instrument)
		}
		if _, ok := settings[s.Instrument.String()]; ok {
			return fmt.Errorf("%w for %v", errDuplicateSettings, s.Instrument)
		}
		settings[s.Instrument.String()] = s
	}
	p.params = params
	p.settings = settings
	p.paramsSet = true
	return nil
}

// SetHistoryData injects one instrument's bar stream. The instrument must
// have settings; a missing stream is the recoverable data-absence case the
// caller may skip
func (p *Portfolio) SetHistoryData(i market.Instrument, bars []market.Bar) error {
	if !p.paramsSet {
		return errParametersUnset
	}
	if _, ok := p.settings[i.String()]; !ok {
		return fmt.Errorf("%w: %v", errUnknownInstrument, i)
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w for %v", common.ErrNoData, i)
	}
	p.bars[i.String()] = bars
	return nil
}

// AddStrategy attaches the single strategy instance which receives events
// for all subscribed symbols
func (p *Portfolio) AddStrategy(s strategy.Template) error {
	if s == nil {
		return common.ErrNilArguments
	}
	if p.strategy != nil {
		return fmt.Errorf("%w '%v'", errStrategySet, p.strategy.Name())
	}
	p.strategy = s
	return nil
}

// Run merges the per-symbol streams into one globally timestamp-sorted
// sequence and replays it. The merge is stable, so ties keep each symbol's
// original ordering
func (p *Portfolio) Run(ctx context.Context) error {
	if !p.paramsSet {
		return errParametersUnset
	}
	if p.strategy == nil {
		return errNoStrategy
	}
	if p.hasRun {
		return errAlreadyRan
	}
	if len(p.bars) == 0 {
		return fmt.Errorf("%w across portfolio", errNoData)
	}
	p.hasRun = true
	p.mergeStreams()

	log.Infof(log.Portfolio, "running %v portfolio backtest across %v instruments, %v bars",
		p.strategy.Name(), len(p.bars), len(p.merged))

	if err := p.strategy.OnInit(p); err != nil {
		return fmt.Errorf("strategy %v OnInit: %w", p.strategy.Name(), err)
	}
	if err := p.strategy.OnStart(); err != nil {
		return fmt.Errorf("strategy %v OnStart: %w", p.strategy.Name(), err)
	}

	for i := range p.merged {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.processBar(&p.merged[i])
	}

	if err := p.strategy.OnStop(); err != nil {
		return fmt.Errorf("strategy %v OnStop: %w", p.strategy.Name(), err)
	}
	log.Infof(log.Portfolio, "portfolio backtest complete, %v trades over %v days",
		len(p.trades), len(p.dailyDates))
	return nil
}

// ClearData resets run state so the engine can be reused
func (p *Portfolio) ClearData() {
	p.resetPortfolio()
}

func (p *Portfolio) mergeStreams() {
	symbols := make([]string, 0, len(p.bars))
	for symbol := range p.bars {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		p.merged = append(p.merged, p.bars[symbol]...)
	}
	sort.SliceStable(p.merged, func(i, j int) bool {
		return p.merged[i].Datetime.Before(p.merged[j].Datetime)
	})
}

func (p *Portfolio) processBar(bar *market.Bar) {
	p.bar = bar
	p.datetime = bar.Datetime
	p.rollDailyResult()
	p.crossLimitOrders()
	p.crossStopOrders()
	p.strategy.OnBar(bar)
}

func (p *Portfolio) rollDailyResult() {
	key := p.datetime.Format(common.SimpleDateFormat)
	if _, ok := p.dailyResults[key]; ok {
		return
	}
	y, m, d := p.datetime.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, p.datetime.Location())
	p.dailyResults[key] = newDailyResult(date, 0)
	p.dailyDates = append(p.dailyDates, date)
}

// crossLimitOrders applies the shared crossing rules to every active order
// resting on the current bar's instrument
func (p *Portfolio) crossLimitOrders() {
	for _, id := range sortedIDs(p.activeLimitOrders) {
		o := p.activeLimitOrders[id]
		if !o.Instrument.Equal(p.bar.Instrument) {
			continue
		}
		if o.Status == order.Submitting {
			o.Status = order.NotTraded
			p.strategy.OnOrder(o)
		}
		if !limitCrossesBar(o, p.bar) {
			continue
		}

		volume := o.RemainingVolume()
		o.Traded = o.Volume
		o.Status = order.AllTraded
		delete(p.activeLimitOrders, id)
		p.strategy.OnOrder(o)

		p.tradeCount++
		trade := &order.Trade{
			ID:         strconv.FormatInt(p.tradeCount, 10),
			OrderID:    o.ID,
			Instrument: o.Instrument,
			Direction:  o.Direction,
			Offset:     o.Offset,
			Price:      limitBarFillPrice(o, p.bar),
			Volume:     volume,
			Datetime:   p.datetime,
		}
		symbol := trade.Instrument.String()
		p.positions[symbol] += order.PositionChange(trade.Direction, trade.Offset, trade.Volume)
		p.realized[symbol] = p.realized[symbol].Add(p.tradeNotional(trade))
		p.trades = append(p.trades, trade)
		if dr := p.dailyResults[p.datetime.Format(common.SimpleDateFormat)]; dr != nil {
			dr.addTrade(trade)
		}
		p.strategy.OnTrade(trade)
	}
}

func (p *Portfolio) crossStopOrders() {
	for _, id := range sortedIDs(p.activeStopOrders) {
		so := p.activeStopOrders[id]
		if !so.Instrument.Equal(p.bar.Instrument) {
			continue
		}
		if !stopTriggersBar(so, p.bar) {
			continue
		}

		p.limitOrderCount++
		lo := &order.LimitOrder{
			ID:         strconv.FormatInt(p.limitOrderCount, 10),
			Instrument: so.Instrument,
			Direction:  so.Direction,
			Offset:     so.Offset,
			Price:      so.Price,
			Volume:     so.Volume,
			Status:     order.NotTraded,
			Datetime:   p.datetime,
		}
		p.limitOrders[lo.ID] = lo
		p.activeLimitOrders[lo.ID] = lo

		so.Status = order.Triggered
		so.OrderIDs = append(so.OrderIDs, lo.ID)
		delete(p.activeStopOrders, id)

		p.strategy.OnStopOrder(so)
		p.strategy.OnOrder(lo)
	}
}

// tradeNotional is the realised cash flow of one fill: open legs consume
// notional, close legs release it, flipped for the short direction
func (p *Portfolio) tradeNotional(t *order.Trade) decimal.Decimal {
	s := p.settings[t.Instrument.String()]
	notional := decimal.NewFromFloat(t.Price).
		Mul(decimal.NewFromFloat(t.Volume)).
		Mul(s.Size)
	sign := decimal.NewFromInt(1)
	if t.Offset == order.Open {
		sign = decimal.NewFromInt(-1)
	}
	if t.Direction == order.Short {
		sign = sign.Neg()
	}
	return notional.Mul(sign)
}

// SendLimitOrder places an order against any instrument the portfolio holds
// settings for
func (p *Portfolio) SendLimitOrder(r *order.Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s, ok := p.settings[r.Instrument.String()]
	if !ok {
		return "", fmt.Errorf("%w: %v", errUnknownInstrument, r.Instrument)
	}
	p.limitOrderCount++
	o := &order.LimitOrder{
		ID:         strconv.FormatInt(p.limitOrderCount, 10),
		Instrument: r.Instrument,
		Direction:  r.Direction,
		Offset:     r.Offset,
		Price:      roundToTick(r.Price, s.PriceTick),
		Volume:     r.Volume,
		Status:     order.Submitting,
		Datetime:   p.datetime,
	}
	p.limitOrders[o.ID] = o
	p.activeLimitOrders[o.ID] = o
	return o.ID, nil
}

// SendStopOrder places a conditional order against any instrument the
// portfolio holds settings for
func (p *Portfolio) SendStopOrder(r *order.Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s, ok := p.settings[r.Instrument.String()]
	if !ok {
		return "", fmt.Errorf("%w: %v", errUnknownInstrument, r.Instrument)
	}
	p.stopOrderCount++
	so := &order.StopOrder{
		ID:         stopOrderPrefix + strconv.FormatInt(p.stopOrderCount, 10),
		Instrument: r.Instrument,
		Direction:  r.Direction,
		Offset:     r.Offset,
		Price:      roundToTick(r.Price, s.PriceTick),
		Volume:     r.Volume,
		Status:     order.Waiting,
		Datetime:   p.datetime,
	}
	if p.strategy != nil {
		so.StrategyName = p.strategy.Name()
	}
	p.stopOrders[so.ID] = so
	p.activeStopOrders[so.ID] = so
	if p.strategy != nil {
		p.strategy.OnStopOrder(so)
	}
	return so.ID, nil
}

// CancelOrder removes an order from the active set only
func (p *Portfolio) CancelOrder(id string) error {
	if strings.HasPrefix(id, stopOrderPrefix) {
		so, ok := p.activeStopOrders[id]
		if !ok {
			return fmt.Errorf("%w: %v", errUnknownOrder, id)
		}
		so.Status = order.StopCancelled
		delete(p.activeStopOrders, id)
		if p.strategy != nil {
			p.strategy.OnStopOrder(so)
		}
		return nil
	}
	o, ok := p.activeLimitOrders[id]
	if !ok {
		return fmt.Errorf("%w: %v", errUnknownOrder, id)
	}
	o.Status = order.Cancelled
	delete(p.activeLimitOrders, id)
	if p.strategy != nil {
		p.strategy.OnOrder(o)
	}
	return nil
}

// CancelAll cancels every active limit and stop order
func (p *Portfolio) CancelAll() error {
	for _, id := range sortedIDs(p.activeLimitOrders) {
		if err := p.CancelOrder(id); err != nil {
			return err
		}
	}
	for _, id := range sortedIDs(p.activeStopOrders) {
		if err := p.CancelOrder(id); err != nil {
			return err
		}
	}
	return nil
}

// Positions returns the signed position per symbol
func (p *Portfolio) Positions() map[string]float64 {
	resp := make(map[string]float64, len(p.positions))
	for symbol, pos := range p.positions {
		resp[symbol] = pos
	}
	return resp
}

// RealizedPnL returns the realised notional P&L per symbol, gross of costs
func (p *Portfolio) RealizedPnL() map[string]decimal.Decimal {
	resp := make(map[string]decimal.Decimal, len(p.realized))
	for symbol, pnl := range p.realized {
		resp[symbol] = pnl
	}
	return resp
}

// CalculateResult sums signed realised notional per trade, net of costs, day
// by day. Unlike the single-instrument engine this deliberately does not mark
// open inventory to market between days; the asymmetry is inherited behaviour
// kept intact rather than silently unified
func (p *Portfolio) CalculateResult() (*Result, error) {
	if !p.hasRun {
		return nil, errNotRun
	}
	daily := make([]*DailyResult, 0, len(p.dailyDates))
	endCapital := p.params.Capital
	for i := range p.dailyDates {
		dr := p.dailyResults[p.dailyDates[i].Format(common.SimpleDateFormat)]
		p.finalizeDaily(dr)
		endCapital = endCapital.Add(dr.NetPnL)
		daily = append(daily, dr)
	}
	return &Result{
		StartCapital: p.params.Capital,
		EndCapital:   endCapital,
		DailyResults: daily,
	}, nil
}

func (p *Portfolio) finalizeDaily(dr *DailyResult) {
	dr.TradeCount = len(dr.Trades)
	dr.Turnover = decimal.Zero
	dr.Commission = decimal.Zero
	dr.Slippage = decimal.Zero
	dr.TradingPnL = decimal.Zero
	for i := range dr.Trades {
		t := dr.Trades[i]
		s := p.settings[t.Instrument.String()]
		turnover := decimal.NewFromFloat(t.Price).
			Mul(decimal.NewFromFloat(t.Volume)).
			Mul(s.Size)
		dr.Turnover = dr.Turnover.Add(turnover)
		dr.Commission = dr.Commission.Add(turnover.Mul(s.Rate))
		dr.Slippage = dr.Slippage.Add(
			decimal.NewFromFloat(t.Volume).Mul(s.Size).Mul(s.Slippage))
		dr.TradingPnL = dr.TradingPnL.Add(p.tradeNotional(t))
	}
	dr.TotalPnL = dr.TradingPnL
	dr.NetPnL = dr.TotalPnL.Sub(dr.Commission).Sub(dr.Slippage)
}

// CalculateStatistics reduces the portfolio's daily series with the same
// statistics engine the single-instrument engine uses
func (p *Portfolio) CalculateStatistics(output bool) (*Statistics, error) {
	res, err := p.CalculateResult()
	if err != nil {
		return nil, err
	}
	stats := calculateStatistics(res, p.params.RiskFreeRate, p.params.AnnualDays)
	if output {
		stats.PrintResult()
	}
	return stats, nil
}

var _ strategy.Trader = (*Portfolio)(nil)
var _ strategy.Trader = (*Backtesting)(nil)

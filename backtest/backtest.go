// Package backtest contains the single instrument and portfolio backtesting
// engines. Both replay ordered market events against a strategy's resting
// orders with identical crossing rules, then reduce the resulting daily
// accounting into performance statistics
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
	"github.com/quantetra/stratsim/strategy"
)

const stopOrderPrefix = "STOP."

// SetParameters configures the run and must be called before data is set or
// the backtest is run. Configuration failures abort before any state mutation
func (b *Backtesting) SetParameters(p Parameters) error {
	if p.Instrument.IsEmpty() {
		return market.ErrSymbolStringEmpty
	}
	if err := common.StartEndTimeCheck(p.Start, p.End); err != nil {
		return err
	}
	if p.Mode == "" {
		p.Mode = BarMode
	}
	if p.Mode != BarMode && p.Mode != TickMode {
		return fmt.Errorf("%w '%v'", errInvalidMode, p.Mode)
	}
	if !p.Size.IsPositive() {
		return errInvalidSize
	}
	if p.Rate.IsNegative() || p.Slippage.IsNegative() || p.Capital.IsNegative() {
		return errNegativeCosts
	}
	if p.AnnualDays <= 0 {
		p.AnnualDays = DefaultAnnualDays
	}
	b.params = p
	b.paramsSet = true
	return nil
}

// SetHistoryData injects the bar feed for a bar mode run. Feed quality is the
// loader's responsibility; no gap or duplicate checking happens here
func (b *Backtesting) SetHistoryData(bars []market.Bar) error {
	if !b.paramsSet {
		return errParametersUnset
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w for %v", common.ErrNoData, b.params.Instrument)
	}
	b.bars = bars
	return nil
}

// SetTickData injects the tick feed for a tick mode run
func (b *Backtesting) SetTickData(ticks []market.Tick) error {
	if !b.paramsSet {
		return errParametersUnset
	}
	if len(ticks) == 0 {
		return fmt.Errorf("%w for %v", common.ErrNoData, b.params.Instrument)
	}
	b.ticks = ticks
	return nil
}

// AddStrategy attaches exactly one strategy instance to the engine
func (b *Backtesting) AddStrategy(s strategy.Template) error {
	if s == nil {
		return common.ErrNilArguments
	}
	if b.strategy != nil {
		return fmt.Errorf("%w '%v'", errStrategySet, b.strategy.Name())
	}
	b.strategy = s
	return nil
}

// Run replays the configured event feed. The loop is deterministic and
// single threaded; the context is checked between events so a host
// application can abandon a long replay
func (b *Backtesting) Run(ctx context.Context) error {
	if !b.paramsSet {
		return errParametersUnset
	}
	if b.strategy == nil {
		return errNoStrategy
	}
	if b.hasRun {
		return errAlreadyRan
	}
	switch b.params.Mode {
	case BarMode:
		if len(b.bars) == 0 {
			return fmt.Errorf("%w for %v", errNoData, b.params.Instrument)
		}
	case TickMode:
		if len(b.ticks) == 0 {
			return fmt.Errorf("%w for %v", errNoData, b.params.Instrument)
		}
	}
	b.hasRun = true

	log.Infof(log.Backtest, "running %v backtest for %v from %v to %v",
		b.strategy.Name(),
		b.params.Instrument,
		b.params.Start.Format(common.SimpleTimeFormat),
		b.params.End.Format(common.SimpleTimeFormat))

	if err := b.strategy.OnInit(b); err != nil {
		return fmt.Errorf("strategy %v OnInit: %w", b.strategy.Name(), err)
	}
	if err := b.strategy.OnStart(); err != nil {
		return fmt.Errorf("strategy %v OnStart: %w", b.strategy.Name(), err)
	}

	switch b.params.Mode {
	case BarMode:
		for i := range b.bars {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			b.processBar(&b.bars[i])
		}
	case TickMode:
		for i := range b.ticks {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			b.processTick(&b.ticks[i])
		}
	}

	if err := b.strategy.OnStop(); err != nil {
		return fmt.Errorf("strategy %v OnStop: %w", b.strategy.Name(), err)
	}

	log.Infof(log.Backtest, "backtest complete, %v trades over %v days",
		len(b.trades), len(b.dailyDates))
	return nil
}

// ClearData resets all run state so the engine can be reused with the same
// parameters and strategy. It is the documented path between repeated runs
func (b *Backtesting) ClearData() {
	b.reset()
}

// processBar applies one bar in the mandated order: roll the daily boundary,
// cross resting limit orders, check stop orders, then deliver the bar. A stop
// triggered here emits a limit order that joins the book for the next event
// only; the same bar never re-crosses it
func (b *Backtesting) processBar(bar *market.Bar) {
	b.bar = bar
	b.datetime = bar.Datetime
	b.rollDailyResult(bar.Close)
	b.crossLimitOrders()
	b.crossStopOrders()
	b.strategy.OnBar(bar)
}

func (b *Backtesting) processTick(tk *market.Tick) {
	b.tick = tk
	b.datetime = tk.Datetime
	b.rollDailyResult(tk.LastPrice)
	b.crossLimitOrders()
	b.crossStopOrders()
	b.strategy.OnTick(tk)
}

// rollDailyResult opens a new daily result when the calendar date changes and
// keeps the current day's close price up to date. Finalisation of each day's
// P&L happens in CalculateResult once the chain of closes is known
func (b *Backtesting) rollDailyResult(closePrice float64) {
	key := b.datetime.Format(common.SimpleDateFormat)
	if dr, ok := b.dailyResults[key]; ok {
		dr.ClosePrice = closePrice
		return
	}
	y, m, d := b.datetime.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, b.datetime.Location())
	b.dailyResults[key] = newDailyResult(date, closePrice)
	b.dailyDates = append(b.dailyDates, date)
}

func (b *Backtesting) currentDailyResult() *DailyResult {
	return b.dailyResults[b.datetime.Format(common.SimpleDateFormat)]
}

func (b *Backtesting) crossLimitOrders() {
	for _, id := range sortedIDs(b.activeLimitOrders) {
		o := b.activeLimitOrders[id]
		if o.Status == order.Submitting {
			o.Status = order.NotTraded
			b.strategy.OnOrder(o)
		}

		var crossed bool
		var fillPrice float64
		switch b.params.Mode {
		case BarMode:
			crossed = limitCrossesBar(o, b.bar)
			fillPrice = limitBarFillPrice(o, b.bar)
		case TickMode:
			crossed = limitCrossesTick(o, b.tick)
			fillPrice = limitTickFillPrice(o, b.tick)
		}
		if !crossed {
			continue
		}

		volume := o.RemainingVolume()
		o.Traded = o.Volume
		o.Status = order.AllTraded
		delete(b.activeLimitOrders, id)
		b.strategy.OnOrder(o)

		b.tradeCount++
		trade := &order.Trade{
			ID:         strconv.FormatInt(b.tradeCount, 10),
			OrderID:    o.ID,
			Instrument: o.Instrument,
			Direction:  o.Direction,
			Offset:     o.Offset,
			Price:      fillPrice,
			Volume:     volume,
			Datetime:   b.datetime,
		}
		b.pos += order.PositionChange(trade.Direction, trade.Offset, trade.Volume)
		b.trades = append(b.trades, trade)
		if dr := b.currentDailyResult(); dr != nil {
			dr.addTrade(trade)
		}
		b.strategy.OnTrade(trade)
	}
}

func (b *Backtesting) crossStopOrders() {
	for _, id := range sortedIDs(b.activeStopOrders) {
		so := b.activeStopOrders[id]

		var triggered bool
		switch b.params.Mode {
		case BarMode:
			triggered = stopTriggersBar(so, b.bar)
		case TickMode:
			triggered = stopTriggersTick(so, b.tick)
		}
		if !triggered {
			continue
		}

		b.limitOrderCount++
		lo := &order.LimitOrder{
			ID:         strconv.FormatInt(b.limitOrderCount, 10),
			Instrument: so.Instrument,
			Direction:  so.Direction,
			Offset:     so.Offset,
			Price:      so.Price,
			Volume:     so.Volume,
			Status:     order.NotTraded,
			Datetime:   b.datetime,
		}
		b.limitOrders[lo.ID] = lo
		b.activeLimitOrders[lo.ID] = lo

		so.Status = order.Triggered
		so.OrderIDs = append(so.OrderIDs, lo.ID)
		delete(b.activeStopOrders, id)

		b.strategy.OnStopOrder(so)
		b.strategy.OnOrder(lo)
	}
}

// SendLimitOrder allocates an engine scoped id and inserts the order into
// both the full and active books. Prices snap to the instrument's price tick
func (b *Backtesting) SendLimitOrder(r *order.Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if !r.Instrument.Equal(b.params.Instrument) {
		return "", fmt.Errorf("%w: received %v, engine runs %v",
			errWrongInstrument, r.Instrument, b.params.Instrument)
	}
	b.limitOrderCount++
	o := &order.LimitOrder{
		ID:         strconv.FormatInt(b.limitOrderCount, 10),
		Instrument: r.Instrument,
		Direction:  r.Direction,
		Offset:     r.Offset,
		Price:      roundToTick(r.Price, b.params.PriceTick),
		Volume:     r.Volume,
		Status:     order.Submitting,
		Datetime:   b.datetime,
	}
	b.limitOrders[o.ID] = o
	b.activeLimitOrders[o.ID] = o
	return o.ID, nil
}

// SendStopOrder registers a conditional order which converts into a limit
// order when its trigger price is touched
func (b *Backtesting) SendStopOrder(r *order.Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if !r.Instrument.Equal(b.params.Instrument) {
		return "", fmt.Errorf("%w: received %v, engine runs %v",
			errWrongInstrument, r.Instrument, b.params.Instrument)
	}
	b.stopOrderCount++
	so := &order.StopOrder{
		ID:         stopOrderPrefix + strconv.FormatInt(b.stopOrderCount, 10),
		Instrument: r.Instrument,
		Direction:  r.Direction,
		Offset:     r.Offset,
		Price:      roundToTick(r.Price, b.params.PriceTick),
		Volume:     r.Volume,
		Status:     order.Waiting,
		Datetime:   b.datetime,
	}
	if b.strategy != nil {
		so.StrategyName = b.strategy.Name()
	}
	b.stopOrders[so.ID] = so
	b.activeStopOrders[so.ID] = so
	b.notifyStopOrder(so)
	return so.ID, nil
}

// CancelOrder removes an order from the active set only; the historical
// record is retained
func (b *Backtesting) CancelOrder(id string) error {
	if strings.HasPrefix(id, stopOrderPrefix) {
		so, ok := b.activeStopOrders[id]
		if !ok {
			return fmt.Errorf("%w: %v", errUnknownOrder, id)
		}
		so.Status = order.StopCancelled
		delete(b.activeStopOrders, id)
		b.notifyStopOrder(so)
		return nil
	}
	o, ok := b.activeLimitOrders[id]
	if !ok {
		return fmt.Errorf("%w: %v", errUnknownOrder, id)
	}
	o.Status = order.Cancelled
	delete(b.activeLimitOrders, id)
	b.notifyOrder(o)
	return nil
}

func (b *Backtesting) notifyOrder(o *order.LimitOrder) {
	if b.strategy != nil {
		b.strategy.OnOrder(o)
	}
}

func (b *Backtesting) notifyStopOrder(so *order.StopOrder) {
	if b.strategy != nil {
		b.strategy.OnStopOrder(so)
	}
}

// CancelAll cancels every active limit and stop order
func (b *Backtesting) CancelAll() error {
	for _, id := range sortedIDs(b.activeLimitOrders) {
		if err := b.CancelOrder(id); err != nil {
			return err
		}
	}
	for _, id := range sortedIDs(b.activeStopOrders) {
		if err := b.CancelOrder(id); err != nil {
			return err
		}
	}
	return nil
}

// Trades returns every fill the run produced, in fill order
func (b *Backtesting) Trades() []*order.Trade {
	return b.trades
}

// Position returns the current signed position
func (b *Backtesting) Position() float64 {
	return b.pos
}

// CalculateResult finalises each day in date order, chaining the previous
// close and carried position through the series, and returns the run's
// accounting outcome
func (b *Backtesting) CalculateResult() (*Result, error) {
	if !b.hasRun {
		return nil, errNotRun
	}

	daily := make([]*DailyResult, 0, len(b.dailyDates))
	var preClose, startPos float64
	endCapital := b.params.Capital
	for i := range b.dailyDates {
		dr := b.dailyResults[b.dailyDates[i].Format(common.SimpleDateFormat)]
		dr.calculatePnL(preClose, startPos, b.params.Size, b.params.Rate, b.params.Slippage)
		preClose = dr.ClosePrice
		startPos = dr.EndPos
		endCapital = endCapital.Add(dr.NetPnL)
		daily = append(daily, dr)
	}

	return &Result{
		StartCapital: b.params.Capital,
		EndCapital:   endCapital,
		DailyResults: daily,
	}, nil
}

// CalculateStatistics reduces the daily result series into performance
// statistics. When output is set the report is logged
func (b *Backtesting) CalculateStatistics(output bool) (*Statistics, error) {
	res, err := b.CalculateResult()
	if err != nil {
		return nil, err
	}
	stats := calculateStatistics(res, b.params.RiskFreeRate, b.params.AnnualDays)
	if output {
		stats.PrintResult()
	}
	return stats, nil
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// sortedIDs returns map keys ordered by their numeric allocation sequence so
// map iteration never disturbs replay determinism
func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return idSequence(ids[i]) < idSequence(ids[j])
	})
	return ids
}

func idSequence(id string) int64 {
	seq, err := strconv.ParseInt(strings.TrimPrefix(id, stopOrderPrefix), 10, 64)
	if err != nil {
		return -1
	}
	return seq
}

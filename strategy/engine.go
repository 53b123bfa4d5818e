package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantetra/stratsim/common"
	"github.com/quantetra/stratsim/log"
	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
)

const stopOrderPrefix = "STOP."

// NewEngine returns a routing engine submitting through the supplied gateway
func NewEngine(g Gateway) (*Engine, error) {
	if g == nil {
		return nil, ErrNilGateway
	}
	return &Engine{
		gateway:          g,
		strategies:       make(map[string]*managedStrategy),
		symbolStrategies: make(map[string][]string),
		orderStrategy:    make(map[string]string),
		stopOrders:       make(map[string]*order.StopOrder),
		waitingStops:     make(map[string]map[string]*order.StopOrder),
		seenTrades:       make(map[string]struct{}),
		lastTicks:        make(map[string]*market.Tick),
	}, nil
}

// AddStrategy registers a strategy against the instrument it subscribes to.
// Many strategies may subscribe to the same instrument
func (e *Engine) AddStrategy(t Template, i market.Instrument) error {
	if t == nil {
		return common.ErrNilArguments
	}
	if i.IsEmpty() {
		return market.ErrSymbolStringEmpty
	}
	e.m.Lock()
	defer e.m.Unlock()
	name := t.Name()
	if _, ok := e.strategies[name]; ok {
		return fmt.Errorf("%w: %v", ErrStrategyAlreadyAdded, name)
	}
	e.strategies[name] = &managedStrategy{
		template:     t,
		instrument:   i,
		state:        NotInited,
		activeOrders: make(map[string]struct{}),
	}
	symbol := i.String()
	e.symbolStrategies[symbol] = append(e.symbolStrategies[symbol], name)
	return nil
}

// InitStrategy moves a strategy from NotInited to Inited, handing it its
// trading surface
func (e *Engine) InitStrategy(name string) error {
	e.m.Lock()
	s, ok := e.strategies[name]
	if !ok {
		e.m.Unlock()
		return fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	if s.state != NotInited {
		e.m.Unlock()
		return fmt.Errorf("%w: cannot init from %v", ErrInvalidStateTransition, s.state)
	}
	s.state = Inited
	e.m.Unlock()

	if err := s.template.OnInit(&strategyTrader{engine: e, name: name}); err != nil {
		return fmt.Errorf("strategy %v OnInit: %w", name, err)
	}
	log.Infof(log.Strategy, "strategy %v inited", name)
	return nil
}

// StartStrategy moves a strategy from Inited to Trading; any other state is
// rejected
func (e *Engine) StartStrategy(name string) error {
	e.m.Lock()
	s, ok := e.strategies[name]
	if !ok {
		e.m.Unlock()
		return fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	if s.state != Inited {
		e.m.Unlock()
		return fmt.Errorf("%w: cannot start from %v", ErrInvalidStateTransition, s.state)
	}
	s.state = Trading
	e.m.Unlock()

	if err := s.template.OnStart(); err != nil {
		return fmt.Errorf("strategy %v OnStart: %w", name, err)
	}
	log.Infof(log.Strategy, "strategy %v trading", name)
	return nil
}

// StopStrategy cancels every order the strategy has outstanding, then moves
// it from Trading to Stopped
func (e *Engine) StopStrategy(name string) error {
	e.m.Lock()
	s, ok := e.strategies[name]
	if !ok {
		e.m.Unlock()
		return fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	if s.state != Trading {
		e.m.Unlock()
		return fmt.Errorf("%w: cannot stop from %v", ErrInvalidStateTransition, s.state)
	}
	activeIDs := make([]string, 0, len(s.activeOrders))
	for id := range s.activeOrders {
		activeIDs = append(activeIDs, id)
	}
	sort.Strings(activeIDs)
	var stops []*order.StopOrder
	for id, so := range e.stopOrders {
		if so.StrategyName == name && so.Status == order.Waiting {
			so.Status = order.StopCancelled
			delete(e.waitingStops[so.Instrument.String()], id)
			stops = append(stops, so)
		}
	}
	s.state = Stopped
	e.m.Unlock()

	for i := range activeIDs {
		if err := e.gateway.CancelOrder(activeIDs[i]); err != nil {
			log.Warnf(log.Strategy, "strategy %v stop: cancel %v: %v", name, activeIDs[i], err)
		}
	}
	for i := range stops {
		s.template.OnStopOrder(stops[i])
	}
	if err := s.template.OnStop(); err != nil {
		return fmt.Errorf("strategy %v OnStop: %w", name, err)
	}
	log.Infof(log.Strategy, "strategy %v stopped", name)
	return nil
}

// StrategyState reports a strategy's lifecycle state
func (e *Engine) StrategyState(name string) (State, error) {
	e.m.RLock()
	defer e.m.RUnlock()
	s, ok := e.strategies[name]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	return s.state, nil
}

// Position reports a strategy's signed position derived from routed fills
func (e *Engine) Position(name string) (float64, error) {
	e.m.RLock()
	defer e.m.RUnlock()
	s, ok := e.strategies[name]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	return s.pos, nil
}

// LastTick returns the most recent tick seen for an instrument, or nil if
// none has arrived yet
func (e *Engine) LastTick(i market.Instrument) *market.Tick {
	e.m.RLock()
	defer e.m.RUnlock()
	return e.lastTicks[i.String()]
}

// ProcessTick updates the per-symbol market context, delivers the tick to
// each trading strategy subscribed to its instrument, then independently
// checks that symbol's waiting stop orders for a trigger. For a given
// instrument events apply in arrival order per strategy; cross-strategy
// ordering is not guaranteed
func (e *Engine) ProcessTick(tk *market.Tick) {
	if tk == nil {
		return
	}
	symbol := tk.Instrument.String()

	e.m.Lock()
	e.lastTicks[symbol] = tk
	e.m.Unlock()

	e.m.RLock()
	var templates []Template
	for _, name := range e.symbolStrategies[symbol] {
		if s, ok := e.strategies[name]; ok && s.state == Trading {
			templates = append(templates, s.template)
		}
	}
	e.m.RUnlock()
	for i := range templates {
		templates[i].OnTick(tk)
	}

	e.checkStopOrders(tk)
}

// checkStopOrders triggers waiting stop orders whose price the last traded
// price touched. The triggered limit order is submitted through the same
// path as a direct strategy submission
func (e *Engine) checkStopOrders(tk *market.Tick) {
	symbol := tk.Instrument.String()

	e.m.Lock()
	var triggered []*order.StopOrder
	waiting := e.waitingStops[symbol]
	ids := make([]string, 0, len(waiting))
	for id := range waiting {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		so := waiting[id]
		crossed := (so.Direction == order.Long && tk.LastPrice >= so.Price) ||
			(so.Direction == order.Short && tk.LastPrice <= so.Price)
		if !crossed {
			continue
		}
		so.Status = order.Triggered
		delete(waiting, id)
		triggered = append(triggered, so)
	}
	e.m.Unlock()

	for i := range triggered {
		so := triggered[i]
		id, err := e.submitForStrategy(so.StrategyName, &order.Request{
			Instrument: so.Instrument,
			Direction:  so.Direction,
			Offset:     so.Offset,
			Price:      so.Price,
			Volume:     so.Volume,
		})
		switch {
		case errors.Is(err, ErrStrategyNotTrading):
			// the strategy stopped between trigger and submission, so the
			// trigger converts to a cancel instead of placing a live order
			e.m.Lock()
			so.Status = order.StopCancelled
			e.m.Unlock()
			log.Warnf(log.Strategy, "stop order %v trigger dropped: %v", so.ID, err)
		case err != nil:
			log.Errorf(log.Strategy, "stop order %v trigger: %v", so.ID, err)
		default:
			so.OrderIDs = append(so.OrderIDs, id)
		}
		e.m.RLock()
		s, ok := e.strategies[so.StrategyName]
		e.m.RUnlock()
		if ok {
			s.template.OnStopOrder(so)
		}
	}
}

// ProcessTrade forwards a fill to the strategy owning its order. Live
// gateways may redeliver the same fill, so trade ids are deduplicated by a
// process-wide seen set before any strategy is notified. A trade only counts
// as seen once it has been routed; a fill arriving before its order's
// ownership is registered stays eligible for redelivery
func (e *Engine) ProcessTrade(t *order.Trade) {
	if t == nil {
		return
	}
	e.m.Lock()
	if _, seen := e.seenTrades[t.ID]; seen {
		e.m.Unlock()
		return
	}
	name, ok := e.orderStrategy[t.OrderID]
	if !ok {
		e.m.Unlock()
		log.Warnf(log.Strategy, "trade %v references unknown order %v", t.ID, t.OrderID)
		return
	}
	e.seenTrades[t.ID] = struct{}{}
	s := e.strategies[name]
	s.pos += order.PositionChange(t.Direction, t.Offset, t.Volume)
	template := s.template
	e.m.Unlock()

	template.OnTrade(t)
}

// ProcessOrder forwards an order status update to the owning strategy and
// retires terminal orders from its active set
func (e *Engine) ProcessOrder(o *order.LimitOrder) {
	if o == nil {
		return
	}
	e.m.Lock()
	name, ok := e.orderStrategy[o.ID]
	if !ok {
		e.m.Unlock()
		log.Warnf(log.Strategy, "order update %v has no owning strategy", o.ID)
		return
	}
	s := e.strategies[name]
	if !o.Status.IsActive() {
		delete(s.activeOrders, o.ID)
	}
	template := s.template
	e.m.Unlock()

	template.OnOrder(o)
}

// submitForStrategy routes an order through the gateway and records its
// ownership so fills and status updates find their way back. Only a Trading
// strategy may submit; a strategy stopped while the order was in flight has
// ownership recorded so a racing fill still routes, but the order is cancelled
// rather than joining the active set the stop sweep has already drained
func (e *Engine) submitForStrategy(name string, r *order.Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	e.m.RLock()
	s, ok := e.strategies[name]
	if !ok {
		e.m.RUnlock()
		return "", fmt.Errorf("%w: %v", ErrStrategyNotFound, name)
	}
	if s.state != Trading {
		e.m.RUnlock()
		return "", fmt.Errorf("%w: %v in state %v", ErrStrategyNotTrading, name, s.state)
	}
	e.m.RUnlock()

	id, err := e.gateway.SendLimitOrder(r)
	if err != nil {
		return "", err
	}
	e.m.Lock()
	e.orderStrategy[id] = name
	stopped := s.state != Trading
	if !stopped {
		s.activeOrders[id] = struct{}{}
	}
	e.m.Unlock()
	if stopped {
		if err := e.gateway.CancelOrder(id); err != nil {
			log.Warnf(log.Strategy, "strategy %v stopped in flight: cancel %v: %v", name, id, err)
		}
	}
	return id, nil
}

// strategyTrader is the per-strategy trading surface handed out at OnInit
type strategyTrader struct {
	engine *Engine
	name   string
}

func (t *strategyTrader) requireTrading() (*managedStrategy, error) {
	t.engine.m.RLock()
	defer t.engine.m.RUnlock()
	s, ok := t.engine.strategies[t.name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStrategyNotFound, t.name)
	}
	if s.state != Trading {
		return nil, fmt.Errorf("%w: %v in state %v", ErrStrategyNotTrading, t.name, s.state)
	}
	return s, nil
}

// SendLimitOrder forwards the request to the gateway and maps the returned
// id back to the owning strategy
func (t *strategyTrader) SendLimitOrder(r *order.Request) (string, error) {
	if _, err := t.requireTrading(); err != nil {
		return "", err
	}
	return t.engine.submitForStrategy(t.name, r)
}

// SendStopOrder registers a conditional order owned by the engine itself; it
// only reaches the gateway once triggered
func (t *strategyTrader) SendStopOrder(r *order.Request) (string, error) {
	s, err := t.requireTrading()
	if err != nil {
		return "", err
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	e := t.engine
	e.m.Lock()
	e.stopOrderCount++
	so := &order.StopOrder{
		ID:           stopOrderPrefix + strconv.FormatInt(e.stopOrderCount, 10),
		Instrument:   r.Instrument,
		Direction:    r.Direction,
		Offset:       r.Offset,
		Price:        r.Price,
		Volume:       r.Volume,
		Status:       order.Waiting,
		StrategyName: t.name,
		Datetime:     time.Now(),
	}
	symbol := r.Instrument.String()
	if e.waitingStops[symbol] == nil {
		e.waitingStops[symbol] = make(map[string]*order.StopOrder)
	}
	e.stopOrders[so.ID] = so
	e.waitingStops[symbol][so.ID] = so
	e.m.Unlock()

	s.template.OnStopOrder(so)
	return so.ID, nil
}

// CancelOrder removes an order from the active set only. A fill that raced
// ahead of the cancel is authoritative once both sides have applied
func (t *strategyTrader) CancelOrder(id string) error {
	e := t.engine
	if strings.HasPrefix(id, stopOrderPrefix) {
		e.m.Lock()
		so, ok := e.stopOrders[id]
		if !ok || so.Status != order.Waiting {
			e.m.Unlock()
			return fmt.Errorf("%w: %v", ErrUnknownOrder, id)
		}
		so.Status = order.StopCancelled
		delete(e.waitingStops[so.Instrument.String()], id)
		s := e.strategies[so.StrategyName]
		e.m.Unlock()
		if s != nil {
			s.template.OnStopOrder(so)
		}
		return nil
	}
	return e.gateway.CancelOrder(id)
}

// CancelAll cancels every active order and waiting stop order this strategy
// has outstanding
func (t *strategyTrader) CancelAll() error {
	e := t.engine
	e.m.RLock()
	s, ok := e.strategies[t.name]
	if !ok {
		e.m.RUnlock()
		return fmt.Errorf("%w: %v", ErrStrategyNotFound, t.name)
	}
	ids := make([]string, 0, len(s.activeOrders))
	for id := range s.activeOrders {
		ids = append(ids, id)
	}
	var stopIDs []string
	for id, so := range e.stopOrders {
		if so.StrategyName == t.name && so.Status == order.Waiting {
			stopIDs = append(stopIDs, id)
		}
	}
	e.m.RUnlock()

	sort.Strings(ids)
	sort.Strings(stopIDs)
	for i := range ids {
		if err := e.gateway.CancelOrder(ids[i]); err != nil {
			return err
		}
	}
	for i := range stopIDs {
		if err := t.CancelOrder(stopIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

package strategy

import (
	"errors"
	"sync"

	"github.com/quantetra/stratsim/market"
	"github.com/quantetra/stratsim/order"
)

// State is a strategy's lifecycle position within the engine
type State string

// Strategy lifecycle states. Transitions only happen through explicit
// Init/Start/Stop calls
const (
	NotInited State = "NOT INITED"
	Inited    State = "INITED"
	Trading   State = "TRADING"
	Stopped   State = "STOPPED"
)

var (
	// ErrStrategyNotFound is returned when a strategy name is not registered
	ErrStrategyNotFound = errors.New("strategy not found")
	// ErrStrategyAlreadyAdded is returned on duplicate registration
	ErrStrategyAlreadyAdded = errors.New("strategy already added")
	// ErrInvalidStateTransition is returned when init/start/stop arrive out
	// of order
	ErrInvalidStateTransition = errors.New("invalid strategy state transition")
	// ErrStrategyNotTrading rejects order submission outside the Trading state
	ErrStrategyNotTrading = errors.New("strategy is not trading")
	// ErrNilGateway is returned when the engine is built without an order route
	ErrNilGateway = errors.New("gateway is nil")
	// ErrUnknownOrder is returned when a cancel names an id the engine does
	// not hold
	ErrUnknownOrder = errors.New("unknown order id")
)

// Gateway is the outbound order route the live engine submits through. In
// production this is an exchange gateway client; in tests a recorder
type Gateway interface {
	SendLimitOrder(r *order.Request) (string, error)
	CancelOrder(id string) error
}

type managedStrategy struct {
	template     Template
	instrument   market.Instrument
	state        State
	pos          float64
	activeOrders map[string]struct{}
}

// Engine routes market data to many concurrently registered strategies, owns
// their stop orders, deduplicates redelivered trade events and converts
// trading intents into gateway calls. Lookups on the dispatch path take the
// read lock; insert, remove and trigger take the write lock
type Engine struct {
	gateway Gateway

	m                sync.RWMutex
	strategies       map[string]*managedStrategy
	symbolStrategies map[string][]string
	orderStrategy    map[string]string
	stopOrders       map[string]*order.StopOrder
	waitingStops     map[string]map[string]*order.StopOrder
	seenTrades       map[string]struct{}
	lastTicks        map[string]*market.Tick

	stopOrderCount int64
}

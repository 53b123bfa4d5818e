package order

import (
	"errors"
	"time"

	"github.com/quantetra/stratsim/market"
)

// Direction of an order or trade relative to the position it acts on
type Direction string

// Directions
const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Net   Direction = "NET"
)

// Offset is whether an order opens a new position or closes an existing one.
// CloseToday and CloseYesterday distinguish same-day and carried-over
// inventory on exchanges that track it separately
type Offset string

// Offsets
const (
	Open           Offset = "OPEN"
	Close          Offset = "CLOSE"
	CloseToday     Offset = "CLOSETODAY"
	CloseYesterday Offset = "CLOSEYESTERDAY"
)

// Status defines order status types
type Status string

// All order statuses
const (
	Submitting Status = "SUBMITTING"
	NotTraded  Status = "NOTTRADED"
	PartTraded Status = "PARTTRADED"
	AllTraded  Status = "ALLTRADED"
	Cancelled  Status = "CANCELLED"
	Rejected   Status = "REJECTED"
)

// StopStatus defines stop order status types
type StopStatus string

// All stop order statuses. Triggered and StopCancelled are terminal
const (
	Waiting       StopStatus = "WAITING"
	Triggered     StopStatus = "TRIGGERED"
	StopCancelled StopStatus = "CANCELLED"
)

var (
	// ErrSubmissionIsNil is returned when an order request is nil
	ErrSubmissionIsNil = errors.New("order submission is nil")
	// ErrInstrumentIsEmpty is returned when the request addresses no instrument
	ErrInstrumentIsEmpty = errors.New("order instrument is empty")
	// ErrDirectionIsInvalid occurs when the direction is not long or short
	ErrDirectionIsInvalid = errors.New("order direction is invalid")
	// ErrOffsetIsInvalid occurs when the offset is not a known offset
	ErrOffsetIsInvalid = errors.New("order offset is invalid")
	// ErrAmountIsInvalid is returned when the order volume is zero or negative
	ErrAmountIsInvalid = errors.New("order volume is invalid")
	// ErrPriceMustBeSet is returned when a limit or trigger price is unset
	ErrPriceMustBeSet = errors.New("order price must be set")
)

// LimitOrder is a resting order awaiting a crossing price
type LimitOrder struct {
	ID         string
	Instrument market.Instrument
	Direction  Direction
	Offset     Offset
	Price      float64
	Volume     float64
	Traded     float64
	Status     Status
	Datetime   time.Time
}

// StopOrder is a conditional order that becomes a limit order once its
// trigger price is touched
type StopOrder struct {
	ID           string
	Instrument   market.Instrument
	Direction    Direction
	Offset       Offset
	Price        float64
	Volume       float64
	Status       StopStatus
	StrategyName string
	Datetime     time.Time
	// OrderIDs holds the limit orders emitted when the stop triggered
	OrderIDs []string
}

// Trade is one fill event. Created exactly once per fill, never mutated
type Trade struct {
	ID         string
	OrderID    string
	Instrument market.Instrument
	Direction  Direction
	Offset     Offset
	Price      float64
	Volume     float64
	Datetime   time.Time
}

// Request holds the fields a strategy submits to open a resting or
// conditional order. Price is the limit price for limit orders and the
// trigger price for stop orders
type Request struct {
	Instrument market.Instrument
	Direction  Direction
	Offset     Offset
	Price      float64
	Volume     float64
}

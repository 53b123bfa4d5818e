// Package order holds the shared order, stop order and trade definitions the
// backtesting engines and the live strategy engine both route through
package order

import "strings"

// String implements the stringer interface
func (d Direction) String() string {
	return string(d)
}

// Lower returns the direction lower case string
func (d Direction) Lower() string {
	return strings.ToLower(string(d))
}

// String implements the stringer interface
func (o Offset) String() string {
	return string(o)
}

// IsClose groups the three closing offsets
func (o Offset) IsClose() bool {
	return o == Close || o == CloseToday || o == CloseYesterday
}

// String implements the stringer interface
func (s Status) String() string {
	return string(s)
}

// IsActive returns whether an order with this status still rests in the
// active book
func (s Status) IsActive() bool {
	switch s {
	case Submitting, NotTraded, PartTraded:
		return true
	default:
		return false
	}
}

// String implements the stringer interface
func (s StopStatus) String() string {
	return string(s)
}

// Validate checks the supplied request and returns whether or not it's valid
func (r *Request) Validate() error {
	if r == nil {
		return ErrSubmissionIsNil
	}
	if r.Instrument.IsEmpty() {
		return ErrInstrumentIsEmpty
	}
	if r.Direction != Long && r.Direction != Short {
		return ErrDirectionIsInvalid
	}
	switch r.Offset {
	case Open, Close, CloseToday, CloseYesterday:
	default:
		return ErrOffsetIsInvalid
	}
	if r.Volume <= 0 {
		return ErrAmountIsInvalid
	}
	if r.Price <= 0 {
		return ErrPriceMustBeSet
	}
	return nil
}

// PositionChange maps a fill to its signed position delta. Long open and
// short close add to the signed position, short open and long close subtract
func PositionChange(d Direction, o Offset, volume float64) float64 {
	switch {
	case d == Long && o == Open,
		d == Short && o.IsClose():
		return volume
	case d == Short && o == Open,
		d == Long && o.IsClose():
		return -volume
	default:
		return 0
	}
}

// RemainingVolume is the volume of the order still resting
func (l *LimitOrder) RemainingVolume() float64 {
	return l.Volume - l.Traded
}

package market

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter splits the tradable symbol from its venue in a composite
// identifier such as rb2110.SHFE
const Delimiter = "."

var (
	// ErrSymbolStringEmpty is an error when a symbol string is empty
	ErrSymbolStringEmpty = errors.New("symbol string is empty")
	// ErrInvalidInstrument is returned on a malformed symbol.EXCHANGE identifier
	ErrInvalidInstrument = errors.New("invalid instrument identifier")
)

// Instrument addresses one tradable instrument uniquely across venues
type Instrument struct {
	Symbol   string
	Exchange string
}

// NewInstrument returns an instrument from its parts
func NewInstrument(symbol, exchange string) Instrument {
	return Instrument{Symbol: symbol, Exchange: strings.ToUpper(exchange)}
}

// ParseInstrument converts a composite symbol.EXCHANGE string into an
// Instrument
func ParseInstrument(id string) (Instrument, error) {
	if id == "" {
		return Instrument{}, ErrSymbolStringEmpty
	}
	idx := strings.LastIndex(id, Delimiter)
	if idx <= 0 || idx == len(id)-1 {
		return Instrument{}, fmt.Errorf("%w %q, expected format symbol%sEXCHANGE", ErrInvalidInstrument, id, Delimiter)
	}
	return NewInstrument(id[:idx], id[idx+1:]), nil
}

// String returns the composite identifier
func (i Instrument) String() string {
	return i.Symbol + Delimiter + i.Exchange
}

// IsEmpty returns whether the instrument holds no identity
func (i Instrument) IsEmpty() bool {
	return i.Symbol == "" && i.Exchange == ""
}

// Equal compares two instruments
func (i Instrument) Equal(other Instrument) bool {
	return strings.EqualFold(i.Symbol, other.Symbol) &&
		strings.EqualFold(i.Exchange, other.Exchange)
}

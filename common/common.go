package common

import (
	"errors"
	"fmt"
	"time"
)

const (
	// SimpleTimeFormat a common, but non-implemented time format in golang
	SimpleTimeFormat = "2006-01-02 15:04:05"
	// SimpleDateFormat is the layout daily accounting keys on
	SimpleDateFormat = "2006-01-02"
)

var (
	// ErrNilPointer defines an error for a nil pointer
	ErrNilPointer = errors.New("nil pointer")
	// ErrNilArguments is a common error response to highlight that nils were
	// passed in when they should not have been
	ErrNilArguments = errors.New("received nil argument(s)")
	// ErrDateUnset is an error for start end check calculations
	ErrDateUnset = errors.New("date unset")
	// ErrStartAfterEnd is an error for start end check calculations
	ErrStartAfterEnd = errors.New("start date after end date")
	// ErrStartEqualsEnd is an error for start end check calculations
	ErrStartEqualsEnd = errors.New("start date equals end date")
	// ErrNoData is returned when a requested data segment holds nothing
	ErrNoData = errors.New("no data found")
)

// StartEndTimeCheck provides some basic checks which occur across the codebase
func StartEndTimeCheck(start, end time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("start %w", ErrDateUnset)
	}
	if end.IsZero() {
		return fmt.Errorf("end %w", ErrDateUnset)
	}
	if start.After(end) {
		return ErrStartAfterEnd
	}
	if start.Equal(end) {
		return ErrStartEqualsEnd
	}
	return nil
}

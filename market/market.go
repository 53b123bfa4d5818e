package market

import (
	"fmt"
	"time"
)

// Duration returns the interval as a time.Duration
func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

// String implements the stringer interface
func (i Interval) String() string {
	switch i {
	case OneMin:
		return "1m"
	case FiveMin:
		return "5m"
	case FifteenMin:
		return "15m"
	case ThirtyMin:
		return "30m"
	case OneHour:
		return "1h"
	case FourHour:
		return "4h"
	case OneDay:
		return "d"
	default:
		return i.Duration().String()
	}
}

// ParseInterval maps a config readable interval string to an Interval
func ParseInterval(in string) (Interval, error) {
	switch in {
	case "1m":
		return OneMin, nil
	case "5m":
		return FiveMin, nil
	case "15m":
		return FifteenMin, nil
	case "30m":
		return ThirtyMin, nil
	case "1h":
		return OneHour, nil
	case "4h":
		return FourHour, nil
	case "d", "1d":
		return OneDay, nil
	default:
		return 0, fmt.Errorf("%w '%v'", ErrUnsupportedInterval, in)
	}
}

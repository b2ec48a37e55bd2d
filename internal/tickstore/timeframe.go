package tickstore

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Timeframe is the bucket width used when resampling ticks into bars.
type Timeframe string

const (
	Timeframe1Sec Timeframe = "1s"
	Timeframe1Min Timeframe = "1m"
	Timeframe5Min Timeframe = "5m"
)

// validTimeframes maps each supported Timeframe to its bucket width.
var validTimeframes = map[Timeframe]time.Duration{
	Timeframe1Sec: time.Second,
	Timeframe1Min: time.Minute,
	Timeframe5Min: 5 * time.Minute,
}

// IsValid checks if the Timeframe is one of the supported widths.
func (tf Timeframe) IsValid() bool {
	_, ok := validTimeframes[tf]
	return ok
}

// Duration returns the bucket width, or 0 for an unsupported Timeframe.
func (tf Timeframe) Duration() time.Duration {
	return validTimeframes[tf]
}

func (tf Timeframe) String() string {
	return string(tf)
}

// ParseTimeframe parses "1s", "1m" or "5m".
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return tf, nil
}

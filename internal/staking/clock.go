package staking

import (
	"context"

	"github.com/jonboulle/clockwork"
)

// TimeSource supplies the current unix timestamp in seconds.
type TimeSource interface {
	Now(ctx context.Context) (uint64, error)
}

// SystemClock reads wall-clock time from a clockwork.Clock.
type SystemClock struct {
	Clock clockwork.Clock
}

func NewSystemClock() SystemClock {
	return SystemClock{Clock: clockwork.NewRealClock()}
}

func (c SystemClock) Now(ctx context.Context) (uint64, error) {
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ts := clock.Now().Unix()
	if ts < 0 {
		return 0, nil
	}
	return uint64(ts), nil
}

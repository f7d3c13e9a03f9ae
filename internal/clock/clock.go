// Package clock provides the injectable time capability used across the
// engines. now() is read exactly once per engine invocation so that a single
// invocation's signed timestamps, expiry computations, and report all agree.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the capability an engine entry point accepts instead of calling
// time.Now() directly.
type Clock = clockwork.Clock

// Real returns the real wall-clock implementation.
func Real() Clock {
	return clockwork.NewRealClock()
}

// Frozen returns a fixed clock for tests, deterministic replays, and the
// "now read once" discipline engine invocations are required to follow.
func Frozen(t time.Time) Clock {
	return clockwork.NewFakeClockAt(t)
}

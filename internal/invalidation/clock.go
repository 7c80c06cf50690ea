package invalidation

import "time"

// Timer is a pending delayed call.
type Timer interface {
	// Stop cancels the call, reporting whether it was still pending.
	Stop() bool
}

// Clock supplies time and delayed calls. Tests inject a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

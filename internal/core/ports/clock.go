package ports

import "time"

// Timer is a stoppable pending callback.
type Timer interface {
	// Stop cancels the callback if it has not fired yet and reports
	// whether it was still pending.
	Stop() bool
}

// Clock abstracts wall time and deferred execution so session timing
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealClock is the production Clock backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }

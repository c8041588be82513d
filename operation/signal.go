package operation

import (
	"context"

	"go.uber.org/atomic"
)

// A Signal reports whether the user asked the running block to stop, e.g. by holding the
// brick's escape button.
type Signal interface {
	Requested() bool
}

// SignalFunc adapts a function to a Signal.
type SignalFunc func() bool

// Requested calls f.
func (f SignalFunc) Requested() bool {
	return f()
}

// Never is a Signal that is never requested.
var Never Signal = SignalFunc(func() bool { return false })

// FromContext returns a Signal that is requested once ctx is done.
func FromContext(ctx context.Context) Signal {
	return SignalFunc(func() bool {
		return ctx.Err() != nil
	})
}

// Any returns a Signal that is requested when any of signals is. Nil signals are skipped.
func Any(signals ...Signal) Signal {
	var live []Signal
	for _, s := range signals {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return Never
	}
	if len(live) == 1 {
		return live[0]
	}
	return SignalFunc(func() bool {
		for _, s := range live {
			if s.Requested() {
				return true
			}
		}
		return false
	})
}

// Trigger is a Signal that can be set and reset from any goroutine.
type Trigger struct {
	requested atomic.Bool
}

// Set requests a stop.
func (t *Trigger) Set() {
	t.requested.Store(true)
}

// Reset clears a previous request.
func (t *Trigger) Reset() {
	t.requested.Store(false)
}

// Requested reports whether Set was called since the last Reset.
func (t *Trigger) Requested() bool {
	return t.requested.Load()
}

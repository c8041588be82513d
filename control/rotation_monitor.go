// Package control implements the software control loop that drives unregulated motors
// to a target rotation.
package control

import (
	"context"
	"runtime"
	"time"

	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/operation"
	"github.com/ev3blocks/pblocks/utils"
)

// Default loop timings.
const (
	DefaultStallTimeout = 500 * time.Millisecond
	DefaultPollInterval = time.Millisecond
	DefaultYieldBelow   = 10
)

// MonitorConfig holds the timings of a RotationMonitor.
type MonitorConfig struct {
	// StallTimeout is how long an encoder may stay unchanged before its motor is considered blocked.
	StallTimeout time.Duration
	// PollInterval is the sleep between two encoder samples.
	PollInterval time.Duration
	// YieldBelow is the remaining distance, in degrees, under which the loop yields instead
	// of sleeping.
	YieldBelow int
}

// DefaultMonitorConfig returns the timings used by the EV3 firmware blocks.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StallTimeout: DefaultStallTimeout,
		PollInterval: DefaultPollInterval,
		YieldBelow:   DefaultYieldBelow,
	}
}

func (cfg MonitorConfig) withDefaults() MonitorConfig {
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.YieldBelow < 0 {
		cfg.YieldBelow = 0
	}
	return cfg
}

// Outcome is the way a monitored rotation ended.
type Outcome int

const (
	// Reached means every target reached or passed its goal.
	Reached Outcome = iota
	// Stalled means at least one motor stopped turning before reaching its goal.
	Stalled
	// Cancelled means the cancel signal or the context ended the rotation.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Reached:
		return "reached"
	case Stalled:
		return "stalled"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// A Target is one encoder driven toward Start+Delta.
type Target struct {
	Name string
	// Read returns the current encoder count.
	Read func(ctx context.Context) (int, error)
	// Start is the encoder count when the motor was started.
	Start int
	// Delta is the signed rotation to perform, in degrees.
	Delta int
	// OnDone, if set, is called as soon as this target reaches its goal or stalls.
	OnDone func(ctx context.Context) error
}

func (t Target) pending(current int) int {
	if t.Delta < 0 {
		return current - (t.Start + t.Delta)
	}
	return t.Start + t.Delta - current
}

type targetState struct {
	Target
	last       int
	lastChange time.Time
	done       bool
}

// RotationMonitor polls encoders until their targets are reached, a motor stalls, or the
// rotation is cancelled.
type RotationMonitor struct {
	cfg    MonitorConfig
	clk    utils.Clock
	logger logging.Logger
	cancel operation.Signal
}

// NewRotationMonitor returns a monitor polling on clk. A nil cancel signal never fires.
func NewRotationMonitor(cfg MonitorConfig, clk utils.Clock, cancel operation.Signal, logger logging.Logger) *RotationMonitor {
	if clk == nil {
		clk = utils.NewClock()
	}
	if cancel == nil {
		cancel = operation.Never
	}
	return &RotationMonitor{cfg: cfg.withDefaults(), clk: clk, logger: logger, cancel: cancel}
}

// Config returns the timings in use.
func (m *RotationMonitor) Config() MonitorConfig {
	return m.cfg
}

// Run blocks until every target is done. A stalled target counts as done. Cancellation by
// the signal returns a nil error; cancellation by ctx returns the context error. Run never
// stops the motors itself except through the OnDone callbacks.
func (m *RotationMonitor) Run(ctx context.Context, targets ...Target) (Outcome, error) {
	states := make([]*targetState, 0, len(targets))
	now := m.clk.Now()
	for _, t := range targets {
		states = append(states, &targetState{Target: t, last: t.Start, lastChange: now})
	}

	outcome := Reached
	for {
		if err := ctx.Err(); err != nil {
			return Cancelled, err
		}
		if m.cancel.Requested() {
			m.logger.Info("rotation cancelled")
			return Cancelled, nil
		}

		remaining := 0
		minPending := -1
		for _, st := range states {
			if st.done {
				continue
			}
			current, err := st.Read(ctx)
			if err != nil {
				return outcome, err
			}
			now := m.clk.Now()
			pending := st.pending(current)

			switch {
			case current == st.last && now.Sub(st.lastChange) >= m.cfg.StallTimeout:
				m.logger.Warnw("motor stalled", "motor", st.Name, "pending", pending, "timeout", m.cfg.StallTimeout)
				outcome = Stalled
				if err := m.finish(ctx, st); err != nil {
					return outcome, err
				}
				continue
			case pending <= 0:
				if err := m.finish(ctx, st); err != nil {
					return outcome, err
				}
				continue
			}

			if current != st.last {
				st.last = current
				st.lastChange = now
			}
			remaining++
			if minPending < 0 || pending < minPending {
				minPending = pending
			}
		}

		if remaining == 0 {
			return outcome, nil
		}
		if minPending < m.cfg.YieldBelow {
			runtime.Gosched()
		} else {
			m.clk.Sleep(m.cfg.PollInterval)
		}
	}
}

func (m *RotationMonitor) finish(ctx context.Context, st *targetState) error {
	st.done = true
	if st.OnDone == nil {
		return nil
	}
	return st.OnDone(ctx)
}

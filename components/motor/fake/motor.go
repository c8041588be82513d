// Package fake implements a simulated EV3 brick whose motors turn according to a SimClock.
package fake

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/utils"
)

// State is what a simulated motor is doing.
type State int

const (
	// Floating motors are unpowered.
	Floating State = iota
	// Held motors actively keep their position.
	Held
	// Running motors turn at their commanded rate.
	Running
)

func (s State) String() string {
	switch s {
	case Held:
		return "held"
	case Running:
		return "running"
	}
	return "floating"
}

const positionEpsilon = 1e-6

// Motor is a simulated tacho motor. It implements both motor.RegulatedHardware and
// motor.UnregulatedHardware; the brick decides which one a caller gets.
type Motor struct {
	mu sync.Mutex

	port      motor.Port
	motorType motor.Type
	brick     *Brick

	pos      float64
	since    time.Time
	rate     float64
	hasLimit bool
	limit    float64
	state    State

	speedSP   float64
	dutyCycle int
	stalled   bool
	commands  []string
	closed    bool
}

func newMotor(b *Brick, port motor.Port, t motor.Type) *Motor {
	return &Motor{port: port, motorType: t, brick: b, since: b.clk.Peek()}
}

// advanceLocked integrates the position up to the current simulated time.
func (m *Motor) advanceLocked() {
	now := m.brick.clk.Peek()
	dt := now.Sub(m.since).Seconds()
	m.since = now
	if m.state != Running || m.stalled || dt <= 0 {
		return
	}
	m.pos += m.rate * dt
	if !m.hasLimit {
		return
	}
	if (m.rate > 0 && m.pos >= m.limit-positionEpsilon) || (m.rate < 0 && m.pos <= m.limit+positionEpsilon) {
		m.pos = m.limit
		m.hasLimit = false
		m.state = Held
		m.rate = 0
	}
}

func (m *Motor) recordLocked(format string, args ...interface{}) {
	m.commands = append(m.commands, fmt.Sprintf(format, args...))
}

func (m *Motor) checkLocked() error {
	if m.closed {
		return motor.ErrClosed
	}
	return nil
}

func (m *Motor) runLocked(direction float64) {
	m.advanceLocked()
	m.hasLimit = false
	m.state = Running
	m.rate = direction * m.magnitudeLocked()
}

// magnitudeLocked is the unsigned rate for regulated motors and the signed rate for
// unregulated ones.
func (m *Motor) magnitudeLocked() float64 {
	if m.brick.regulated(m.port) {
		return m.speedSP
	}
	volts := m.brick.voltageValue()
	return float64(m.dutyCycle) / motor.MaxPower * motor.EstimatedMaxSpeed(volts, m.motorType.MaxSpeedAt9V())
}

// ReadEncoder returns the position rounded to the nearest degree.
func (m *Motor) ReadEncoder(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return 0, err
	}
	m.advanceLocked()
	return utils.RoundHalfAway(m.pos), nil
}

// ResetEncoder zeroes the position.
func (m *Motor) ResetEncoder(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	m.advanceLocked()
	if m.hasLimit {
		m.limit -= m.pos
	}
	m.pos = 0
	m.recordLocked("reset")
	return nil
}

// Forward runs the motor forward.
func (m *Motor) Forward(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	m.runLocked(1)
	m.recordLocked("forward")
	return nil
}

// Backward runs the motor backward.
func (m *Motor) Backward(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	m.runLocked(-1)
	m.recordLocked("backward")
	return nil
}

// Stop holds the current position.
func (m *Motor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	m.haltLocked(Held)
	m.recordLocked("stop")
	return nil
}

// Float lets the motor coast.
func (m *Motor) Float(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	m.haltLocked(Floating)
	m.recordLocked("float")
	return nil
}

func (m *Motor) haltLocked(s State) {
	m.advanceLocked()
	m.hasLimit = false
	m.rate = 0
	m.state = s
}

// SetSpeed sets the regulated speed setpoint.
func (m *Motor) SetSpeed(ctx context.Context, degreesPerSec float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	if degreesPerSec < 0 {
		return errors.Errorf("speed setpoint must not be negative, got %v", degreesPerSec)
	}
	m.advanceLocked()
	m.speedSP = math.Min(degreesPerSec, m.motorType.MaxSpeedAt9V())
	if m.state == Running {
		m.rate = math.Copysign(m.speedSP, m.rate)
	}
	m.recordLocked("speed %.0f", m.speedSP)
	return nil
}

// SetDutyCycle sets the signed duty cycle of an unregulated motor.
func (m *Motor) SetDutyCycle(ctx context.Context, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return err
	}
	if percent < -motor.MaxPower || percent > motor.MaxPower {
		return errors.Errorf("duty cycle %d out of range", percent)
	}
	m.advanceLocked()
	m.dutyCycle = percent
	if m.state == Running {
		m.rate = m.magnitudeLocked()
	}
	m.recordLocked("duty %d", percent)
	return nil
}

// Speed returns the signed current speed.
func (m *Motor) Speed(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkLocked(); err != nil {
		return 0, err
	}
	m.advanceLocked()
	if m.state != Running || m.stalled {
		return 0, nil
	}
	return m.rate, nil
}

// MaxSpeed returns the no-load speed of the motor type.
func (m *Motor) MaxSpeed() float64 {
	return m.motorType.MaxSpeedAt9V()
}

// RotateBySignedDegrees runs to a relative position and holds it. Unless immediateReturn is
// set, the simulated time needed to get there elapses before it returns.
func (m *Motor) RotateBySignedDegrees(ctx context.Context, degrees int, immediateReturn bool) error {
	m.mu.Lock()
	if err := m.checkLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.advanceLocked()
	m.recordLocked("rotate %d", degrees)
	if degrees == 0 || m.speedSP == 0 {
		m.hasLimit = false
		m.rate = 0
		m.state = Held
		m.mu.Unlock()
		return nil
	}
	m.limit = m.pos + float64(degrees)
	m.hasLimit = true
	m.state = Running
	m.rate = math.Copysign(m.speedSP, float64(degrees))
	m.mu.Unlock()

	if immediateReturn {
		return nil
	}
	return m.WaitComplete(ctx)
}

// WaitComplete lets the time needed by a pending rotation elapse.
func (m *Motor) WaitComplete(ctx context.Context) error {
	m.mu.Lock()
	m.advanceLocked()
	if !m.hasLimit || m.state != Running || m.stalled {
		m.mu.Unlock()
		return ctx.Err()
	}
	remaining := math.Abs(m.limit-m.pos) / math.Abs(m.rate)
	m.mu.Unlock()

	m.brick.clk.Sleep(time.Duration(math.Ceil(remaining * float64(time.Second))))

	m.mu.Lock()
	m.advanceLocked()
	m.mu.Unlock()
	return ctx.Err()
}

// Close releases the port.
func (m *Motor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.advanceLocked()
	m.closed = true
	m.recordLocked("close")
	m.mu.Unlock()
	m.brick.release(m.port)
	return nil
}

// Position returns the exact simulated position in degrees.
func (m *Motor) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked()
	return m.pos
}

// State returns what the motor is doing.
func (m *Motor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked()
	return m.state
}

// Commands returns every command received so far, oldest first.
func (m *Motor) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// SetStalled blocks or frees the motor shaft.
func (m *Motor) SetStalled(stalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked()
	m.stalled = stalled
}

// Closed reports whether Close was called.
func (m *Motor) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

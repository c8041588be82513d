package ev3dev

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/operation"
)

var (
	_ motor.RegulatedHardware   = (*Tacho)(nil)
	_ motor.UnregulatedHardware = (*Tacho)(nil)
)

// Tacho is one tacho motor of the brick.
type Tacho struct {
	brick    *Brick
	port     motor.Port
	dir      string
	maxSpeed float64
	// direct motors run on their duty cycle instead of the speed regulator.
	direct bool

	speed  atomic.Float64
	closed atomic.Bool
	opMgr  operation.SingleOperationManager
}

func (m *Tacho) path(attr string) string {
	return filepath.Join(m.dir, attr)
}

func (m *Tacho) write(attr, value string) error {
	if err := os.WriteFile(m.path(attr), []byte(value), 0); err != nil {
		return errors.Wrapf(err, "cannot write %s of motor %s", attr, m.port)
	}
	return nil
}

func (m *Tacho) writeInt(attr string, value int) error {
	return m.write(attr, strconv.Itoa(value))
}

func (m *Tacho) readString(attr string) (string, error) {
	raw, err := os.ReadFile(m.path(attr))
	if err != nil {
		return "", errors.Wrapf(err, "cannot read %s of motor %s", attr, m.port)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (m *Tacho) readInt(attr string) (int, error) {
	s, err := m.readString(attr)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse %s of motor %s", attr, m.port)
	}
	return v, nil
}

func (m *Tacho) check() error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	return nil
}

// ReadEncoder returns the position in tacho counts, one per degree on EV3 motors.
func (m *Tacho) ReadEncoder(ctx context.Context) (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.readInt("position")
}

// ResetEncoder zeroes the position.
func (m *Tacho) ResetEncoder(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.writeInt("position", 0)
}

// Forward runs forward. A regulated motor runs at the speed setpoint, a direct one at its
// signed duty cycle.
func (m *Tacho) Forward(ctx context.Context) error {
	return m.run(1)
}

// Backward runs backward at the speed setpoint.
func (m *Tacho) Backward(ctx context.Context) error {
	return m.run(-1)
}

func (m *Tacho) run(direction float64) error {
	if err := m.check(); err != nil {
		return err
	}
	if m.direct {
		return m.write("command", "run-direct")
	}
	if err := m.writeInt("speed_sp", int(math.Round(direction*m.speed.Load()))); err != nil {
		return err
	}
	return m.write("command", "run-forever")
}

// Stop holds the current position.
func (m *Tacho) Stop(ctx context.Context) error {
	return m.stop("hold")
}

// Float lets the motor coast.
func (m *Tacho) Float(ctx context.Context) error {
	return m.stop("coast")
}

func (m *Tacho) stop(action string) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := m.write("stop_action", action); err != nil {
		return err
	}
	return m.write("command", "stop")
}

// SetSpeed sets the speed magnitude used by Forward, Backward and RotateBySignedDegrees.
func (m *Tacho) SetSpeed(ctx context.Context, degreesPerSec float64) error {
	if err := m.check(); err != nil {
		return err
	}
	m.speed.Store(math.Min(math.Abs(degreesPerSec), m.maxSpeed))
	return nil
}

// SetDutyCycle sets the signed duty cycle used by run-direct.
func (m *Tacho) SetDutyCycle(ctx context.Context, percent int) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.writeInt("duty_cycle_sp", percent)
}

// Speed returns the measured signed speed in degrees per second.
func (m *Tacho) Speed(ctx context.Context) (float64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	v, err := m.readInt("speed")
	return float64(v), err
}

// MaxSpeed returns the max_speed attribute read when the motor was opened.
func (m *Tacho) MaxSpeed() float64 {
	return m.maxSpeed
}

// RotateBySignedDegrees runs to a relative position and holds it there.
func (m *Tacho) RotateBySignedDegrees(ctx context.Context, degrees int, immediateReturn bool) error {
	if err := m.check(); err != nil {
		return err
	}
	err := multierr.Combine(
		m.writeInt("speed_sp", int(math.Round(m.speed.Load()))),
		m.writeInt("position_sp", degrees),
		m.write("stop_action", "hold"),
	)
	if err != nil {
		return err
	}
	if err := m.write("command", "run-to-rel-pos"); err != nil {
		return err
	}
	if immediateReturn {
		return nil
	}
	return m.WaitComplete(ctx)
}

// WaitComplete polls the state until the motor stops running or stalls.
func (m *Tacho) WaitComplete(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.opMgr.WaitForSuccess(ctx, m.brick.pollDelay, func(ctx context.Context) (bool, error) {
		state, err := m.readString("state")
		if err != nil {
			return false, err
		}
		flags := strings.Fields(state)
		running, stalled := false, false
		for _, f := range flags {
			switch f {
			case "running":
				running = true
			case "stalled":
				stalled = true
			}
		}
		return !running || stalled, nil
	})
}

// Close releases the port. The motor keeps its last stop action.
func (m *Tacho) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.brick.release(m.port)
	}
	return nil
}

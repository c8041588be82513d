// Package regulated implements motors driven by the speed regulator of the EV3 brick.
package regulated

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/utils"
)

var _ motor.Rotator = (*Motor)(nil)

// Motor is a closed-loop motor. Speed is set as a magnitude; direction comes from the
// forward and backward commands.
type Motor struct {
	port   motor.Port
	hw     motor.RegulatedHardware
	clk    utils.Clock
	logger logging.Logger

	power  atomic.Float64
	closed atomic.Bool
}

// Open acquires the motor on port from brick.
func Open(ctx context.Context, brick motor.Brick, port motor.Port, t motor.Type, clk utils.Clock, logger logging.Logger) (*Motor, error) {
	hw, err := brick.OpenRegulated(ctx, port, t)
	if err != nil {
		return nil, err
	}
	return New(port, hw, clk, logger), nil
}

// New wraps already opened hardware.
func New(port motor.Port, hw motor.RegulatedHardware, clk utils.Clock, logger logging.Logger) *Motor {
	if clk == nil {
		clk = utils.NewClock()
	}
	return &Motor{port: port, hw: hw, clk: clk, logger: logger}
}

// Port returns the output port of the motor.
func (m *Motor) Port() motor.Port {
	return m.port
}

// Model returns motor.Regulated.
func (m *Motor) Model() motor.Model {
	return motor.Regulated
}

// SetPower sets the regulator speed to |power| percent of the maximum speed.
func (m *Motor) SetPower(ctx context.Context, power float64) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	power = motor.ClampPower(power)
	m.power.Store(power)
	return m.hw.SetSpeed(ctx, motor.RegulatedSpeed(power, m.hw.MaxSpeed()))
}

// Start runs forward for positive power and backward for negative power. Zero power does nothing.
func (m *Motor) Start(ctx context.Context) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	switch p := m.power.Load(); {
	case p > 0:
		return m.hw.Forward(ctx)
	case p < 0:
		return m.hw.Backward(ctx)
	}
	return nil
}

// Stop holds position when brake is set, and floats otherwise.
func (m *Motor) Stop(ctx context.Context, brake bool) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	if brake {
		return m.hw.Stop(ctx)
	}
	return m.hw.Float(ctx)
}

// Rotate turns by degrees on the regulator. The regulator holds the position afterwards.
func (m *Motor) Rotate(ctx context.Context, degrees int, immediateReturn bool) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	m.logger.Debugw("rotate", "port", m.port, "degrees", degrees, "immediate", immediateReturn)
	return m.hw.RotateBySignedDegrees(ctx, degrees, immediateReturn)
}

// WaitComplete waits for a rotation started with immediateReturn.
func (m *Motor) WaitComplete(ctx context.Context) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	return m.hw.WaitComplete(ctx)
}

// Degrees returns the tachometer count.
func (m *Motor) Degrees(ctx context.Context) (int, error) {
	if m.closed.Load() {
		return 0, motor.ErrClosed
	}
	return m.hw.ReadEncoder(ctx)
}

// ResetRotation zeroes the tachometer.
func (m *Motor) ResetRotation(ctx context.Context) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	return m.hw.ResetEncoder(ctx)
}

// CurrentPower returns the measured speed as a signed percentage of the maximum speed.
func (m *Motor) CurrentPower(ctx context.Context) (float64, error) {
	if m.closed.Load() {
		return 0, motor.ErrClosed
	}
	speed, err := m.hw.Speed(ctx)
	if err != nil {
		return 0, err
	}
	return motor.MeasuredPower(speed, m.hw.MaxSpeed()), nil
}

// Close stops the motor with the brake and releases its port. Closing twice is a no-op.
func (m *Motor) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(m.hw.Stop(ctx), m.hw.Close())
}

// On sets the power and starts the motor.
func (m *Motor) On(ctx context.Context, power float64) error {
	if err := m.SetPower(ctx, power); err != nil {
		return err
	}
	return m.Start(ctx)
}

// OnForSeconds runs the motor for period then stops it. A non-positive period does nothing.
func (m *Motor) OnForSeconds(ctx context.Context, power float64, period time.Duration, brake bool) error {
	if period <= 0 {
		return nil
	}
	if err := m.On(ctx, power); err != nil {
		return multierr.Combine(err, m.Stop(context.WithoutCancel(ctx), brake))
	}
	waitErr := utils.SleepContext(ctx, m.clk, period)
	return multierr.Combine(waitErr, m.Stop(context.WithoutCancel(ctx), brake))
}

// OnForDegrees turns the motor by degrees.
func (m *Motor) OnForDegrees(ctx context.Context, power float64, degrees int, brake bool) error {
	return m.OnForRotationsDegrees(ctx, power, 0, degrees, brake)
}

// OnForRotations turns the motor by rotations.
func (m *Motor) OnForRotations(ctx context.Context, power, rotations float64, brake bool) error {
	return m.OnForRotationsDegrees(ctx, power, rotations, 0, brake)
}

// OnForRotationsDegrees turns the motor by rotations*360+degrees. A negative total turns
// backward whatever the sign of power. Zero power or a zero total does nothing.
func (m *Motor) OnForRotationsDegrees(ctx context.Context, power, rotations float64, degrees int, brake bool) error {
	power, total := motor.NormalizeRotation(power, motor.TargetDegrees(rotations, degrees))
	power = motor.ClampPower(power)
	if total == 0 || power == 0 {
		return nil
	}
	if err := m.SetPower(ctx, power); err != nil {
		return err
	}
	if err := m.Rotate(ctx, utils.Sign(power)*total, false); err != nil {
		return multierr.Combine(err, m.Stop(context.WithoutCancel(ctx), brake))
	}
	if !brake {
		return m.hw.Float(ctx)
	}
	return nil
}

// Off stops the motor.
func (m *Motor) Off(ctx context.Context, brake bool) error {
	return m.Stop(ctx, brake)
}

// MeasureRotations returns the tachometer count in rotations.
func (m *Motor) MeasureRotations(ctx context.Context) (float64, error) {
	deg, err := m.Degrees(ctx)
	if err != nil {
		return 0, err
	}
	return float64(deg) / 360, nil
}

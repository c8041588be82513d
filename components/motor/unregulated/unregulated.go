// Package unregulated implements motors driven by raw duty cycle, with rotations watched in
// software by a control.RotationMonitor.
package unregulated

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/control"
	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/operation"
	"github.com/ev3blocks/pblocks/utils"
)

// DefaultSpeedSample is the window over which CurrentPower measures speed.
const DefaultSpeedSample = 99 * time.Millisecond

var _ motor.Actuator = (*Motor)(nil)

// Config describes an unregulated motor.
type Config struct {
	Type motor.Type
	// SpeedSample is the window over which CurrentPower measures speed.
	SpeedSample time.Duration
	Monitor     control.MonitorConfig
}

// Motor is an open-loop motor. The duty cycle carries the direction.
type Motor struct {
	port   motor.Port
	cfg    Config
	hw     motor.UnregulatedHardware
	supply motor.PowerSupply
	clk    utils.Clock
	logger logging.Logger
	cancel operation.Signal

	power  atomic.Float64
	closed atomic.Bool
}

// Open acquires the motor on port from brick. The cancel signal, which may be nil, aborts
// rotations in progress.
func Open(
	ctx context.Context,
	brick motor.Brick,
	port motor.Port,
	cfg Config,
	clk utils.Clock,
	cancel operation.Signal,
	logger logging.Logger,
) (*Motor, error) {
	hw, err := brick.OpenUnregulated(ctx, port, cfg.Type)
	if err != nil {
		return nil, err
	}
	return New(port, cfg, hw, brick.PowerSupply(), clk, cancel, logger), nil
}

// New wraps already opened hardware.
func New(
	port motor.Port,
	cfg Config,
	hw motor.UnregulatedHardware,
	supply motor.PowerSupply,
	clk utils.Clock,
	cancel operation.Signal,
	logger logging.Logger,
) *Motor {
	if cfg.SpeedSample <= 0 {
		cfg.SpeedSample = DefaultSpeedSample
	}
	if clk == nil {
		clk = utils.NewClock()
	}
	if cancel == nil {
		cancel = operation.Never
	}
	return &Motor{port: port, cfg: cfg, hw: hw, supply: supply, clk: clk, logger: logger, cancel: cancel}
}

// Port returns the output port of the motor.
func (m *Motor) Port() motor.Port {
	return m.port
}

// Model returns motor.Unregulated.
func (m *Motor) Model() motor.Model {
	return motor.Unregulated
}

// SetPower sets the signed duty cycle.
func (m *Motor) SetPower(ctx context.Context, power float64) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	power = motor.ClampPower(power)
	m.power.Store(power)
	return m.hw.SetDutyCycle(ctx, motor.DutyCycle(power))
}

// Start always runs forward; the duty cycle sign gives the direction.
func (m *Motor) Start(ctx context.Context) error {
	if m.closed.Load() {
		return motor.ErrClosed
	}
	return m.hw.Forward(ctx)
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

// CurrentPower samples the speed over the configured window and returns it as a signed
// percentage of the maximum speed estimated from the battery voltage.
func (m *Motor) CurrentPower(ctx context.Context) (float64, error) {
	if m.closed.Load() {
		return 0, motor.ErrClosed
	}
	start, err := m.hw.ReadEncoder(ctx)
	if err != nil {
		return 0, err
	}
	t0 := m.clk.Now()
	if err := utils.SleepContext(ctx, m.clk, m.cfg.SpeedSample); err != nil {
		return 0, err
	}
	end, err := m.hw.ReadEncoder(ctx)
	if err != nil {
		return 0, err
	}
	window := m.clk.Now().Sub(t0).Seconds()
	if window <= 0 {
		return 0, nil
	}
	return motor.MeasuredPower(float64(end-start)/window, m.MaxSpeed(ctx)), nil
}

// MaxSpeed estimates the no-load speed from the battery voltage.
func (m *Motor) MaxSpeed(ctx context.Context) float64 {
	volts, err := m.supply.Voltage(ctx)
	if err != nil {
		m.logger.Debugw("cannot read battery voltage", "error", err)
		volts = 9
	}
	return motor.EstimatedMaxSpeed(volts, m.cfg.Type.MaxSpeedAt9V())
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
func (m *Motor) OnForDegrees(ctx context.Context, power float64, degrees int, brake bool) (control.Outcome, error) {
	return m.OnForRotationsDegrees(ctx, power, 0, degrees, brake)
}

// OnForRotations turns the motor by rotations.
func (m *Motor) OnForRotations(ctx context.Context, power, rotations float64, brake bool) (control.Outcome, error) {
	return m.OnForRotationsDegrees(ctx, power, rotations, 0, brake)
}

// OnForRotationsDegrees turns the motor by rotations*360+degrees and stops it. A negative
// total turns backward whatever the sign of power. A power rounding to a zero duty cycle or
// a zero total does nothing. Once started, the motor is stopped on every outcome, a stall,
// a cancellation or an error included.
func (m *Motor) OnForRotationsDegrees(
	ctx context.Context,
	power, rotations float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	power, total := motor.NormalizeRotation(power, motor.TargetDegrees(rotations, degrees))
	power = motor.ClampPower(power)
	if total == 0 || motor.DutyCycle(power) == 0 {
		return control.Reached, nil
	}
	start, err := m.Degrees(ctx)
	if err != nil {
		return control.Reached, err
	}
	if err := m.On(ctx, power); err != nil {
		return control.Reached, multierr.Combine(err, m.Stop(context.WithoutCancel(ctx), brake))
	}

	monitor := control.NewRotationMonitor(m.cfg.Monitor, m.clk, m.cancel, m.logger)
	outcome, runErr := monitor.Run(ctx, control.Target{
		Name:  string(m.port),
		Read:  m.hw.ReadEncoder,
		Start: start,
		Delta: utils.Sign(power) * total,
	})
	return outcome, multierr.Combine(runErr, m.Stop(context.WithoutCancel(ctx), brake))
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

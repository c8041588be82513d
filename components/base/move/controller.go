// Package move implements the EV3 move blocks: two motors driven together as a
// differential drive, commanded either by steering or as a tank.
package move

import (
	"context"
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/control"
	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/observability"
	"github.com/ev3blocks/pblocks/operation"
	"github.com/ev3blocks/pblocks/utils"
)

// Options tunes a Controller. The zero value uses the system clock, the default monitor
// timings, no cancel signal and no metrics.
type Options struct {
	Clock   utils.Clock
	Monitor control.MonitorConfig
	// Cancel aborts monitored rotations, like the brick's escape button.
	Cancel  operation.Signal
	Metrics *observability.DriveCollector
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = utils.NewClock()
	}
	return o
}

// Controller drives a left and a right actuator together. Both actuators are owned by the
// controller and closed with it.
type Controller[A motor.Actuator] struct {
	left, right A

	clk     utils.Clock
	logger  logging.Logger
	monitor *control.RotationMonitor
	metrics *observability.DriveCollector
	opMgr   operation.SingleOperationManager
}

// NewController returns a controller owning left and right.
func NewController[A motor.Actuator](left, right A, opts Options, logger logging.Logger) *Controller[A] {
	opts = opts.withDefaults()
	clk := opts.Clock
	return &Controller[A]{
		left:    left,
		right:   right,
		clk:     clk,
		logger:  logger,
		monitor: control.NewRotationMonitor(opts.Monitor, clk, opts.Cancel, logger),
		metrics: opts.Metrics,
	}
}

// Left returns the left actuator.
func (c *Controller[A]) Left() A {
	return c.left
}

// Right returns the right actuator.
func (c *Controller[A]) Right() A {
	return c.right
}

func (c *Controller[A]) setPowers(ctx context.Context, powerLeft, powerRight float64) error {
	return multierr.Combine(
		c.left.SetPower(ctx, powerLeft),
		c.right.SetPower(ctx, powerRight),
	)
}

func (c *Controller[A]) startBoth(ctx context.Context) error {
	return multierr.Combine(c.left.Start(ctx), c.right.Start(ctx))
}

// MotorsOn starts both motors and returns at once.
func (c *Controller[A]) MotorsOn(ctx context.Context, powerLeft, powerRight float64) error {
	c.opMgr.CancelRunning(ctx)
	if err := c.setPowers(ctx, powerLeft, powerRight); err != nil {
		return err
	}
	return c.startBoth(ctx)
}

// MotorsOnForSeconds runs both motors for period, then stops them. A non-positive period
// does nothing.
func (c *Controller[A]) MotorsOnForSeconds(ctx context.Context, powerLeft, powerRight float64, period time.Duration, brake bool) error {
	if period <= 0 {
		return nil
	}
	ctx, done := c.opMgr.New(ctx)
	defer done()

	c.logger.Debugw("motors on for seconds", "left", powerLeft, "right", powerRight, "period", period, "brake", brake)
	if err := c.MotorsOn(ctx, powerLeft, powerRight); err != nil {
		return multierr.Combine(err, c.MotorsOff(context.WithoutCancel(ctx), brake))
	}
	waitErr := utils.SleepContext(ctx, c.clk, period)
	return multierr.Combine(waitErr, c.MotorsOff(context.WithoutCancel(ctx), brake))
}

// MotorsOnForRotations turns the drive by rotations.
func (c *Controller[A]) MotorsOnForRotations(
	ctx context.Context,
	powerLeft, powerRight, rotations float64,
	brake bool,
) (control.Outcome, error) {
	return c.MotorsOnForRotationsDegrees(ctx, powerLeft, powerRight, rotations, 0, brake)
}

// MotorsOnForDegrees turns the drive by degrees.
func (c *Controller[A]) MotorsOnForDegrees(
	ctx context.Context,
	powerLeft, powerRight float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	return c.MotorsOnForRotationsDegrees(ctx, powerLeft, powerRight, 0, degrees, brake)
}

// MotorsOnForRotationsDegrees turns the faster wheel by rotations*360+degrees and stops both
// motors. The slower wheel runs free until then; wheels of equal speed are each driven to
// the target. The sign of each power gives the direction of its wheel, and a negative total
// reverses both. Nothing happens when rotations and degrees are both non-positive, when the
// total is zero, or when neither motor would turn at the requested powers.
//
// Both motors are stopped before it returns, whatever the outcome. Regulated pairs delegate
// the rotation to the motor controllers; other pairs are watched by a RotationMonitor,
// which also handles stalls and the cancel signal.
func (c *Controller[A]) MotorsOnForRotationsDegrees(
	ctx context.Context,
	powerLeft, powerRight, rotations float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	if rotations <= 0 && degrees <= 0 {
		return control.Reached, nil
	}
	target := motor.TargetDegrees(rotations, degrees)
	powerLeft, powerRight = motor.ClampPower(powerLeft), motor.ClampPower(powerRight)
	if target < 0 {
		target, powerLeft, powerRight = -target, -powerLeft, -powerRight
	}
	leftRot, leftOK := any(c.left).(motor.Rotator)
	rightRot, rightOK := any(c.right).(motor.Rotator)
	regulated := leftOK && rightOK
	if target == 0 || idle(regulated, powerLeft, powerRight) {
		return control.Reached, nil
	}

	ctx, done := c.opMgr.New(ctx)
	defer done()

	c.logger.Debugw("motors on for degrees",
		"left", powerLeft, "right", powerRight, "degrees", target, "brake", brake)
	start := c.clk.Now()
	model := motor.Unregulated
	if regulated {
		model = motor.Regulated
	}

	var outcome control.Outcome
	err := c.setPowers(ctx, powerLeft, powerRight)
	if err == nil {
		if regulated {
			outcome, err = c.rotateRegulated(ctx, leftRot, rightRot, powerLeft, powerRight, target, brake)
		} else {
			outcome, err = c.rotateMonitored(ctx, powerLeft, powerRight, target, brake)
		}
	} else {
		err = multierr.Combine(err, c.MotorsOff(context.WithoutCancel(ctx), brake))
	}
	c.metrics.ObserveRotation(model.String(), outcome.String(), c.clk.Now().Sub(start))
	return outcome, err
}

// idle reports whether neither motor would turn. Unregulated motors run on whole duty
// cycle percentages, so powers that round to zero leave them still.
func idle(regulated bool, powerLeft, powerRight float64) bool {
	if regulated {
		return powerLeft == 0 && powerRight == 0
	}
	return motor.DutyCycle(powerLeft) == 0 && motor.DutyCycle(powerRight) == 0
}

// rotateRegulated lets the controller of the faster motor run the rotation. The slower
// motor is stopped right after; with equal speeds both motors rotate and are awaited.
func (c *Controller[A]) rotateRegulated(
	ctx context.Context,
	left, right motor.Rotator,
	powerLeft, powerRight float64,
	target int,
	brake bool,
) (control.Outcome, error) {
	stopCtx := context.WithoutCancel(ctx)
	absLeft, absRight := math.Abs(powerLeft), math.Abs(powerRight)

	if absLeft == absRight {
		err := left.Rotate(ctx, utils.Sign(powerLeft)*target, true)
		if err == nil {
			err = right.Rotate(ctx, utils.Sign(powerRight)*target, false)
		}
		if err == nil {
			err = left.WaitComplete(ctx)
		}
		if err != nil {
			return control.Reached, multierr.Combine(err, c.MotorsOff(stopCtx, brake))
		}
		if !brake {
			return control.Reached, c.MotorsOff(stopCtx, false)
		}
		return control.Reached, nil
	}

	monitored, free, power := left, right, powerLeft
	if absRight > absLeft {
		monitored, free, power = right, left, powerRight
	}
	if err := free.Start(ctx); err != nil {
		return control.Reached, multierr.Combine(err, c.MotorsOff(stopCtx, brake))
	}
	rotateErr := monitored.Rotate(ctx, utils.Sign(power)*target, false)
	err := multierr.Combine(rotateErr, free.Stop(stopCtx, brake))
	if !brake || rotateErr != nil {
		err = multierr.Combine(err, monitored.Stop(stopCtx, brake))
	}
	return control.Reached, err
}

// rotateMonitored starts both motors and polls the encoder of the faster one until it has
// turned by target degrees, it stalls, or the rotation is cancelled. With equal speeds each
// motor is stopped as soon as it reaches the target.
func (c *Controller[A]) rotateMonitored(
	ctx context.Context,
	powerLeft, powerRight float64,
	target int,
	brake bool,
) (control.Outcome, error) {
	stopCtx := context.WithoutCancel(ctx)

	leftStart, err := c.left.Degrees(ctx)
	if err != nil {
		return control.Reached, multierr.Combine(err, c.MotorsOff(stopCtx, brake))
	}
	rightStart, err := c.right.Degrees(ctx)
	if err != nil {
		return control.Reached, multierr.Combine(err, c.MotorsOff(stopCtx, brake))
	}

	leftTarget := control.Target{
		Name:  "left",
		Read:  c.left.Degrees,
		Start: leftStart,
		Delta: utils.Sign(powerLeft) * target,
	}
	rightTarget := control.Target{
		Name:  "right",
		Read:  c.right.Degrees,
		Start: rightStart,
		Delta: utils.Sign(powerRight) * target,
	}

	var targets []control.Target
	absLeft, absRight := math.Abs(powerLeft), math.Abs(powerRight)
	switch {
	case absLeft > absRight:
		targets = []control.Target{leftTarget}
	case absRight > absLeft:
		targets = []control.Target{rightTarget}
	default:
		leftTarget.OnDone = func(context.Context) error { return c.left.Stop(stopCtx, brake) }
		rightTarget.OnDone = func(context.Context) error { return c.right.Stop(stopCtx, brake) }
		targets = []control.Target{leftTarget, rightTarget}
	}

	if err := c.startBoth(ctx); err != nil {
		return control.Reached, multierr.Combine(err, c.MotorsOff(stopCtx, brake))
	}
	outcome, runErr := c.monitor.Run(ctx, targets...)
	if outcome == control.Stalled {
		c.logger.Warnw("rotation ended by a stalled motor", "degrees", target)
	}
	return outcome, multierr.Combine(runErr, c.MotorsOff(stopCtx, brake))
}

// MotorsOff stops both motors.
func (c *Controller[A]) MotorsOff(ctx context.Context, brake bool) error {
	c.opMgr.CancelRunning(ctx)
	return multierr.Combine(
		c.left.Stop(ctx, brake),
		c.right.Stop(ctx, brake),
	)
}

// MeasureDegreesLeft returns the tachometer count of the left motor.
func (c *Controller[A]) MeasureDegreesLeft(ctx context.Context) (int, error) {
	return c.left.Degrees(ctx)
}

// MeasureDegreesRight returns the tachometer count of the right motor.
func (c *Controller[A]) MeasureDegreesRight(ctx context.Context) (int, error) {
	return c.right.Degrees(ctx)
}

// MeasureRotationsLeft returns the tachometer count of the left motor in rotations.
func (c *Controller[A]) MeasureRotationsLeft(ctx context.Context) (float64, error) {
	return measureRotations(ctx, c.left)
}

// MeasureRotationsRight returns the tachometer count of the right motor in rotations.
func (c *Controller[A]) MeasureRotationsRight(ctx context.Context) (float64, error) {
	return measureRotations(ctx, c.right)
}

func measureRotations(ctx context.Context, a motor.Actuator) (float64, error) {
	deg, err := a.Degrees(ctx)
	if err != nil {
		return 0, err
	}
	return float64(deg) / 360, nil
}

// MeasureCurrentPowerLeft returns the measured power of the left motor.
func (c *Controller[A]) MeasureCurrentPowerLeft(ctx context.Context) (float64, error) {
	return c.left.CurrentPower(ctx)
}

// MeasureCurrentPowerRight returns the measured power of the right motor.
func (c *Controller[A]) MeasureCurrentPowerRight(ctx context.Context) (float64, error) {
	return c.right.CurrentPower(ctx)
}

// RotationResetLeft zeroes the tachometer of the left motor.
func (c *Controller[A]) RotationResetLeft(ctx context.Context) error {
	return c.left.ResetRotation(ctx)
}

// RotationResetRight zeroes the tachometer of the right motor.
func (c *Controller[A]) RotationResetRight(ctx context.Context) error {
	return c.right.ResetRotation(ctx)
}

// Close stops and releases both motors.
func (c *Controller[A]) Close(ctx context.Context) error {
	c.opMgr.CancelRunning(ctx)
	return multierr.Combine(c.left.Close(ctx), c.right.Close(ctx))
}

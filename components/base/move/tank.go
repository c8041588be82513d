package move

import (
	"context"
	"time"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/control"
)

// Tank drives a Controller with independent left and right powers, like the Move Tank block.
type Tank[A motor.Actuator] struct {
	*Controller[A]
}

// NewTank returns a tank view of c.
func NewTank[A motor.Actuator](c *Controller[A]) *Tank[A] {
	return &Tank[A]{Controller: c}
}

// Steering returns a steering view of the same motors.
func (t *Tank[A]) Steering() *Steering[A] {
	return NewSteering(t.Controller)
}

// MotorsOn starts both motors and returns at once.
func (t *Tank[A]) MotorsOn(ctx context.Context, powerLeft, powerRight float64) error {
	powerLeft, powerRight = TankMix(powerLeft, powerRight)
	return t.Controller.MotorsOn(ctx, powerLeft, powerRight)
}

// MotorsOnForSeconds drives for period, then stops.
func (t *Tank[A]) MotorsOnForSeconds(ctx context.Context, powerLeft, powerRight float64, period time.Duration, brake bool) error {
	powerLeft, powerRight = TankMix(powerLeft, powerRight)
	return t.Controller.MotorsOnForSeconds(ctx, powerLeft, powerRight, period, brake)
}

// MotorsOnForRotations drives until the faster wheel has turned by rotations.
func (t *Tank[A]) MotorsOnForRotations(
	ctx context.Context,
	powerLeft, powerRight, rotations float64,
	brake bool,
) (control.Outcome, error) {
	return t.MotorsOnForRotationsDegrees(ctx, powerLeft, powerRight, rotations, 0, brake)
}

// MotorsOnForDegrees drives until the faster wheel has turned by degrees.
func (t *Tank[A]) MotorsOnForDegrees(
	ctx context.Context,
	powerLeft, powerRight float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	return t.MotorsOnForRotationsDegrees(ctx, powerLeft, powerRight, 0, degrees, brake)
}

// MotorsOnForRotationsDegrees drives until the faster wheel has turned by
// rotations*360+degrees.
func (t *Tank[A]) MotorsOnForRotationsDegrees(
	ctx context.Context,
	powerLeft, powerRight, rotations float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	powerLeft, powerRight = TankMix(powerLeft, powerRight)
	return t.Controller.MotorsOnForRotationsDegrees(ctx, powerLeft, powerRight, rotations, degrees, brake)
}

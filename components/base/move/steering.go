package move

import (
	"context"
	"time"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/control"
)

// Steering drives a Controller with (steering, power) commands, like the Move Steering block.
type Steering[A motor.Actuator] struct {
	*Controller[A]
}

// NewSteering returns a steering view of c.
func NewSteering[A motor.Actuator](c *Controller[A]) *Steering[A] {
	return &Steering[A]{Controller: c}
}

// Tank returns a tank view of the same motors.
func (s *Steering[A]) Tank() *Tank[A] {
	return NewTank(s.Controller)
}

// MotorsOn starts both motors and returns at once.
func (s *Steering[A]) MotorsOn(ctx context.Context, steering, power float64) error {
	left, right := SteeringMix(steering, power)
	return s.Controller.MotorsOn(ctx, float64(left), float64(right))
}

// MotorsOnForSeconds drives for period, then stops.
func (s *Steering[A]) MotorsOnForSeconds(ctx context.Context, steering, power float64, period time.Duration, brake bool) error {
	left, right := SteeringMix(steering, power)
	return s.Controller.MotorsOnForSeconds(ctx, float64(left), float64(right), period, brake)
}

// MotorsOnForRotations drives until the outer wheel has turned by rotations.
func (s *Steering[A]) MotorsOnForRotations(
	ctx context.Context,
	steering, power, rotations float64,
	brake bool,
) (control.Outcome, error) {
	return s.MotorsOnForRotationsDegrees(ctx, steering, power, rotations, 0, brake)
}

// MotorsOnForDegrees drives until the outer wheel has turned by degrees.
func (s *Steering[A]) MotorsOnForDegrees(
	ctx context.Context,
	steering, power float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	return s.MotorsOnForRotationsDegrees(ctx, steering, power, 0, degrees, brake)
}

// MotorsOnForRotationsDegrees drives until the outer wheel has turned by
// rotations*360+degrees.
func (s *Steering[A]) MotorsOnForRotationsDegrees(
	ctx context.Context,
	steering, power, rotations float64,
	degrees int,
	brake bool,
) (control.Outcome, error) {
	left, right := SteeringMix(steering, power)
	return s.Controller.MotorsOnForRotationsDegrees(ctx, float64(left), float64(right), rotations, degrees, brake)
}

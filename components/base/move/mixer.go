package move

import (
	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/utils"
)

// SteeringMix splits a steering command into left and right powers. Positive steering turns
// right: the right wheel slows down, stops at 50 and reverses up to a pivot at 100. Negative
// steering mirrors this on the left wheel.
func SteeringMix(steering, power float64) (int, int) {
	steering = motor.ClampSteering(steering)
	p := utils.RoundHalfAway(motor.ClampPower(power))
	fp := float64(p)
	switch {
	case steering > 0:
		return p, utils.RoundHalfAway(fp * (1 - steering/50))
	case steering < 0:
		return utils.RoundHalfAway(fp * (1 + steering/50)), p
	default:
		return p, p
	}
}

// TankMix clamps independent left and right powers.
func TankMix(left, right float64) (float64, float64) {
	return motor.ClampPower(left), motor.ClampPower(right)
}

package motor

import (
	"math"

	"github.com/ev3blocks/pblocks/utils"
)

// MaxPower is the largest power magnitude, in percent.
const MaxPower = 100

// ClampPower clamps a power percentage to [-100, 100].
func ClampPower(power float64) float64 {
	return utils.Clamp(power, -MaxPower, MaxPower)
}

// ClampSteering clamps a steering value to [-100, 100].
func ClampSteering(steering float64) float64 {
	return utils.Clamp(steering, -100, 100)
}

// RegulatedSpeed converts a power to the unsigned speed setpoint of a regulated motor.
func RegulatedSpeed(power, maxSpeed float64) float64 {
	return math.Abs(ClampPower(power)) * maxSpeed / MaxPower
}

// DutyCycle converts a power to the duty cycle of an unregulated motor.
func DutyCycle(power float64) int {
	return utils.RoundHalfAway(ClampPower(power))
}

// TargetDegrees combines a rotation count and a degree count into one rotation in degrees.
// The rotations are converted first, rounding half away from zero.
func TargetDegrees(rotations float64, degrees int) int {
	return utils.RoundHalfAway(rotations*360) + degrees
}

// NormalizeRotation maps a signed rotation onto a non-negative one, carrying the direction
// in the power. A negative rotation always runs backward.
func NormalizeRotation(power float64, degrees int) (float64, int) {
	if degrees < 0 {
		return -math.Abs(power), -degrees
	}
	return power, degrees
}

// EstimatedMaxSpeed estimates the no-load speed of a motor at the given supply voltage.
func EstimatedMaxSpeed(volts, maxSpeedAt9V float64) float64 {
	return volts * maxSpeedAt9V / 9 * 0.9
}

// MeasuredPower converts a measured speed to a power relative to maxSpeed.
func MeasuredPower(speed, maxSpeed float64) float64 {
	if maxSpeed <= 0 {
		return 0
	}
	return MaxPower * speed / maxSpeed
}

package move

import (
	"testing"

	"go.viam.com/test"

	"github.com/ev3blocks/pblocks/components/motor"
)

func TestSteeringMixStraight(t *testing.T) {
	for power := -100; power <= 100; power++ {
		left, right := SteeringMix(0, float64(power))
		test.That(t, left, test.ShouldEqual, power)
		test.That(t, right, test.ShouldEqual, power)
	}
}

func TestSteeringMixPivotAndHalf(t *testing.T) {
	for power := -100; power <= 100; power += 5 {
		left, right := SteeringMix(100, float64(power))
		test.That(t, left, test.ShouldEqual, power)
		test.That(t, right, test.ShouldEqual, -power)

		left, right = SteeringMix(-100, float64(power))
		test.That(t, left, test.ShouldEqual, -power)
		test.That(t, right, test.ShouldEqual, power)

		_, right = SteeringMix(50, float64(power))
		test.That(t, right, test.ShouldEqual, 0)
		left, _ = SteeringMix(-50, float64(power))
		test.That(t, left, test.ShouldEqual, 0)
	}
}

func TestSteeringMixValues(t *testing.T) {
	for _, tc := range []struct {
		steering, power   float64
		wantLeft, wantRight int
	}{
		{25, 50, 50, 25},
		{30, 45, 45, 18},
		{10, -35, -35, -28},
		{-75, 33, -17, 33},
		{75, -33, -33, 17},
		{0, 40.5, 41, 41},
		{150, 120, 100, -100},
		{-150, -120, 100, -100},
	} {
		left, right := SteeringMix(tc.steering, tc.power)
		test.That(t, left, test.ShouldEqual, tc.wantLeft)
		test.That(t, right, test.ShouldEqual, tc.wantRight)
	}
}

func TestClampIdempotence(t *testing.T) {
	for _, x := range []float64{-1e9, -150, -100, -42.5, 0, 99.9, 100, 100.1, 1e9} {
		test.That(t, motor.ClampPower(motor.ClampPower(x)), test.ShouldEqual, motor.ClampPower(x))
		test.That(t, motor.ClampSteering(motor.ClampSteering(x)), test.ShouldEqual, motor.ClampSteering(x))
	}
}

func TestTankMix(t *testing.T) {
	left, right := TankMix(150, -150)
	test.That(t, left, test.ShouldEqual, 100.0)
	test.That(t, right, test.ShouldEqual, -100.0)

	left, right = TankMix(-12.5, 30)
	test.That(t, left, test.ShouldEqual, -12.5)
	test.That(t, right, test.ShouldEqual, 30.0)
}

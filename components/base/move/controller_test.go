package move

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/components/motor/fake"
	"github.com/ev3blocks/pblocks/components/motor/unregulated"
	"github.com/ev3blocks/pblocks/control"
	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/observability"
	"github.com/ev3blocks/pblocks/utils"
)

var models = []motor.Model{motor.Regulated, motor.Unregulated}

type testDrive struct {
	*Controller[motor.Actuator]
	brick   *fake.Brick
	metrics *observability.DriveCollector
}

func (d testDrive) left() *fake.Motor  { return d.brick.Motor(motor.PortB) }
func (d testDrive) right() *fake.Motor { return d.brick.Motor(motor.PortC) }

func newTestDrive(t *testing.T, model motor.Model) testDrive {
	t.Helper()
	b := fake.NewBrick()
	metrics, err := observability.NewDriveCollector(prometheus.NewRegistry())
	test.That(t, err, test.ShouldBeNil)
	c, err := Open(
		context.Background(),
		b,
		model,
		Ports{Left: motor.PortB, Right: motor.PortC, Type: motor.Large},
		unregulated.Config{},
		Options{Clock: b.Clock(), Cancel: b.Escape(), Metrics: metrics},
		logging.NewTestLogger(t),
	)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { c.Close(context.Background()) })
	return testDrive{Controller: c, brick: b, metrics: metrics}
}

func degrees(t *testing.T, d testDrive) (int, int) {
	t.Helper()
	ctx := context.Background()
	left, err := d.MeasureDegreesLeft(ctx)
	test.That(t, err, test.ShouldBeNil)
	right, err := d.MeasureDegreesRight(ctx)
	test.That(t, err, test.ShouldBeNil)
	return left, right
}

func within(t *testing.T, got, want, tolerance int) {
	t.Helper()
	test.That(t, got, test.ShouldBeGreaterThanOrEqualTo, want-tolerance)
	test.That(t, got, test.ShouldBeLessThanOrEqualTo, want+tolerance)
}

func TestMotorsOnForSecondsZeroPeriod(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			start := d.brick.Clock().Peek()
			test.That(t, d.MotorsOnForSeconds(context.Background(), 40, 40, 0, true), test.ShouldBeNil)
			test.That(t, d.left().Commands(), test.ShouldBeEmpty)
			test.That(t, d.right().Commands(), test.ShouldBeEmpty)
			test.That(t, d.brick.Clock().Peek(), test.ShouldEqual, start)
		})
	}
}

func TestMotorsOnForSeconds(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			start := d.brick.Clock().Peek()
			test.That(t, d.MotorsOnForSeconds(context.Background(), 50, -50, time.Second, true), test.ShouldBeNil)
			test.That(t, d.brick.Clock().Peek().Sub(start), test.ShouldBeGreaterThanOrEqualTo, time.Second)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Held)

			left, right := degrees(t, d)
			test.That(t, left, test.ShouldBeGreaterThan, 0)
			test.That(t, right, test.ShouldEqual, -left)
		})
	}
}

func TestMotorsOnAndOff(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t, motor.Regulated)

	test.That(t, d.MotorsOn(ctx, 50, -20), test.ShouldBeNil)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Running)
	test.That(t, d.right().State(), test.ShouldEqual, fake.Running)

	pwr, err := d.MeasureCurrentPowerLeft(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pwr, test.ShouldAlmostEqual, 50)
	pwr, err = d.MeasureCurrentPowerRight(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pwr, test.ShouldAlmostEqual, -20)

	test.That(t, d.MotorsOff(ctx, false), test.ShouldBeNil)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Floating)
	test.That(t, d.right().State(), test.ShouldEqual, fake.Floating)
}

func TestBoundedRotationTie(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			outcome, err := d.MotorsOnForRotations(context.Background(), 40, 40, 2, true)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, outcome, test.ShouldEqual, control.Reached)

			left, right := degrees(t, d)
			within(t, left, 720, 1)
			within(t, right, 720, 1)
			within(t, left, right, 1)
		})
	}
}

func TestBoundedRotationMonitoredSide(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			ctx := context.Background()

			_, err := d.MotorsOnForDegrees(ctx, 80, 30, 300, true)
			test.That(t, err, test.ShouldBeNil)
			left, right := degrees(t, d)
			within(t, left, 300, 1)
			test.That(t, right, test.ShouldBeGreaterThan, 0)
			test.That(t, right, test.ShouldBeLessThan, left)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Held)

			test.That(t, d.RotationResetLeft(ctx), test.ShouldBeNil)
			test.That(t, d.RotationResetRight(ctx), test.ShouldBeNil)
			_, err = d.MotorsOnForDegrees(ctx, -20, -70, 300, false)
			test.That(t, err, test.ShouldBeNil)
			left, right = degrees(t, d)
			within(t, right, -300, 1)
			test.That(t, left, test.ShouldBeLessThan, 0)
			test.That(t, left, test.ShouldBeGreaterThan, right)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Floating)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Floating)
		})
	}
}

func TestBoundedRotationPivot(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			outcome, err := d.MotorsOnForRotationsDegrees(context.Background(), 65, -65, 0, 75, true)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, outcome, test.ShouldEqual, control.Reached)

			left, right := degrees(t, d)
			within(t, left, 75, 1)
			within(t, right, -75, 1)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Held)

			test.That(t, testutil.ToFloat64(d.metrics.RotationsTotal.WithLabelValues(model.String(), "reached")),
				test.ShouldEqual, 1.0)
		})
	}
}

func TestBoundedRotationCoast(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			_, err := d.MotorsOnForRotationsDegrees(context.Background(), 30, 30, 1, 0, false)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Floating)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Floating)
		})
	}
}

func TestBoundedRotationNoOps(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			ctx := context.Background()
			for _, tc := range []struct {
				powerLeft, powerRight, rotations float64
				degrees                          int
			}{
				{50, 50, 0, 0},
				{50, 50, -1, 0},
				{50, 50, 0, -90},
				{50, 50, 1, -360},
				{0, 0, 1, 0},
			} {
				outcome, err := d.MotorsOnForRotationsDegrees(ctx, tc.powerLeft, tc.powerRight, tc.rotations, tc.degrees, true)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, outcome, test.ShouldEqual, control.Reached)
			}
			test.That(t, d.left().Commands(), test.ShouldBeEmpty)
			test.That(t, d.right().Commands(), test.ShouldBeEmpty)
		})
	}
}

func TestBoundedRotationNegativeTotal(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			d := newTestDrive(t, model)
			outcome, err := d.MotorsOnForRotationsDegrees(context.Background(), 50, 50, 1, -400, true)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, outcome, test.ShouldEqual, control.Reached)

			left, right := degrees(t, d)
			within(t, left, -40, 1)
			within(t, right, -40, 1)
			test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Held)
		})
	}
}

func TestBoundedRotationPowersBelowOneDutyPercent(t *testing.T) {
	d := newTestDrive(t, motor.Unregulated)
	start := d.brick.Clock().Peek()

	outcome, err := d.MotorsOnForRotations(context.Background(), 0.4, 0.2, 1, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outcome, test.ShouldEqual, control.Reached)
	test.That(t, d.left().Commands(), test.ShouldBeEmpty)
	test.That(t, d.right().Commands(), test.ShouldBeEmpty)
	test.That(t, d.brick.Clock().Peek().Sub(start), test.ShouldBeLessThan, control.DefaultPollInterval)
}

func TestMotorsOnForSecondsCancelledOnSystemClock(t *testing.T) {
	b := fake.NewBrick()
	c, err := NewRegulatedController(
		context.Background(),
		b,
		Ports{Left: motor.PortB, Right: motor.PortC},
		Options{Clock: utils.NewClock()},
		logging.NewTestLogger(t),
	)
	test.That(t, err, test.ShouldBeNil)
	defer c.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.MotorsOnForSeconds(ctx, 50, 50, time.Hour, true)
	test.That(t, err, test.ShouldBeError, context.DeadlineExceeded)
	test.That(t, b.Motor(motor.PortB).State(), test.ShouldEqual, fake.Held)
	test.That(t, b.Motor(motor.PortC).State(), test.ShouldEqual, fake.Held)
}

func TestBoundedRotationStall(t *testing.T) {
	d := newTestDrive(t, motor.Unregulated)
	d.left().SetStalled(true)

	start := d.brick.Clock().Peek()
	outcome, err := d.MotorsOnForDegrees(context.Background(), 60, 20, 720, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outcome, test.ShouldEqual, control.Stalled)
	elapsed := d.brick.Clock().Peek().Sub(start)
	test.That(t, elapsed, test.ShouldBeGreaterThanOrEqualTo, control.DefaultStallTimeout)
	test.That(t, elapsed, test.ShouldBeLessThanOrEqualTo, control.DefaultStallTimeout+control.DefaultPollInterval)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
	test.That(t, d.right().State(), test.ShouldEqual, fake.Held)
	test.That(t, testutil.ToFloat64(d.metrics.StallsTotal), test.ShouldEqual, 1.0)
}

func TestBoundedRotationCancelled(t *testing.T) {
	d := newTestDrive(t, motor.Unregulated)
	d.brick.Escape().Set()

	outcome, err := d.MotorsOnForDegrees(context.Background(), 60, 60, 720, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outcome, test.ShouldEqual, control.Cancelled)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Floating)
	test.That(t, d.right().State(), test.ShouldEqual, fake.Floating)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.brick.Escape().Reset()
	outcome, err = d.MotorsOnForDegrees(ctx, 60, 60, 720, true)
	test.That(t, err, test.ShouldBeError, context.Canceled)
	test.That(t, outcome, test.ShouldEqual, control.Cancelled)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Held)
	test.That(t, d.right().State(), test.ShouldEqual, fake.Held)
}

func TestMeasureRotations(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t, motor.Regulated)
	_, err := d.MotorsOnForDegrees(ctx, 50, -50, 540, true)
	test.That(t, err, test.ShouldBeNil)

	rot, err := d.MeasureRotationsLeft(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot, test.ShouldAlmostEqual, 1.5)
	rot, err = d.MeasureRotationsRight(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot, test.ShouldAlmostEqual, -1.5)

	test.That(t, d.RotationResetLeft(ctx), test.ShouldBeNil)
	rot, err = d.MeasureRotationsLeft(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot, test.ShouldEqual, 0.0)
}

func TestSteeringAndTankViews(t *testing.T) {
	for _, model := range models {
		t.Run(model.String(), func(t *testing.T) {
			ctx := context.Background()
			d := newTestDrive(t, model)
			steering := NewSteering(d.Controller)

			_, err := steering.MotorsOnForDegrees(ctx, 100, 50, 180, true)
			test.That(t, err, test.ShouldBeNil)
			left, right := degrees(t, d)
			within(t, left, 180, 1)
			within(t, right, -180, 1)

			tank := steering.Tank()
			_, err = tank.MotorsOnForDegrees(ctx, 150, 150, 90, true)
			test.That(t, err, test.ShouldBeNil)
			left, right = degrees(t, d)
			within(t, left, 270, 2)
			within(t, right, -90, 2)

			// half left steering leaves the left wheel without power
			test.That(t, tank.Steering().MotorsOn(ctx, -50, 40), test.ShouldBeNil)
			test.That(t, d.right().State(), test.ShouldEqual, fake.Running)
			d.brick.Clock().Add(time.Second)
			left, right = degrees(t, d)
			within(t, left, 270, 2)
			test.That(t, right, test.ShouldBeGreaterThan, 0)
			test.That(t, steering.MotorsOff(ctx, true), test.ShouldBeNil)
		})
	}
}

func TestCloseReleasesPorts(t *testing.T) {
	ctx := context.Background()
	d := newTestDrive(t, motor.Unregulated)
	test.That(t, d.Close(ctx), test.ShouldBeNil)
	test.That(t, d.brick.InUse(motor.PortB), test.ShouldBeFalse)
	test.That(t, d.brick.InUse(motor.PortC), test.ShouldBeFalse)
	test.That(t, d.left().State(), test.ShouldEqual, fake.Held)

	_, err := d.MeasureDegreesLeft(ctx)
	test.That(t, err, test.ShouldBeError, motor.ErrClosed)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	b := fake.NewBrick()
	logger := logging.NewTestLogger(t)

	_, err := NewRegulatedController(ctx, b, Ports{Left: motor.PortA, Right: motor.PortA}, Options{Clock: b.Clock()}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot share")

	held, err := b.OpenRegulated(ctx, motor.PortD, motor.Large)
	test.That(t, err, test.ShouldBeNil)
	_, err = NewUnregulatedController(ctx, b, Ports{Left: motor.PortA, Right: motor.PortD}, unregulated.Config{},
		Options{Clock: b.Clock()}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "right motor")
	// the left motor was released again
	test.That(t, b.InUse(motor.PortA), test.ShouldBeFalse)
	test.That(t, held.Close(), test.ShouldBeNil)

	_, err = Open(ctx, b, motor.Model(7), Ports{Left: motor.PortA, Right: motor.PortB}, unregulated.Config{},
		Options{Clock: b.Clock()}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

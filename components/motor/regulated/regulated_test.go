package regulated

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/components/motor/fake"
	"github.com/ev3blocks/pblocks/logging"
)

func newTestMotor(t *testing.T, port motor.Port) (*Motor, *fake.Brick) {
	t.Helper()
	b := fake.NewBrick()
	m, err := Open(context.Background(), b, port, motor.Large, b.Clock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return m, b
}

func TestStartDirection(t *testing.T) {
	ctx := context.Background()
	m, b := newTestMotor(t, motor.PortB)
	hw := b.Motor(motor.PortB)

	test.That(t, m.Start(ctx), test.ShouldBeNil)
	test.That(t, hw.Commands(), test.ShouldBeEmpty)

	test.That(t, m.SetPower(ctx, -40), test.ShouldBeNil)
	test.That(t, m.Start(ctx), test.ShouldBeNil)
	test.That(t, hw.Commands(), test.ShouldResemble, []string{"speed 420", "backward"})

	b.Clock().Add(time.Second)
	deg, err := m.Degrees(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deg, test.ShouldEqual, -420)

	pwr, err := m.CurrentPower(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pwr, test.ShouldAlmostEqual, -40)

	test.That(t, m.Stop(ctx, false), test.ShouldBeNil)
	test.That(t, hw.State(), test.ShouldEqual, fake.Floating)
	test.That(t, m.Stop(ctx, true), test.ShouldBeNil)
	test.That(t, hw.State(), test.ShouldEqual, fake.Held)
}

func TestOnForRotationsDegrees(t *testing.T) {
	ctx := context.Background()
	m, b := newTestMotor(t, motor.PortA)
	hw := b.Motor(motor.PortA)

	test.That(t, m.OnForRotationsDegrees(ctx, 50, 1, 90, true), test.ShouldBeNil)
	deg, err := m.Degrees(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deg, test.ShouldEqual, 450)
	test.That(t, hw.State(), test.ShouldEqual, fake.Held)

	// a negative rotation runs backward whatever the power sign
	test.That(t, m.ResetRotation(ctx), test.ShouldBeNil)
	test.That(t, m.OnForDegrees(ctx, 50, -90, false), test.ShouldBeNil)
	deg, err = m.Degrees(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deg, test.ShouldEqual, -90)
	test.That(t, hw.State(), test.ShouldEqual, fake.Floating)

	test.That(t, m.ResetRotation(ctx), test.ShouldBeNil)
	test.That(t, m.OnForRotations(ctx, -30, 0.5, true), test.ShouldBeNil)
	rot, err := m.MeasureRotations(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rot, test.ShouldAlmostEqual, -0.5)

	before := len(hw.Commands())
	test.That(t, m.OnForDegrees(ctx, 0, 90, true), test.ShouldBeNil)
	test.That(t, m.OnForDegrees(ctx, 60, 0, true), test.ShouldBeNil)
	test.That(t, hw.Commands(), test.ShouldHaveLength, before)
}

// lateFailure starts the simulated rotation but reports that it failed.
type lateFailure struct {
	*fake.Motor
}

func (f lateFailure) RotateBySignedDegrees(ctx context.Context, degrees int, immediateReturn bool) error {
	if err := f.Motor.RotateBySignedDegrees(ctx, degrees, true); err != nil {
		return err
	}
	return errors.New("motor reported an overload")
}

func TestRotateFailureStopsMotor(t *testing.T) {
	ctx := context.Background()
	for _, brake := range []bool{true, false} {
		b := fake.NewBrick()
		_, err := b.OpenRegulated(ctx, motor.PortA, motor.Large)
		test.That(t, err, test.ShouldBeNil)
		hw := b.Motor(motor.PortA)
		m := New(motor.PortA, lateFailure{hw}, b.Clock(), logging.NewTestLogger(t))

		err = m.OnForDegrees(ctx, 50, 360, brake)
		test.That(t, err, test.ShouldNotBeNil)
		want := fake.Floating
		if brake {
			want = fake.Held
		}
		test.That(t, hw.State(), test.ShouldEqual, want)
	}
}

func TestOnForSeconds(t *testing.T) {
	ctx := context.Background()
	m, b := newTestMotor(t, motor.PortC)
	hw := b.Motor(motor.PortC)

	test.That(t, m.OnForSeconds(ctx, 40, 0, true), test.ShouldBeNil)
	test.That(t, hw.Commands(), test.ShouldBeEmpty)

	start := b.Clock().Peek()
	test.That(t, m.OnForSeconds(ctx, 100, 2*time.Second, true), test.ShouldBeNil)
	test.That(t, b.Clock().Peek().Sub(start), test.ShouldBeGreaterThanOrEqualTo, 2*time.Second)
	test.That(t, hw.State(), test.ShouldEqual, fake.Held)
	deg, err := m.Degrees(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deg, test.ShouldEqual, 2100)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	m, b := newTestMotor(t, motor.PortD)
	test.That(t, m.On(ctx, 20), test.ShouldBeNil)

	test.That(t, m.Close(ctx), test.ShouldBeNil)
	test.That(t, m.Close(ctx), test.ShouldBeNil)
	test.That(t, b.InUse(motor.PortD), test.ShouldBeFalse)
	test.That(t, b.Motor(motor.PortD).Commands(), test.ShouldContain, "stop")

	test.That(t, m.SetPower(ctx, 10), test.ShouldBeError, motor.ErrClosed)
	_, err := m.Degrees(ctx)
	test.That(t, err, test.ShouldBeError, motor.ErrClosed)
	test.That(t, m.Rotate(ctx, 10, false), test.ShouldBeError, motor.ErrClosed)

	// the port can be opened again once released
	_, err = Open(ctx, b, motor.PortD, motor.Large, b.Clock(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
}

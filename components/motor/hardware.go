package motor

import "context"

// Hardware is the driver of one tacho motor.
type Hardware interface {
	ReadEncoder(ctx context.Context) (int, error)
	ResetEncoder(ctx context.Context) error
	Forward(ctx context.Context) error
	Backward(ctx context.Context) error
	// Stop actively holds the current position.
	Stop(ctx context.Context) error
	// Float removes power and lets the motor coast.
	Float(ctx context.Context) error
	// Close releases the port.
	Close() error
}

// RegulatedHardware is a motor driven by a speed controller.
type RegulatedHardware interface {
	Hardware

	// SetSpeed sets the speed magnitude in degrees per second.
	SetSpeed(ctx context.Context, degreesPerSec float64) error
	// Speed returns the signed measured speed in degrees per second.
	Speed(ctx context.Context) (float64, error)
	// MaxSpeed returns the highest speed setpoint the controller accepts.
	MaxSpeed() float64
	RotateBySignedDegrees(ctx context.Context, degrees int, immediateReturn bool) error
	WaitComplete(ctx context.Context) error
}

// UnregulatedHardware is a motor driven directly by PWM.
type UnregulatedHardware interface {
	Hardware

	// SetDutyCycle sets the signed duty cycle in [-100, 100].
	SetDutyCycle(ctx context.Context, percent int) error
}

// PowerSupply reports the brick's battery voltage.
type PowerSupply interface {
	Voltage(ctx context.Context) (float64, error)
}

// A Brick hands out the motors attached to its output ports.
type Brick interface {
	OpenRegulated(ctx context.Context, port Port, t Type) (RegulatedHardware, error)
	OpenUnregulated(ctx context.Context, port Port, t Type) (UnregulatedHardware, error)
	PowerSupply() PowerSupply
}

// Package motor defines the EV3 servo motors driven by the move blocks, and the hardware
// surface a brick driver must provide for them.
package motor

import (
	"context"
	"strings"

	"github.com/ev3blocks/pblocks/utils"
)

// Port names an EV3 output port.
type Port string

// The four output ports of the brick.
const (
	PortA Port = "A"
	PortB Port = "B"
	PortC Port = "C"
	PortD Port = "D"
)

// Ports lists every output port in brick order.
var Ports = []Port{PortA, PortB, PortC, PortD}

// ParsePort parses a port name, accepting "b" as well as "B".
func ParsePort(s string) (Port, error) {
	p := Port(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range Ports {
		if p == valid {
			return p, nil
		}
	}
	return "", utils.NewUnsupportedValueError("port", s)
}

// Model selects the control strategy used by an actuator.
type Model int

const (
	// Regulated actuators take a speed setpoint and run to a position on the controller.
	Regulated Model = iota
	// Unregulated actuators take a duty cycle and are watched by a RotationMonitor.
	Unregulated
)

func (m Model) String() string {
	switch m {
	case Regulated:
		return "regulated"
	case Unregulated:
		return "unregulated"
	}
	return "unknown"
}

// ParseModel parses "regulated" or "unregulated".
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "regulated":
		return Regulated, nil
	case "unregulated":
		return Unregulated, nil
	}
	return 0, NewInvalidModelError(s)
}

// Type is the physical EV3 servo.
type Type int

const (
	// Large is the EV3 large servo motor.
	Large Type = iota
	// Medium is the EV3 medium servo motor.
	Medium
)

func (t Type) String() string {
	if t == Medium {
		return "medium"
	}
	return "large"
}

// ParseType parses "large" or "medium".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "large":
		return Large, nil
	case "medium":
		return Medium, nil
	}
	return 0, utils.NewUnsupportedValueError("motor type", s)
}

// MaxSpeedAt9V is the no-load speed, in degrees per second, the motor reaches on a 9V supply.
func (t Type) MaxSpeedAt9V() float64 {
	if t == Medium {
		return 260 * 6
	}
	return 175 * 6
}

// An Actuator is one motor of a drive.
//
// Power is a percentage in [-100, 100]; out of range values are clamped.
// Degrees is the signed tachometer count since the last reset.
type Actuator interface {
	Port() Port
	Model() Model

	// SetPower changes the power applied the next time the motor is started.
	SetPower(ctx context.Context, power float64) error
	// Start runs the motor with the last power set.
	Start(ctx context.Context) error
	// Stop halts the motor. With brake the motor holds its position, otherwise it floats.
	Stop(ctx context.Context, brake bool) error

	Degrees(ctx context.Context) (int, error)
	ResetRotation(ctx context.Context) error
	// CurrentPower reports the measured power as a percentage of the motor's maximum speed.
	CurrentPower(ctx context.Context) (float64, error)

	Close(ctx context.Context) error
}

// A Rotator is an Actuator able to run to a relative position on its own controller.
type Rotator interface {
	Actuator

	// Rotate turns the motor by degrees at the power last set, the sign of degrees giving the
	// direction. Unless immediateReturn is set, Rotate blocks until the position is reached.
	Rotate(ctx context.Context, degrees int, immediateReturn bool) error
	// WaitComplete blocks until a rotation started with immediateReturn completes.
	WaitComplete(ctx context.Context) error
}

package fake

import (
	"context"
	"sync"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/operation"
)

// DefaultVoltage is the battery voltage of a new Brick.
const DefaultVoltage = 9.0

var (
	_ motor.Brick               = (*Brick)(nil)
	_ motor.RegulatedHardware   = (*Motor)(nil)
	_ motor.UnregulatedHardware = (*Motor)(nil)
)

// Brick is a simulated EV3 brick with a motor plugged into every output port.
type Brick struct {
	mu      sync.Mutex
	clk     *SimClock
	voltage float64
	motors  map[motor.Port]*Motor
	inUse   map[motor.Port]bool
	modes   map[motor.Port]motor.Model
	escape  operation.Trigger
	supply  supply
}

// NewBrick returns a Brick running on a new SimClock.
func NewBrick() *Brick {
	return NewBrickWithClock(NewSimClock())
}

// NewBrickWithClock returns a Brick running on clk.
func NewBrickWithClock(clk *SimClock) *Brick {
	b := &Brick{
		clk:     clk,
		voltage: DefaultVoltage,
		motors:  map[motor.Port]*Motor{},
		inUse:   map[motor.Port]bool{},
		modes:   map[motor.Port]motor.Model{},
	}
	b.supply = supply{b}
	return b
}

// Clock returns the simulated clock of the brick.
func (b *Brick) Clock() *SimClock {
	return b.clk
}

// Escape returns the simulated escape button.
func (b *Brick) Escape() *operation.Trigger {
	return &b.escape
}

// OpenRegulated opens the motor on port in regulated mode.
func (b *Brick) OpenRegulated(ctx context.Context, port motor.Port, t motor.Type) (motor.RegulatedHardware, error) {
	return b.open(port, t, motor.Regulated)
}

// OpenUnregulated opens the motor on port in unregulated mode.
func (b *Brick) OpenUnregulated(ctx context.Context, port motor.Port, t motor.Type) (motor.UnregulatedHardware, error) {
	return b.open(port, t, motor.Unregulated)
}

func (b *Brick) open(port motor.Port, t motor.Type, model motor.Model) (*Motor, error) {
	if _, err := motor.ParsePort(string(port)); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse[port] {
		return nil, motor.NewPortInUseError(port)
	}
	m := newMotor(b, port, t)
	b.motors[port] = m
	b.inUse[port] = true
	b.modes[port] = model
	return m, nil
}

func (b *Brick) release(port motor.Port) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inUse, port)
}

func (b *Brick) regulated(port motor.Port) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modes[port] == motor.Regulated
}

// Motor returns the motor last opened on port, or nil.
func (b *Brick) Motor(port motor.Port) *Motor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motors[port]
}

// InUse reports whether port is held by an open motor.
func (b *Brick) InUse(port motor.Port) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inUse[port]
}

// SetVoltage changes the simulated battery voltage.
func (b *Brick) SetVoltage(volts float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voltage = volts
}

func (b *Brick) voltageValue() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voltage
}

// PowerSupply returns the simulated battery.
func (b *Brick) PowerSupply() motor.PowerSupply {
	return b.supply
}

type supply struct {
	b *Brick
}

func (s supply) Voltage(ctx context.Context) (float64, error) {
	return s.b.voltageValue(), nil
}

// Package ev3dev drives the motors and battery of an EV3 brick running ev3dev through the
// tacho-motor and power-supply sysfs classes.
package ev3dev

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/logging"
)

// Sysfs locations, relative to the class root.
const (
	DefaultRoot      = "/sys/class"
	tachoClass       = "tacho-motor"
	batteryVoltage   = "power_supply/lego-ev3-battery/voltage_now"
	defaultPollDelay = 5 * time.Millisecond
)

var driverNames = map[motor.Type]string{
	motor.Large:  "lego-ev3-l-motor",
	motor.Medium: "lego-ev3-m-motor",
}

var _ motor.Brick = (*Brick)(nil)

// Brick is an EV3 running ev3dev.
type Brick struct {
	root      string
	logger    logging.Logger
	pollDelay time.Duration

	mu    sync.Mutex
	inUse map[motor.Port]bool
}

// NewBrick returns the brick whose sysfs classes live under root, usually DefaultRoot.
func NewBrick(root string, logger logging.Logger) *Brick {
	if root == "" {
		root = DefaultRoot
	}
	return &Brick{root: root, logger: logger, pollDelay: defaultPollDelay, inUse: map[motor.Port]bool{}}
}

// OpenRegulated opens the tacho motor on port for speed-regulated commands.
func (b *Brick) OpenRegulated(ctx context.Context, port motor.Port, t motor.Type) (motor.RegulatedHardware, error) {
	return b.open(port, t, false)
}

// OpenUnregulated opens the tacho motor on port for duty-cycle commands.
func (b *Brick) OpenUnregulated(ctx context.Context, port motor.Port, t motor.Type) (motor.UnregulatedHardware, error) {
	return b.open(port, t, true)
}

// PowerSupply returns the brick battery.
func (b *Brick) PowerSupply() motor.PowerSupply {
	return battery{path: filepath.Join(b.root, batteryVoltage)}
}

func (b *Brick) open(port motor.Port, t motor.Type, direct bool) (*Tacho, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse[port] {
		return nil, motor.NewPortInUseError(port)
	}
	dir, err := b.find(port)
	if err != nil {
		return nil, err
	}
	m := &Tacho{brick: b, port: port, dir: dir, direct: direct}

	if driver, err := m.readString("driver_name"); err == nil && driver != driverNames[t] {
		b.logger.Warnw("motor type does not match the connected motor", "port", port, "want", driverNames[t], "driver", driver)
	}
	maxSpeed, err := m.readInt("max_speed")
	if err != nil {
		return nil, err
	}
	m.maxSpeed = float64(maxSpeed)
	if err := m.write("command", "reset"); err != nil {
		return nil, err
	}
	b.inUse[port] = true
	return m, nil
}

// find returns the sysfs directory of the tacho motor attached to port.
func (b *Brick) find(port motor.Port) (string, error) {
	entries, err := os.ReadDir(filepath.Join(b.root, tachoClass))
	if err != nil {
		if os.IsNotExist(err) {
			return "", motor.NewNotConnectedError(port)
		}
		return "", err
	}
	suffix := "out" + string(port)
	for _, e := range entries {
		dir := filepath.Join(b.root, tachoClass, e.Name())
		addr, err := os.ReadFile(filepath.Join(dir, "address"))
		if err != nil {
			continue
		}
		if strings.HasSuffix(strings.TrimSpace(string(addr)), suffix) {
			return dir, nil
		}
	}
	return "", motor.NewNotConnectedError(port)
}

func (b *Brick) release(port motor.Port) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inUse, port)
}

type battery struct {
	path string
}

// Voltage returns the battery voltage in volts.
func (bat battery) Voltage(ctx context.Context) (float64, error) {
	raw, err := os.ReadFile(bat.path)
	if err != nil {
		return 0, err
	}
	microvolts, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse %s", bat.path)
	}
	return float64(microvolts) / 1e6, nil
}

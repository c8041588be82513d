//go:build !linux

package ev3dev

import (
	"github.com/pkg/errors"

	"github.com/ev3blocks/pblocks/logging"
)

// DefaultButtonDevice is the input device of the brick buttons.
const DefaultButtonDevice = "/dev/input/by-path/platform-gpio_keys-event"

// BackButton reports whether the escape button of the brick is held down.
type BackButton struct{}

// OpenBackButton is only supported on linux.
func OpenBackButton(device string, logger logging.Logger) (*BackButton, error) {
	return nil, errors.New("the brick buttons are only available on linux")
}

// Requested always returns false.
func (b *BackButton) Requested() bool {
	return false
}

// Close does nothing.
func (b *BackButton) Close() error {
	return nil
}

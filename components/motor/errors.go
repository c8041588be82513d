package motor

import "github.com/pkg/errors"

// ErrClosed is returned by every operation on a closed motor.
var ErrClosed = errors.New("motor is closed")

// NewPortInUseError returns an error for a port already opened by another motor.
func NewPortInUseError(port Port) error {
	return errors.Errorf("output port %s is already in use", port)
}

// NewInvalidModelError returns an error for an unknown motor model.
func NewInvalidModelError(model string) error {
	return errors.Errorf("invalid motor model %q, want regulated or unregulated", model)
}

// NewNotConnectedError returns an error for a port with no motor attached.
func NewNotConnectedError(port Port) error {
	return errors.Errorf("no motor connected to output port %s", port)
}

package utils

import (
	"github.com/pkg/errors"
)

// NewUnsupportedValueError is used when a discrete setting (a port or model name) has no meaning.
func NewUnsupportedValueError(field, value string) error {
	return errors.Errorf("unsupported %s %q", field, value)
}

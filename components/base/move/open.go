package move

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/components/motor/regulated"
	"github.com/ev3blocks/pblocks/components/motor/unregulated"
	"github.com/ev3blocks/pblocks/logging"
)

// Ports names the motors of a drive.
type Ports struct {
	Left  motor.Port
	Right motor.Port
	Type  motor.Type
}

func (p Ports) validate() error {
	if p.Left == p.Right {
		return errors.Errorf("left and right motors cannot share output port %s", p.Left)
	}
	return nil
}

// NewRegulatedController opens two regulated motors on brick.
func NewRegulatedController(
	ctx context.Context,
	brick motor.Brick,
	ports Ports,
	opts Options,
	logger logging.Logger,
) (*Controller[*regulated.Motor], error) {
	if err := ports.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	left, err := regulated.Open(ctx, brick, ports.Left, ports.Type, opts.Clock, logger.Sublogger("left"))
	if err != nil {
		return nil, errors.Wrap(err, "cannot open left motor")
	}
	right, err := regulated.Open(ctx, brick, ports.Right, ports.Type, opts.Clock, logger.Sublogger("right"))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot open right motor"), left.Close(ctx))
	}
	return NewController(left, right, opts, logger), nil
}

// NewUnregulatedController opens two unregulated motors on brick. Both motors share the
// monitor timings and cancel signal of opts.
func NewUnregulatedController(
	ctx context.Context,
	brick motor.Brick,
	ports Ports,
	cfg unregulated.Config,
	opts Options,
	logger logging.Logger,
) (*Controller[*unregulated.Motor], error) {
	if err := ports.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	cfg.Type = ports.Type
	cfg.Monitor = opts.Monitor
	left, err := unregulated.Open(ctx, brick, ports.Left, cfg, opts.Clock, opts.Cancel, logger.Sublogger("left"))
	if err != nil {
		return nil, errors.Wrap(err, "cannot open left motor")
	}
	right, err := unregulated.Open(ctx, brick, ports.Right, cfg, opts.Clock, opts.Cancel, logger.Sublogger("right"))
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot open right motor"), left.Close(ctx))
	}
	return NewController(left, right, opts, logger), nil
}

// Open opens a drive whose motor model is chosen at run time.
func Open(
	ctx context.Context,
	brick motor.Brick,
	model motor.Model,
	ports Ports,
	cfg unregulated.Config,
	opts Options,
	logger logging.Logger,
) (*Controller[motor.Actuator], error) {
	opts = opts.withDefaults()
	switch model {
	case motor.Regulated:
		c, err := NewRegulatedController(ctx, brick, ports, opts, logger)
		if err != nil {
			return nil, err
		}
		return NewController[motor.Actuator](c.Left(), c.Right(), opts, logger), nil
	case motor.Unregulated:
		c, err := NewUnregulatedController(ctx, brick, ports, cfg, opts, logger)
		if err != nil {
			return nil, err
		}
		return NewController[motor.Actuator](c.Left(), c.Right(), opts, logger), nil
	}
	return nil, motor.NewInvalidModelError(model.String())
}

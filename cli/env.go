package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/ev3blocks/pblocks/components/board/ev3dev"
	"github.com/ev3blocks/pblocks/components/base/move"
	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/components/motor/fake"
	"github.com/ev3blocks/pblocks/components/motor/regulated"
	"github.com/ev3blocks/pblocks/components/motor/unregulated"
	"github.com/ev3blocks/pblocks/config"
	"github.com/ev3blocks/pblocks/control"
	"github.com/ev3blocks/pblocks/logging"
	"github.com/ev3blocks/pblocks/observability"
	"github.com/ev3blocks/pblocks/operation"
	rutils "github.com/ev3blocks/pblocks/utils"
)

// environment holds what every command needs: the configuration, a logger and the brick.
type environment struct {
	cfg     *config.Drive
	logger  logging.Logger
	out     io.Writer
	brick   motor.Brick
	clk     rutils.Clock
	escape  operation.Signal
	metrics *observability.DriveCollector
	closers []io.Closer
}

func newEnvironment(c *cli.Context, out io.Writer) (*environment, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	if c.Bool(flagSim) {
		cfg.Simulate = true
	}
	if addr := c.String(flagMetricsAddr); addr != "" {
		cfg.MetricsAddr = addr
	}

	env := &environment{cfg: cfg, out: out}
	switch {
	case c.Bool(flagDebug):
		env.logger = logging.NewDebugLogger("ev3drive")
	case cfg.LogFile != "":
		logger, file := logging.NewFileLogger("ev3drive", cfg.LogFile, cfg.Level())
		env.logger = logger
		env.closers = append(env.closers, file)
	default:
		env.logger = logging.NewLogger("ev3drive")
		env.logger.SetLevel(cfg.Level())
	}
	logging.ReplaceGlobal(env.logger)

	if cfg.Simulate {
		b := fake.NewBrick()
		env.brick, env.clk, env.escape = b, b.Clock(), b.Escape()
		env.logger.Info("driving a simulated brick")
	} else {
		env.brick = ev3dev.NewBrick(cfg.SysfsRoot, env.logger.Sublogger("ev3dev"))
		env.clk = rutils.NewClock()
		env.escape = operation.Never
		button, err := ev3dev.OpenBackButton("", env.logger)
		if err != nil {
			env.logger.Debugw("escape button unavailable", "error", err)
		} else {
			env.escape = button
			env.closers = append(env.closers, button)
		}
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewDriveCollector(reg)
		if err != nil {
			return nil, multierr.Combine(err, env.Close())
		}
		env.metrics = metrics
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		env.closers = append(env.closers, server)
		utils.PanicCapturingGo(func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				env.logger.Errorw("metrics server failed", "error", err)
			}
		})
	}
	return env, nil
}

// Close releases the resources of the environment.
func (env *environment) Close() error {
	var err error
	for i := len(env.closers) - 1; i >= 0; i-- {
		err = multierr.Combine(err, env.closers[i].Close())
	}
	env.closers = nil
	return err
}

func (env *environment) options() move.Options {
	return move.Options{
		Clock:   env.clk,
		Monitor: env.cfg.Monitor(),
		Cancel:  env.escape,
		Metrics: env.metrics,
	}
}

func (env *environment) unregulatedConfig() unregulated.Config {
	return unregulated.Config{
		Type:        env.cfg.Type(),
		SpeedSample: env.cfg.SpeedSample(),
		Monitor:     env.cfg.Monitor(),
	}
}

func (env *environment) openDrive(ctx context.Context) (*move.Controller[motor.Actuator], error) {
	return move.Open(
		ctx,
		env.brick,
		env.cfg.MotorModel(),
		move.Ports{Left: env.cfg.LeftPort(), Right: env.cfg.RightPort(), Type: env.cfg.Type()},
		env.unregulatedConfig(),
		env.options(),
		env.logger.Sublogger("drive"),
	)
}

// run describes how long a command drives.
type run struct {
	period    time.Duration
	rotations float64
	degrees   int
	brake     bool
}

func runFromFlags(c *cli.Context) (run, error) {
	r := run{
		period:    time.Duration(c.Float64(flagSeconds) * float64(time.Second)),
		rotations: c.Float64(flagRotations),
		degrees:   c.Int(flagDegrees),
		brake:     !c.Bool(flagCoast),
	}
	if c.IsSet(flagSeconds) && (c.IsSet(flagRotations) || c.IsSet(flagDegrees)) {
		return r, errors.Errorf("--%s cannot be combined with --%s or --%s", flagSeconds, flagRotations, flagDegrees)
	}
	return r, nil
}

func (r run) timed(c *cli.Context) bool {
	return c.IsSet(flagSeconds)
}

func (r run) bounded(c *cli.Context) bool {
	return c.IsSet(flagRotations) || c.IsSet(flagDegrees)
}

// drive is the part of the steering and tank views used by the commands.
type drive interface {
	MotorsOn(ctx context.Context, a, b float64) error
	MotorsOnForSeconds(ctx context.Context, a, b float64, period time.Duration, brake bool) error
	MotorsOnForRotationsDegrees(ctx context.Context, a, b, rotations float64, degrees int, brake bool) (control.Outcome, error)
}

func (env *environment) runDrive(c *cli.Context, view func(*move.Controller[motor.Actuator]) drive, a, b float64) error {
	r, err := runFromFlags(c)
	if err != nil {
		return err
	}
	ctrl, err := env.openDrive(c.Context)
	if err != nil {
		return err
	}
	d := view(ctrl)

	outcome := control.Reached
	switch {
	case r.timed(c):
		err = d.MotorsOnForSeconds(c.Context, a, b, r.period, r.brake)
	case r.bounded(c):
		outcome, err = d.MotorsOnForRotationsDegrees(c.Context, a, b, r.rotations, r.degrees, r.brake)
	default:
		// leave the motors running, the brick keeps them powered after exit
		return d.MotorsOn(c.Context, a, b)
	}
	if err != nil {
		return multierr.Combine(err, ctrl.Close(context.WithoutCancel(c.Context)))
	}
	if err := env.report(c.Context, ctrl, outcome); err != nil {
		return err
	}
	return ctrl.Close(c.Context)
}

func (env *environment) steer(c *cli.Context) error {
	return env.runDrive(c, func(ctrl *move.Controller[motor.Actuator]) drive {
		return move.NewSteering(ctrl)
	}, c.Float64(flagSteering), c.Float64(flagPower))
}

func (env *environment) tank(c *cli.Context) error {
	return env.runDrive(c, func(ctrl *move.Controller[motor.Actuator]) drive {
		return move.NewTank(ctrl)
	}, c.Float64(flagLeft), c.Float64(flagRight))
}

func (env *environment) report(ctx context.Context, ctrl *move.Controller[motor.Actuator], outcome control.Outcome) error {
	left, err := ctrl.MeasureDegreesLeft(ctx)
	if err != nil {
		return err
	}
	right, err := ctrl.MeasureDegreesRight(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(env.out, "left=%d right=%d outcome=%s\n", left, right, outcome)
	return err
}

func (env *environment) single(c *cli.Context) error {
	r, err := runFromFlags(c)
	if err != nil {
		return err
	}
	port, err := motor.ParsePort(c.String(flagPort))
	if err != nil {
		return err
	}
	ctx := c.Context
	power := c.Float64(flagPower)
	logger := env.logger.Sublogger(string(port))

	outcome := control.Reached
	var m motor.Actuator
	switch env.cfg.MotorModel() {
	case motor.Regulated:
		rm, err := regulated.Open(ctx, env.brick, port, env.cfg.Type(), env.clk, logger)
		if err != nil {
			return err
		}
		m = rm
		switch {
		case r.timed(c):
			err = rm.OnForSeconds(ctx, power, r.period, r.brake)
		case r.bounded(c):
			err = rm.OnForRotationsDegrees(ctx, power, r.rotations, r.degrees, r.brake)
		default:
			return rm.On(ctx, power)
		}
		if err != nil {
			return multierr.Combine(err, m.Close(context.WithoutCancel(ctx)))
		}
	default:
		um, err := unregulated.Open(ctx, env.brick, port, env.unregulatedConfig(), env.clk, env.escape, logger)
		if err != nil {
			return err
		}
		m = um
		switch {
		case r.timed(c):
			err = um.OnForSeconds(ctx, power, r.period, r.brake)
		case r.bounded(c):
			outcome, err = um.OnForRotationsDegrees(ctx, power, r.rotations, r.degrees, r.brake)
		default:
			return um.On(ctx, power)
		}
		if err != nil {
			return multierr.Combine(err, m.Close(context.WithoutCancel(ctx)))
		}
	}

	deg, err := m.Degrees(ctx)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(env.out, "%s=%d outcome=%s\n", port, deg, outcome); err != nil {
		return err
	}
	return m.Close(ctx)
}

func (env *environment) measure(c *cli.Context) error {
	ctx := c.Context
	ctrl, err := env.openDrive(ctx)
	if err != nil {
		return err
	}
	var lines []string
	for _, side := range []struct {
		name    string
		degrees func(context.Context) (int, error)
		power   func(context.Context) (float64, error)
	}{
		{"left", ctrl.MeasureDegreesLeft, ctrl.MeasureCurrentPowerLeft},
		{"right", ctrl.MeasureDegreesRight, ctrl.MeasureCurrentPowerRight},
	} {
		deg, err := side.degrees(ctx)
		if err != nil {
			return err
		}
		pwr, err := side.power(ctx)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s degrees=%d rotations=%.3f power=%.1f", side.name, deg, float64(deg)/360, pwr))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(env.out, l); err != nil {
			return err
		}
	}
	return nil
}

func (env *environment) off(c *cli.Context) error {
	ctrl, err := env.openDrive(c.Context)
	if err != nil {
		return err
	}
	return multierr.Combine(
		ctrl.MotorsOff(c.Context, !c.Bool(flagCoast)),
		ctrl.Close(c.Context),
	)
}

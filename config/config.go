// Package config reads the drive configuration of the ev3drive command.
package config

import (
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"

	"github.com/ev3blocks/pblocks/components/motor"
	"github.com/ev3blocks/pblocks/control"
	"github.com/ev3blocks/pblocks/logging"
)

// Defaults of the optional fields.
const (
	DefaultLeft           = "B"
	DefaultRight          = "C"
	DefaultStallTimeoutMs = 500
	DefaultPollIntervalMs = 1
	DefaultSpeedSampleMs  = 99
	DefaultSysfsRoot      = "/sys/class"
)

// Drive describes the two motors of a drive and how to run them.
type Drive struct {
	Left           string `json:"left"`
	Right          string `json:"right"`
	Model          string `json:"model"`
	MotorType      string `json:"motor_type"`
	StallTimeoutMs int    `json:"stall_timeout_ms"`
	PollIntervalMs int    `json:"poll_interval_ms"`
	SpeedSampleMs  int    `json:"speed_sample_ms"`
	LogLevel       string `json:"log_level"`
	LogFile        string `json:"log_file"`
	MetricsAddr    string `json:"metrics_addr"`
	Simulate       bool   `json:"simulate"`
	SysfsRoot      string `json:"sysfs_root"`
}

// Default returns the configuration used when no file is given.
func Default() *Drive {
	d := &Drive{}
	d.ApplyDefaults()
	return d
}

// Read reads a drive configuration from a JSON5 file. Environment variables in the file are
// expanded first.
func Read(filePath string) (*Drive, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromBytes(buf)
}

// FromBytes decodes a JSON5 drive configuration, applies defaults and validates it.
func FromBytes(buf []byte) (*Drive, error) {
	var attrs map[string]interface{}
	if err := json5.Unmarshal(buf, &attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode drive config")
	}

	var conf Drive
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &conf, ErrorUnused: true})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "invalid drive config")
	}
	conf.ApplyDefaults()
	if err := conf.Validate("drive"); err != nil {
		return nil, err
	}
	return &conf, nil
}

// ApplyDefaults fills every unset optional field.
func (d *Drive) ApplyDefaults() {
	if d.Left == "" {
		d.Left = DefaultLeft
	}
	if d.Right == "" {
		d.Right = DefaultRight
	}
	if d.Model == "" {
		d.Model = motor.Regulated.String()
	}
	if d.MotorType == "" {
		d.MotorType = motor.Large.String()
	}
	if d.StallTimeoutMs == 0 {
		d.StallTimeoutMs = DefaultStallTimeoutMs
	}
	if d.PollIntervalMs == 0 {
		d.PollIntervalMs = DefaultPollIntervalMs
	}
	if d.SpeedSampleMs == 0 {
		d.SpeedSampleMs = DefaultSpeedSampleMs
	}
	if d.LogLevel == "" {
		d.LogLevel = "info"
	}
	if d.SysfsRoot == "" {
		d.SysfsRoot = DefaultSysfsRoot
	}
}

// Validate ensures all parts of the config are valid.
func (d *Drive) Validate(path string) error {
	if d.Left == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "left")
	}
	if d.Right == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "right")
	}
	left, err := motor.ParsePort(d.Left)
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	right, err := motor.ParsePort(d.Right)
	if err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if left == right {
		return utils.NewConfigValidationError(path, errors.Errorf("left and right must be different ports, both are %s", left))
	}
	if _, err := motor.ParseModel(d.Model); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := motor.ParseType(d.MotorType); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if d.StallTimeoutMs < 0 || d.PollIntervalMs < 0 || d.SpeedSampleMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("timings cannot be negative"))
	}
	if _, err := logging.LevelFromString(d.LogLevel); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// LeftPort returns the parsed left port. The config must be valid.
func (d *Drive) LeftPort() motor.Port {
	p, _ := motor.ParsePort(d.Left)
	return p
}

// RightPort returns the parsed right port. The config must be valid.
func (d *Drive) RightPort() motor.Port {
	p, _ := motor.ParsePort(d.Right)
	return p
}

// MotorModel returns the parsed motor model. The config must be valid.
func (d *Drive) MotorModel() motor.Model {
	m, _ := motor.ParseModel(d.Model)
	return m
}

// Type returns the parsed motor type. The config must be valid.
func (d *Drive) Type() motor.Type {
	t, _ := motor.ParseType(d.MotorType)
	return t
}

// Level returns the parsed log level. The config must be valid.
func (d *Drive) Level() logging.Level {
	l, err := logging.LevelFromString(d.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return l
}

// Monitor returns the rotation monitor timings.
func (d *Drive) Monitor() control.MonitorConfig {
	cfg := control.DefaultMonitorConfig()
	cfg.StallTimeout = time.Duration(d.StallTimeoutMs) * time.Millisecond
	cfg.PollInterval = time.Duration(d.PollIntervalMs) * time.Millisecond
	return cfg
}

// SpeedSample returns the window over which unregulated motors measure their speed.
func (d *Drive) SpeedSample() time.Duration {
	return time.Duration(d.SpeedSampleMs) * time.Millisecond
}

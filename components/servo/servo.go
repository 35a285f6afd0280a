// Package servo implements servos driven through analog outputs. Every movement is an
// actuation task, optionally delayed.
package servo

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/gpioheader/actuation"
	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

// A Config describes a servo on a single analog output.
type Config struct {
	Name               string `json:"name"`
	Pin                int    `json:"pin"`
	Min                *int   `json:"min,omitempty"`
	Max                *int   `json:"max,omitempty"`
	ExtendedResolution bool   `json:"extended_resolution,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Pin == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	if err := registry.CheckConfigurable(conf.Pin); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	if _, err := conf.analogConfig().Range(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

func (conf *Config) analogConfig() pins.AnalogConfig {
	return pins.AnalogConfig{
		Name:               conf.Name,
		Min:                conf.Min,
		Max:                conf.Max,
		ExtendedResolution: conf.ExtendedResolution,
	}
}

// A Servo schedules raise, lower and set tasks against its targets. All targets of one call are
// driven in order by the same task.
type Servo struct {
	sched   *actuation.Scheduler
	targets []actuation.Actuator

	// set when the servo built its own scheduler and pin
	ownsScheduler bool
	pin           *pins.AnalogOutput
}

// NewRaw builds a servo on one analog output claimed from reg. The servo owns the pin and a
// scheduler driven by clk.
func NewRaw(
	ctx context.Context,
	hw hardware.Context,
	reg *registry.Registry,
	clk clock.Clock,
	conf Config,
	logger logging.Logger,
) (*Servo, error) {
	pin, err := pins.NewAnalogOutput(ctx, hw, reg, header.Lookup(conf.Pin), conf.analogConfig(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create servo")
	}
	logger.Infow("servo created", "name", conf.Name, "pin", conf.Pin, "range", pin.Range().String())
	s := New(actuation.NewScheduler(clk, logger), pin)
	s.ownsScheduler = true
	s.pin = pin
	return s, nil
}

// New composes a servo from any actuators sharing sched. Closing the servo leaves sched and the
// targets open.
func New(sched *actuation.Scheduler, targets ...actuation.Actuator) *Servo {
	return &Servo{sched: sched, targets: targets}
}

// Pin returns the analog output of a servo built with NewRaw, or nil.
func (s *Servo) Pin() *pins.AnalogOutput {
	return s.pin
}

// Raise drives every target to its maximum after req.Delay.
func (s *Servo) Raise(req actuation.Request) (*actuation.Task, error) {
	return s.sched.Raise(s.targets, req)
}

// Lower drives every target to its minimum after req.Delay.
func (s *Servo) Lower(req actuation.Request) (*actuation.Task, error) {
	return s.sched.Lower(s.targets, req)
}

// Set drives every target to value after req.Delay.
func (s *Servo) Set(value float64, req actuation.Request) (*actuation.Task, error) {
	return s.sched.SetTo(value, s.targets, req)
}

// Close cancels pending movements, waits for running ones and closes the pin of a NewRaw
// servo.
func (s *Servo) Close(ctx context.Context) error {
	var err error
	if s.ownsScheduler {
		s.sched.Close()
	}
	if s.pin != nil {
		err = multierr.Combine(err, s.pin.Close(ctx))
	}
	return err
}

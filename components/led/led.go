// Package led implements an LED on a digital output.
package led

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

// A Config describes an LED.
type Config struct {
	Name      string `json:"name"`
	Pin       int    `json:"pin"`
	LatchedOn bool   `json:"latched_on,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Pin == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	if err := registry.CheckConfigurable(conf.Pin); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// An LED switches a digital output. A latched LED stays on.
type LED struct {
	name   string
	pin    *pins.DigitalOutput
	logger logging.Logger

	mu      sync.Mutex
	blinker *goutils.StoppableWorkers
}

// New claims the configured pin from reg and opens it as a digital output.
func New(ctx context.Context, hw hardware.Context, reg *registry.Registry, conf Config, logger logging.Logger) (*LED, error) {
	pin, err := pins.NewDigitalOutput(ctx, hw, reg, header.Lookup(conf.Pin),
		pins.DigitalOutputConfig{Name: conf.Name, LatchedOn: conf.LatchedOn}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't create led")
	}
	return &LED{name: conf.Name, pin: pin, logger: logger}, nil
}

// Pin returns the LED's output.
func (l *LED) Pin() *pins.DigitalOutput {
	return l.pin
}

// On turns the LED on.
func (l *LED) On(ctx context.Context) error {
	return l.pin.On(ctx)
}

// Off turns the LED off.
func (l *LED) Off(ctx context.Context) error {
	return l.pin.Off(ctx)
}

// IsOn reports whether the LED is on.
func (l *LED) IsOn(ctx context.Context) (bool, error) {
	return l.pin.IsOn(ctx)
}

// IsOff reports whether the LED is off.
func (l *LED) IsOff(ctx context.Context) (bool, error) {
	return l.pin.IsOff(ctx)
}

// Toggle flips the LED and returns whether it is now on.
func (l *LED) Toggle(ctx context.Context) (bool, error) {
	on, err := l.IsOn(ctx)
	if err != nil {
		return false, err
	}
	if on {
		err = l.Off(ctx)
	} else {
		err = l.On(ctx)
	}
	if err != nil {
		return false, err
	}
	return l.IsOn(ctx)
}

// Blink toggles the LED every interval in the background until BlinkOff or Close. Calling Blink
// again replaces the running cycle.
func (l *LED) Blink(interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("blink interval must be positive, got %s", interval)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopBlinkingLocked()
	l.blinker = goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		for {
			if _, err := l.Toggle(ctx); err != nil {
				l.logger.Warnw("blink stopped", "led", l.name, "error", err)
				return
			}
			if !goutils.SelectContextOrWait(ctx, interval) {
				return
			}
		}
	})
	l.logger.Debugw("blinking", "led", l.name, "interval", interval)
	return nil
}

// BlinkOff stops blinking and turns the LED off.
func (l *LED) BlinkOff(ctx context.Context) error {
	l.mu.Lock()
	l.stopBlinkingLocked()
	l.mu.Unlock()
	return l.Off(ctx)
}

func (l *LED) stopBlinkingLocked() {
	if l.blinker != nil {
		l.blinker.Stop()
		l.blinker = nil
	}
}

// Pulse turns the LED on for duration, then off. It blocks until the LED is off or ctx ends; the
// LED is turned off either way.
func (l *LED) Pulse(ctx context.Context, duration time.Duration) error {
	if err := l.On(ctx); err != nil {
		return err
	}
	goutils.SelectContextOrWait(ctx, duration)
	return l.Off(context.Background())
}

// Close stops blinking, turns the LED off and releases the pin.
func (l *LED) Close(ctx context.Context) error {
	l.mu.Lock()
	l.stopBlinkingLocked()
	l.mu.Unlock()
	return multierr.Combine(l.Off(ctx), l.pin.Close(ctx))
}

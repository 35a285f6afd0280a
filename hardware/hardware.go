// Package hardware defines the capability interfaces through which pins reach the physical
// header. A Context is addressed by header slot number; how a voltage actually changes is up to
// the backend.
package hardware

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// ErrUnavailable marks a failure of the hardware collaborator itself, such as a context that has
// shut down or a channel that could not be opened.
var ErrUnavailable = errors.New("hardware unavailable")

// An AnalogChannelConfig addresses one analog channel.
type AnalogChannelConfig struct {
	// Address is the header slot number.
	Address int
	// BCM is the Broadcom line offset of the slot.
	BCM  int
	Name string
	Min  int
	Max     int
	// FullScale is the largest raw value the channel can represent, 1023 or 4095.
	FullScale int
}

// A DigitalChannelConfig addresses one digital channel.
type DigitalChannelConfig struct {
	Address int
	// BCM is the Broadcom line offset of the slot.
	BCM  int
	Name string
	Pull gpio.Pull
}

// A Context hands out channels on the header.
type Context interface {
	OpenAnalogInput(ctx context.Context, conf AnalogChannelConfig) (AnalogInput, error)
	OpenAnalogOutput(ctx context.Context, conf AnalogChannelConfig) (AnalogOutput, error)
	OpenDigitalInput(ctx context.Context, conf DigitalChannelConfig) (DigitalInput, error)
	OpenDigitalOutput(ctx context.Context, conf DigitalChannelConfig) (DigitalOutput, error)
	// Close shuts the context down. Channels still open fail with ErrUnavailable afterwards.
	Close(ctx context.Context) error
}

// An AnalogInput samples a raw value.
type AnalogInput interface {
	Value(ctx context.Context) (float64, error)
	Close(ctx context.Context) error
}

// An AnalogOutput drives a raw value.
type AnalogOutput interface {
	// Value returns the last value written.
	Value(ctx context.Context) (float64, error)
	SetValue(ctx context.Context, value float64) error
	Close(ctx context.Context) error
}

// A DigitalInput reads a level.
type DigitalInput interface {
	Read(ctx context.Context) (gpio.Level, error)
	Pull() gpio.Pull
	Close(ctx context.Context) error
}

// A DigitalOutput drives a level.
type DigitalOutput interface {
	// Read returns the level currently on the line.
	Read(ctx context.Context) (gpio.Level, error)
	Out(ctx context.Context, level gpio.Level) error
	Close(ctx context.Context) error
}

// Unavailable wraps err as ErrUnavailable, keeping err's message.
func Unavailable(err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.WithMessagef(ErrUnavailable, format, args...)
	}
	return errors.Wrapf(&unavailableError{cause: err}, format, args...)
}

type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return e.cause.Error()
}

func (e *unavailableError) Unwrap() error {
	return e.cause
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

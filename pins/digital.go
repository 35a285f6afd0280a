package pins

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/registry"
)

// A DigitalInput reads a binary level.
type DigitalInput struct {
	*Handle
	in hardware.DigitalInput
}

// NewDigitalInput claims slot and opens it as an input.
func NewDigitalInput(
	ctx context.Context,
	hw hardware.Context,
	reg *registry.Registry,
	slot header.Slot,
	conf DigitalInputConfig,
	logger logging.Logger,
) (*DigitalInput, error) {
	pin := &DigitalInput{}
	h, err := openHandle(reg, slot, DigitalIn, logger, nil, func() (channel, error) {
		in, err := hw.OpenDigitalInput(ctx, hardware.DigitalChannelConfig{
			Address: slot.Number,
			BCM:     slot.BCM,
			Name:    conf.Name,
			Pull:    conf.Pull,
		})
		if err != nil {
			return nil, openError(err, slot)
		}
		pin.in = in
		return in, nil
	})
	if err != nil {
		return nil, err
	}
	pin.Handle = h
	return pin, nil
}

// Read returns the level on the line.
func (pin *DigitalInput) Read(ctx context.Context) (gpio.Level, error) {
	level, err := pin.in.Read(ctx)
	if err != nil {
		return gpio.Low, errors.Wrapf(err, "cannot read pin %d", pin.Slot().Number)
	}
	return level, nil
}

// ReadInt returns 1 for high and 0 for low.
func (pin *DigitalInput) ReadInt(ctx context.Context) (int, error) {
	level, err := pin.Read(ctx)
	if err != nil || !level {
		return 0, err
	}
	return 1, nil
}

// IsHigh reports whether the line is high.
func (pin *DigitalInput) IsHigh(ctx context.Context) (bool, error) {
	level, err := pin.Read(ctx)
	return level == gpio.High, err
}

// IsLow reports whether the line is low.
func (pin *DigitalInput) IsLow(ctx context.Context) (bool, error) {
	level, err := pin.Read(ctx)
	return err == nil && level == gpio.Low, err
}

// IsOn is IsHigh.
func (pin *DigitalInput) IsOn(ctx context.Context) (bool, error) {
	return pin.IsHigh(ctx)
}

// IsOff is IsLow.
func (pin *DigitalInput) IsOff(ctx context.Context) (bool, error) {
	return pin.IsLow(ctx)
}

// Pull is the pull resistance the input was opened with.
func (pin *DigitalInput) Pull() gpio.Pull {
	return pin.in.Pull()
}

// A DigitalOutput drives a binary level. A latched output never goes low again.
type DigitalOutput struct {
	*Handle
	out     hardware.DigitalOutput
	latched bool
}

// NewDigitalOutput claims slot and opens it as an output. A latched-on output is driven high
// before it is returned.
func NewDigitalOutput(
	ctx context.Context,
	hw hardware.Context,
	reg *registry.Registry,
	slot header.Slot,
	conf DigitalOutputConfig,
	logger logging.Logger,
) (*DigitalOutput, error) {
	pin := &DigitalOutput{latched: conf.LatchedOn}
	h, err := openHandle(reg, slot, DigitalOut, logger, nil, func() (channel, error) {
		out, err := hw.OpenDigitalOutput(ctx, hardware.DigitalChannelConfig{
			Address: slot.Number,
			BCM:     slot.BCM,
			Name:    conf.Name,
		})
		if err != nil {
			return nil, openError(err, slot)
		}
		pin.out = out
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	pin.Handle = h

	if pin.latched {
		if err := pin.write(ctx, gpio.High); err != nil {
			return nil, multierr.Combine(err, pin.Close(ctx))
		}
		logger.Debugw("pin latched on", "pin", slot.Number)
	}
	return pin, nil
}

// Latched reports whether the output is latched on.
func (pin *DigitalOutput) Latched() bool {
	return pin.latched
}

// On drives the line high.
func (pin *DigitalOutput) On(ctx context.Context) error {
	return pin.write(ctx, gpio.High)
}

// Off drives the line low. It is a no-op on a latched output.
func (pin *DigitalOutput) Off(ctx context.Context) error {
	if pin.latched {
		return nil
	}
	return pin.write(ctx, gpio.Low)
}

// Set drives the line to level. Driving a latched output low is a no-op.
func (pin *DigitalOutput) Set(ctx context.Context, level gpio.Level) error {
	if level {
		return pin.On(ctx)
	}
	return pin.Off(ctx)
}

// SetValue drives the line high for positive values and low otherwise.
func (pin *DigitalOutput) SetValue(ctx context.Context, value float64) error {
	return pin.Set(ctx, value > 0)
}

// State returns the level on the line.
func (pin *DigitalOutput) State(ctx context.Context) (gpio.Level, error) {
	level, err := pin.out.Read(ctx)
	if err != nil {
		return gpio.Low, errors.Wrapf(err, "cannot read pin %d", pin.Slot().Number)
	}
	return level, nil
}

// IsHigh reports whether the line is high.
func (pin *DigitalOutput) IsHigh(ctx context.Context) (bool, error) {
	level, err := pin.State(ctx)
	return level == gpio.High, err
}

// IsLow reports whether the line is low.
func (pin *DigitalOutput) IsLow(ctx context.Context) (bool, error) {
	level, err := pin.State(ctx)
	return err == nil && level == gpio.Low, err
}

// IsOn is IsHigh.
func (pin *DigitalOutput) IsOn(ctx context.Context) (bool, error) {
	return pin.IsHigh(ctx)
}

// IsOff is IsLow.
func (pin *DigitalOutput) IsOff(ctx context.Context) (bool, error) {
	return pin.IsLow(ctx)
}

func (pin *DigitalOutput) write(ctx context.Context, level gpio.Level) error {
	if err := pin.out.Out(ctx, level); err != nil {
		return errors.Wrapf(err, "cannot drive pin %d %s", pin.Slot().Number, level.String())
	}
	pin.logger.CDebugw(ctx, "pin driven", "pin", pin.Slot().Number, "level", level.String())
	return nil
}

package pins

import (
	"context"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/registry"
)

// An AnalogInput samples a hardware channel and clamps every sample into its range.
type AnalogInput struct {
	*Handle
	rng Range
	in  hardware.AnalogInput
}

// NewAnalogInput claims slot, validates the configured range and opens the input channel.
func NewAnalogInput(
	ctx context.Context,
	hw hardware.Context,
	reg *registry.Registry,
	slot header.Slot,
	conf AnalogConfig,
	logger logging.Logger,
) (*AnalogInput, error) {
	pin := &AnalogInput{}
	h, err := openHandle(reg, slot, AnalogIn, logger,
		func() (err error) {
			pin.rng, err = conf.Range()
			return errors.WithMessagef(err, "pin %d", slot.Number)
		},
		func() (channel, error) {
			in, err := hw.OpenAnalogInput(ctx, channelConfig(slot, conf.Name, pin.rng))
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

// Range returns the validated bounds.
func (pin *AnalogInput) Range() Range {
	return pin.rng
}

// Read returns the latest hardware sample clamped into range.
func (pin *AnalogInput) Read(ctx context.Context) (float64, error) {
	value, err := pin.in.Value(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot read pin %d", pin.Slot().Number)
	}
	return Clamp(value, pin.rng), nil
}

// ReadAverage returns the mean of samples consecutive reads.
func (pin *AnalogInput) ReadAverage(ctx context.Context, samples int) (float64, error) {
	if samples < 1 {
		return 0, errors.Errorf("need at least one sample, got %d", samples)
	}
	values := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		value, err := pin.Read(ctx)
		if err != nil {
			return 0, err
		}
		values = append(values, value)
	}
	return stats.Mean(values)
}

// An AnalogOutput drives a hardware channel. Writes are clamped into its range unless the caller
// bypasses clamping.
type AnalogOutput struct {
	*Handle
	rng Range
	out hardware.AnalogOutput
}

// NewAnalogOutput claims slot, validates the configured range and opens the output channel.
func NewAnalogOutput(
	ctx context.Context,
	hw hardware.Context,
	reg *registry.Registry,
	slot header.Slot,
	conf AnalogConfig,
	logger logging.Logger,
) (*AnalogOutput, error) {
	pin := &AnalogOutput{}
	h, err := openHandle(reg, slot, AnalogOut, logger,
		func() (err error) {
			pin.rng, err = conf.Range()
			return errors.WithMessagef(err, "pin %d", slot.Number)
		},
		func() (channel, error) {
			out, err := hw.OpenAnalogOutput(ctx, channelConfig(slot, conf.Name, pin.rng))
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
	return pin, nil
}

// Range returns the validated bounds.
func (pin *AnalogOutput) Range() Range {
	return pin.rng
}

// On writes the range maximum. With bypass it writes the absolute default maximum, 1023, whatever
// the configured range.
func (pin *AnalogOutput) On(ctx context.Context, bypass bool) error {
	if bypass {
		return pin.write(ctx, DefaultMaximum)
	}
	return pin.write(ctx, float64(pin.rng.Max))
}

// Off writes the range minimum. With bypass it writes 0.
func (pin *AnalogOutput) Off(ctx context.Context, bypass bool) error {
	if bypass {
		return pin.write(ctx, 0)
	}
	return pin.write(ctx, float64(pin.rng.Min))
}

// Set writes value clamped into range, or value itself with bypass.
func (pin *AnalogOutput) Set(ctx context.Context, value float64, bypass bool) error {
	if bypass {
		return pin.write(ctx, value)
	}
	return pin.write(ctx, Clamp(value, pin.rng))
}

// Value returns the last value written.
func (pin *AnalogOutput) Value(ctx context.Context) (float64, error) {
	value, err := pin.out.Value(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot read back pin %d", pin.Slot().Number)
	}
	return value, nil
}

func (pin *AnalogOutput) write(ctx context.Context, value float64) error {
	if err := pin.out.SetValue(ctx, value); err != nil {
		return errors.Wrapf(err, "cannot write %v to pin %d", value, pin.Slot().Number)
	}
	pin.logger.CDebugw(ctx, "pin written", "pin", pin.Slot().Number, "value", value)
	return nil
}

// openError makes sure a failed open reads as ErrUnavailable.
func openError(err error, slot header.Slot) error {
	if errors.Is(err, hardware.ErrUnavailable) {
		return errors.Wrapf(err, "failed to initiate pin %d", slot.Number)
	}
	return hardware.Unavailable(err, "failed to initiate pin %d", slot.Number)
}

// Package pins provides the analog and digital pin handles that sit on top of a registry claim
// and a hardware channel.
package pins

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/registry"
)

// Kind is the variant of a pin handle.
type Kind int

// The pin variants.
const (
	AnalogIn Kind = iota
	AnalogOut
	DigitalIn
	DigitalOut
)

func (k Kind) String() string {
	switch k {
	case AnalogIn:
		return "analog input"
	case AnalogOut:
		return "analog output"
	case DigitalIn:
		return "digital input"
	case DigitalOut:
		return "digital output"
	default:
		return "unknown"
	}
}

// A Pin is any pin handle.
type Pin interface {
	Slot() header.Slot
	Kind() Kind
	Close(ctx context.Context) error
}

type channel interface {
	Close(ctx context.Context) error
}

// A Handle owns one registry claim and the hardware channel opened for it. Every pin variant
// embeds one.
type Handle struct {
	kind    Kind
	claim   *registry.Claim
	channel channel
	logger  logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Slot returns the claimed header slot.
func (h *Handle) Slot() header.Slot {
	return h.claim.Slot()
}

// Kind returns the handle's variant.
func (h *Handle) Kind() Kind {
	return h.kind
}

// Close closes the hardware channel and releases the claim. Calling Close again returns the
// first result.
func (h *Handle) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.closeErr = h.channel.Close(ctx)
		h.claim.Release()
		h.logger.Debugw("pin closed", "pin", h.claim.Slot().Number, "kind", h.kind.String())
	})
	return h.closeErr
}

// openHandle runs the construction sequence shared by every variant: claim the slot, run
// validate, then open the channel. A failure after the claim releases it again.
func openHandle(
	reg *registry.Registry,
	slot header.Slot,
	kind Kind,
	logger logging.Logger,
	validate func() error,
	open func() (channel, error),
) (h *Handle, err error) {
	claim, err := reg.Claim(slot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			claim.Release()
		}
	}()

	if validate != nil {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	ch, err := open()
	if err != nil {
		return nil, err
	}
	logger.Debugw("pin opened", "pin", slot.Number, "kind", kind.String())
	return &Handle{kind: kind, claim: claim, channel: ch, logger: logger}, nil
}

// CloseAll closes every pin, combining errors.
func CloseAll(ctx context.Context, pins ...Pin) error {
	var err error
	for _, p := range pins {
		if p == nil {
			continue
		}
		err = multierr.Combine(err, p.Close(ctx))
	}
	return err
}

func channelConfig(slot header.Slot, name string, r Range) hardware.AnalogChannelConfig {
	return hardware.AnalogChannelConfig{
		Address:   slot.Number,
		BCM:       slot.BCM,
		Name:      name,
		Min:       r.Min,
		Max:       r.Max,
		FullScale: r.FullScale(),
	}
}

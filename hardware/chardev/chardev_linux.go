//go:build linux

package chardev

import (
	"context"
	"sync"

	"github.com/mkch/gpio"
	"github.com/pkg/errors"
	periphgpio "periph.io/x/conn/v3/gpio"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/logging"
)

// A Context owns one open gpiochip. Every digital channel is a requested line on it.
type Context struct {
	mu       sync.Mutex
	chip     *gpio.Chip
	consumer string
	closed   bool
	logger   logging.Logger
}

var _ hardware.Context = &Context{}

// NewContext opens the configured gpiochip.
func NewContext(ctx context.Context, conf *Config, logger logging.Logger) (*Context, error) {
	chip, err := gpio.OpenChip(conf.chip())
	if err != nil {
		return nil, hardware.Unavailable(err, "cannot open %s", conf.chip())
	}
	logger.Debugw("opened gpio chip", "chip", conf.chip())
	return &Context{chip: chip, consumer: conf.consumer(), logger: logger}, nil
}

// OpenAnalogInput always fails; the character device has no analog channels.
func (c *Context) OpenAnalogInput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogInput, error) {
	return nil, hardware.Unavailable(nil, "pin %d: analog input is not supported by the gpio character device", conf.Address)
}

// OpenAnalogOutput always fails; the character device has no analog channels.
func (c *Context) OpenAnalogOutput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogOutput, error) {
	return nil, hardware.Unavailable(nil, "pin %d: analog output is not supported by the gpio character device", conf.Address)
}

func (c *Context) openLine(address, bcm int, output bool) (*line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, hardware.Unavailable(nil, "cannot open channel %d", address)
	}
	if bcm < 0 {
		return nil, hardware.Unavailable(nil, "pin %d has no gpio line", address)
	}
	var (
		l   *gpio.Line
		err error
	)
	// The 0 means the line starts low.
	if output {
		l, err = c.chip.OpenLine(uint32(bcm), 0, gpio.Output, c.consumer)
	} else {
		l, err = c.chip.OpenLine(uint32(bcm), 0, gpio.Input, c.consumer)
	}
	if err != nil {
		return nil, hardware.Unavailable(err, "cannot request line %d for pin %d", bcm, address)
	}
	return &line{c: c, line: l, address: address}, nil
}

// OpenDigitalInput requests the slot's line as an input. Bias is left to the kernel; the
// requested pull is only reported back.
func (c *Context) OpenDigitalInput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalInput, error) {
	l, err := c.openLine(conf.Address, conf.BCM, false)
	if err != nil {
		return nil, err
	}
	if conf.Pull != periphgpio.PullNoChange && conf.Pull != periphgpio.Float {
		c.logger.Debugw("pull is not configurable through the character device", "pin", conf.Address, "pull", conf.Pull.String())
	}
	return &digitalInput{line: l, pull: conf.Pull}, nil
}

// OpenDigitalOutput requests the slot's line as an output.
func (c *Context) OpenDigitalOutput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalOutput, error) {
	l, err := c.openLine(conf.Address, conf.BCM, true)
	if err != nil {
		return nil, err
	}
	return &digitalOutput{l}, nil
}

// Close closes the chip. Lines requested from it stay valid until they are closed themselves.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.chip.Close()
}

type line struct {
	mu      sync.Mutex
	c       *Context
	line    *gpio.Line
	address int
	closed  bool
}

func (l *line) Read(ctx context.Context) (periphgpio.Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return periphgpio.Low, hardware.Unavailable(nil, "channel %d is closed", l.address)
	}
	value, err := l.line.Value()
	if err != nil {
		return periphgpio.Low, hardware.Unavailable(err, "cannot read pin %d", l.address)
	}
	// Any non-zero value is high.
	return value != 0, nil
}

func (l *line) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Wrapf(l.line.Close(), "cannot release pin %d", l.address)
}

type digitalInput struct {
	*line
	pull periphgpio.Pull
}

func (in *digitalInput) Pull() periphgpio.Pull {
	return in.pull
}

type digitalOutput struct {
	*line
}

func (out *digitalOutput) Out(ctx context.Context, level periphgpio.Level) error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return hardware.Unavailable(nil, "channel %d is closed", out.address)
	}
	var value byte
	if level {
		value = 1
	}
	if err := out.line.line.SetValue(value); err != nil {
		return hardware.Unavailable(err, "cannot drive pin %d", out.address)
	}
	return nil
}

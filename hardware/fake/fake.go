// Package fake implements an in-memory hardware context.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"periph.io/x/conn/v3/gpio"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/logging"
)

// A Context keeps every channel in memory. Analog and digital inputs read whatever was last fed
// in through SetAnalogInput or SetDigitalInput; outputs record their write history.
type Context struct {
	mu       sync.Mutex
	analogIn map[int]float64
	digital  map[int]gpio.Level
	history  map[int][]float64
	failOpen map[int]error
	closed   bool

	opened atomic.Int32
	writes atomic.Int64
	logger logging.Logger
}

var _ hardware.Context = &Context{}

// NewContext returns an empty fake context.
func NewContext(logger logging.Logger) *Context {
	return &Context{
		analogIn: map[int]float64{},
		digital:  map[int]gpio.Level{},
		history:  map[int][]float64{},
		failOpen: map[int]error{},
		logger:   logger,
	}
}

// SetAnalogInput sets the raw value an analog input at address will read.
func (c *Context) SetAnalogInput(address int, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analogIn[address] = value
}

// SetDigitalInput sets the level a digital input at address will read.
func (c *Context) SetDigitalInput(address int, level gpio.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digital[address] = level
}

// FailOpen makes the next open of address fail with err. A nil err clears it.
func (c *Context) FailOpen(address int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failOpen, address)
		return
	}
	c.failOpen[address] = err
}

// History returns every value written to the output at address, oldest first. Digital writes
// are recorded as 1 or 0.
func (c *Context) History(address int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.history[address]...)
}

// Open returns the number of channels currently open.
func (c *Context) Open() int {
	return int(c.opened.Load())
}

// Writes returns the number of writes across all outputs.
func (c *Context) Writes() int64 {
	return c.writes.Load()
}

// Close shuts the context down.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Context) open(address int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hardware.Unavailable(nil, "cannot open channel %d", address)
	}
	if err, ok := c.failOpen[address]; ok {
		delete(c.failOpen, address)
		return hardware.Unavailable(err, "cannot open channel %d", address)
	}
	c.opened.Inc()
	return nil
}

func (c *Context) record(address int, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hardware.Unavailable(nil, "write to channel %d", address)
	}
	c.history[address] = append(c.history[address], value)
	c.writes.Inc()
	return nil
}

func (c *Context) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hardware.Unavailable(nil, "context is closed")
	}
	return nil
}

// OpenAnalogInput opens a fake analog input.
func (c *Context) OpenAnalogInput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogInput, error) {
	if err := c.open(conf.Address); err != nil {
		return nil, err
	}
	c.logger.Debugw("opened analog input", "pin", conf.Address, "name", conf.Name)
	return &analogInput{channel{ctx: c, address: conf.Address}}, nil
}

// OpenAnalogOutput opens a fake analog output.
func (c *Context) OpenAnalogOutput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogOutput, error) {
	if err := c.open(conf.Address); err != nil {
		return nil, err
	}
	c.logger.Debugw("opened analog output", "pin", conf.Address, "name", conf.Name)
	return &analogOutput{channel: channel{ctx: c, address: conf.Address}}, nil
}

// OpenDigitalInput opens a fake digital input.
func (c *Context) OpenDigitalInput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalInput, error) {
	if err := c.open(conf.Address); err != nil {
		return nil, err
	}
	c.logger.Debugw("opened digital input", "pin", conf.Address, "name", conf.Name, "pull", conf.Pull.String())
	return &digitalInput{channel: channel{ctx: c, address: conf.Address}, pull: conf.Pull}, nil
}

// OpenDigitalOutput opens a fake digital output, initially low.
func (c *Context) OpenDigitalOutput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalOutput, error) {
	if err := c.open(conf.Address); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.digital[conf.Address] = gpio.Low
	c.mu.Unlock()
	c.logger.Debugw("opened digital output", "pin", conf.Address, "name", conf.Name)
	return &digitalOutput{channel{ctx: c, address: conf.Address}}, nil
}

type channel struct {
	mu      sync.Mutex
	ctx     *Context
	address int
	closed  bool
}

func (ch *channel) check() error {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed {
		return hardware.Unavailable(nil, "channel %d is closed", ch.address)
	}
	return ch.ctx.alive()
}

func (ch *channel) Close(ctx context.Context) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil
	}
	ch.closed = true
	ch.ctx.opened.Dec()
	return nil
}

type analogInput struct {
	channel
}

func (in *analogInput) Value(ctx context.Context) (float64, error) {
	if err := in.check(); err != nil {
		return 0, err
	}
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.ctx.analogIn[in.address], nil
}

type analogOutput struct {
	channel
	valueMu sync.Mutex
	value   float64
}

func (out *analogOutput) Value(ctx context.Context) (float64, error) {
	if err := out.check(); err != nil {
		return 0, err
	}
	out.valueMu.Lock()
	defer out.valueMu.Unlock()
	return out.value, nil
}

func (out *analogOutput) SetValue(ctx context.Context, value float64) error {
	if err := out.check(); err != nil {
		return err
	}
	if err := out.ctx.record(out.address, value); err != nil {
		return errors.Wrap(err, "cannot set analog output")
	}
	out.valueMu.Lock()
	out.value = value
	out.valueMu.Unlock()
	return nil
}

type digitalInput struct {
	channel
	pull gpio.Pull
}

func (in *digitalInput) Read(ctx context.Context) (gpio.Level, error) {
	if err := in.check(); err != nil {
		return gpio.Low, err
	}
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	if level, ok := in.ctx.digital[in.address]; ok {
		return level, nil
	}
	return in.pull == gpio.PullUp, nil
}

func (in *digitalInput) Pull() gpio.Pull {
	return in.pull
}

type digitalOutput struct {
	channel
}

func (out *digitalOutput) Read(ctx context.Context) (gpio.Level, error) {
	if err := out.check(); err != nil {
		return gpio.Low, err
	}
	out.ctx.mu.Lock()
	defer out.ctx.mu.Unlock()
	return out.ctx.digital[out.address], nil
}

func (out *digitalOutput) Out(ctx context.Context, level gpio.Level) error {
	if err := out.check(); err != nil {
		return err
	}
	value := 0.0
	if level {
		value = 1
	}
	if err := out.ctx.record(out.address, value); err != nil {
		return errors.Wrap(err, "cannot set digital output")
	}
	out.ctx.mu.Lock()
	out.ctx.digital[out.address] = level
	out.ctx.mu.Unlock()
	return nil
}

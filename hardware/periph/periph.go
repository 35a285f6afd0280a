// Package periph implements a hardware context on top of periph.io. Digital channels and PWM
// driven analog outputs use the header's GPIO lines; analog inputs are sampled from an MCP3008 or
// MCP3208 on the SPI bus.
package periph

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/logging"
)

const (
	defaultPWMFrequencyHz = 50
	defaultSPIBaudHz      = 1000000
)

// A Config describes the periph backend.
type Config struct {
	SPIBus         string       `json:"spi_bus,omitempty"`
	ChipSelect     string       `json:"chip_select,omitempty"`
	ADC            string       `json:"adc,omitempty"`
	SPIBaudHz      int          `json:"spi_baud_hz,omitempty"`
	PWMFrequencyHz int          `json:"pwm_frequency_hz,omitempty"`
	ADCChannels    []ADCChannel `json:"adc_channels,omitempty"`
}

// An ADCChannel wires a header slot to one converter input.
type ADCChannel struct {
	Pin     int `json:"pin"`
	Channel int `json:"channel"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.SPIBaudHz < 0 {
		return goutils.NewConfigValidationError(path, errors.New("spi_baud_hz cannot be negative"))
	}
	if conf.PWMFrequencyHz < 0 {
		return goutils.NewConfigValidationError(path, errors.New("pwm_frequency_hz cannot be negative"))
	}
	switch conf.ADC {
	case "", MCP3008, MCP3208:
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unsupported adc %q", conf.ADC))
	}
	seen := map[int]bool{}
	for idx, ch := range conf.ADCChannels {
		chPath := fmt.Sprintf("%s.adc_channels.%d", path, idx)
		if ch.Pin == 0 {
			return goutils.NewConfigValidationFieldRequiredError(chPath, "pin")
		}
		if ch.Channel < 0 || ch.Channel > 7 {
			return goutils.NewConfigValidationError(chPath, errors.Errorf("channel %d out of range", ch.Channel))
		}
		if seen[ch.Pin] {
			return goutils.NewConfigValidationError(chPath, errors.Errorf("pin %d mapped twice", ch.Pin))
		}
		seen[ch.Pin] = true
	}
	return nil
}

type lineLookup func(bcm int) (gpio.PinIO, error)

func byBCM(bcm int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", bcm)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	return pin, nil
}

// A Context drives the header through periph.io.
type Context struct {
	mu       sync.Mutex
	lookup   lineLookup
	adc      *adc
	port     spi.PortCloser
	channels map[int]int
	freq     physic.Frequency
	closed   bool
	logger   logging.Logger
}

var _ hardware.Context = &Context{}

// NewContext initializes the periph host drivers and, when ADC channels are configured, connects
// to the converter.
func NewContext(ctx context.Context, conf *Config, logger logging.Logger) (*Context, error) {
	if _, err := host.Init(); err != nil {
		return nil, hardware.Unavailable(err, "cannot initialize periph host")
	}
	if len(conf.ADCChannels) == 0 {
		return newContext(conf, byBCM, nil, nil, logger)
	}

	bus, cs := conf.SPIBus, conf.ChipSelect
	if bus == "" {
		bus = "0"
	}
	if cs == "" {
		cs = "0"
	}
	port, err := spireg.Open(fmt.Sprintf("SPI%s.%s", bus, cs))
	if err != nil {
		return nil, hardware.Unavailable(err, "cannot open spi bus %s.%s", bus, cs)
	}
	baud := conf.SPIBaudHz
	if baud == 0 {
		baud = defaultSPIBaudHz
	}
	conn, err := port.Connect(physic.Hertz*physic.Frequency(baud), spi.Mode0, 8)
	if err != nil {
		return nil, hardware.Unavailable(multierr.Combine(err, port.Close()), "cannot connect to spi bus %s.%s", bus, cs)
	}
	c, err := newContext(conf, byBCM, conn, port, logger)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	return c, nil
}

func newContext(conf *Config, lookup lineLookup, conn spi.Conn, port spi.PortCloser, logger logging.Logger) (*Context, error) {
	c := &Context{
		lookup:   lookup,
		port:     port,
		channels: map[int]int{},
		freq:     physic.Hertz * defaultPWMFrequencyHz,
		logger:   logger,
	}
	if conf.PWMFrequencyHz != 0 {
		c.freq = physic.Hertz * physic.Frequency(conf.PWMFrequencyHz)
	}
	for _, ch := range conf.ADCChannels {
		c.channels[ch.Pin] = ch.Channel
	}
	if conn != nil {
		kind := conf.ADC
		if kind == "" {
			kind = MCP3008
		}
		var err error
		if c.adc, err = newADC(kind, conn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Context) line(address, bcm int) (gpio.PinIO, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, hardware.Unavailable(nil, "cannot open channel %d", address)
	}
	pin, err := c.lookup(bcm)
	if err != nil {
		return nil, hardware.Unavailable(err, "cannot open channel %d", address)
	}
	return pin, nil
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OpenAnalogInput opens the ADC channel wired to the slot.
func (c *Context) OpenAnalogInput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogInput, error) {
	if c.isClosed() {
		return nil, hardware.Unavailable(nil, "cannot open channel %d", conf.Address)
	}
	channel, ok := c.channels[conf.Address]
	if !ok || c.adc == nil {
		return nil, hardware.Unavailable(nil, "pin %d is not wired to an adc channel", conf.Address)
	}
	fullScale := conf.FullScale
	if fullScale == 0 {
		fullScale = c.adc.fullScale()
	}
	c.logger.Debugw("opened analog input", "pin", conf.Address, "adc", c.adc.kind, "channel", channel)
	return &analogInput{c: c, channel: channel, scale: float64(fullScale) / float64(c.adc.fullScale())}, nil
}

// OpenAnalogOutput opens the slot's line as a PWM output. Values map onto the duty cycle by the
// channel's full scale.
func (c *Context) OpenAnalogOutput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogOutput, error) {
	pin, err := c.line(conf.Address, conf.BCM)
	if err != nil {
		return nil, err
	}
	fullScale := conf.FullScale
	if fullScale == 0 {
		fullScale = 1023
	}
	if err := pin.PWM(0, c.freq); err != nil {
		return nil, hardware.Unavailable(err, "pin %d does not support pwm", conf.Address)
	}
	c.logger.Debugw("opened analog output", "pin", conf.Address, "line", pin.Name(), "frequency", c.freq.String())
	return &analogOutput{c: c, pin: pin, fullScale: float64(fullScale)}, nil
}

// OpenDigitalInput configures the slot's line as an input with the requested pull.
func (c *Context) OpenDigitalInput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalInput, error) {
	pin, err := c.line(conf.Address, conf.BCM)
	if err != nil {
		return nil, err
	}
	if err := pin.In(conf.Pull, gpio.NoEdge); err != nil {
		return nil, hardware.Unavailable(err, "cannot configure pin %d as input", conf.Address)
	}
	return &digitalInput{digitalLine{c: c, pin: pin}, conf.Pull}, nil
}

// OpenDigitalOutput configures the slot's line as an output, initially low.
func (c *Context) OpenDigitalOutput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalOutput, error) {
	pin, err := c.line(conf.Address, conf.BCM)
	if err != nil {
		return nil, err
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, hardware.Unavailable(err, "cannot configure pin %d as output", conf.Address)
	}
	return &digitalOutput{digitalLine{c: c, pin: pin}}, nil
}

// Close releases the SPI port. Open channels fail afterwards.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.port != nil {
		return c.port.Close()
	}
	return nil
}

type analogInput struct {
	c       *Context
	channel int
	scale   float64
}

func (in *analogInput) Value(ctx context.Context) (float64, error) {
	if in.c.isClosed() {
		return 0, hardware.Unavailable(nil, "context is closed")
	}
	raw, err := in.c.adc.read(in.channel)
	if err != nil {
		return 0, hardware.Unavailable(err, "cannot sample adc channel %d", in.channel)
	}
	return float64(raw) * in.scale, nil
}

func (in *analogInput) Close(ctx context.Context) error {
	return nil
}

type analogOutput struct {
	mu        sync.Mutex
	c         *Context
	pin       gpio.PinIO
	fullScale float64
	value     float64
}

func (out *analogOutput) Value(ctx context.Context) (float64, error) {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.value, nil
}

// dutyFor maps a raw value onto the duty cycle. Values outside 0..fullScale saturate.
func dutyFor(value, fullScale float64) gpio.Duty {
	ratio := math.Max(0, math.Min(1, value/fullScale))
	return gpio.Duty(math.Round(ratio * float64(gpio.DutyMax)))
}

func (out *analogOutput) SetValue(ctx context.Context, value float64) error {
	if out.c.isClosed() {
		return hardware.Unavailable(nil, "context is closed")
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if err := out.pin.PWM(dutyFor(value, out.fullScale), out.c.freq); err != nil {
		return hardware.Unavailable(err, "cannot drive %s", out.pin.Name())
	}
	out.value = value
	return nil
}

func (out *analogOutput) Close(ctx context.Context) error {
	return out.pin.Halt()
}

type digitalLine struct {
	c   *Context
	pin gpio.PinIO
}

func (l digitalLine) Read(ctx context.Context) (gpio.Level, error) {
	if l.c.isClosed() {
		return gpio.Low, hardware.Unavailable(nil, "context is closed")
	}
	return l.pin.Read(), nil
}

func (l digitalLine) Close(ctx context.Context) error {
	return l.pin.Halt()
}

type digitalInput struct {
	digitalLine
	pull gpio.Pull
}

func (in *digitalInput) Pull() gpio.Pull {
	return in.pull
}

type digitalOutput struct {
	digitalLine
}

func (out *digitalOutput) Out(ctx context.Context, level gpio.Level) error {
	if out.c.isClosed() {
		return hardware.Unavailable(nil, "context is closed")
	}
	if err := out.pin.Out(level); err != nil {
		return hardware.Unavailable(err, "cannot drive %s", out.pin.Name())
	}
	return nil
}

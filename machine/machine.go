// Package machine builds every pin, servo and LED of a config on one hardware backend.
package machine

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/gpioheader/components/led"
	"go.viam.com/gpioheader/components/servo"
	"go.viam.com/gpioheader/config"
	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/hardware/chardev"
	"go.viam.com/gpioheader/hardware/fake"
	"go.viam.com/gpioheader/hardware/periph"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

type closer interface {
	Close(ctx context.Context) error
}

// A Machine owns a hardware backend, its registry and everything claimed from it.
type Machine struct {
	hw     hardware.Context
	reg    *registry.Registry
	logger logging.Logger

	analogInputs   map[string]*pins.AnalogInput
	analogOutputs  map[string]*pins.AnalogOutput
	digitalInputs  map[string]*pins.DigitalInput
	digitalOutputs map[string]*pins.DigitalOutput
	servos         map[string]*servo.Servo
	leds           map[string]*led.LED

	closers   []closer
	closeOnce sync.Once
	closeErr  error
}

// NewHardware builds the backend named by conf.
func NewHardware(ctx context.Context, conf config.Hardware, logger logging.Logger) (hardware.Context, error) {
	switch conf.Type {
	case config.HardwareFake:
		return fake.NewContext(logger), nil
	case config.HardwarePeriph:
		periphConf, err := conf.PeriphConfig()
		if err != nil {
			return nil, err
		}
		return periph.NewContext(ctx, periphConf, logger)
	case config.HardwareChardev:
		chardevConf, err := conf.ChardevConfig()
		if err != nil {
			return nil, err
		}
		return chardev.NewContext(ctx, chardevConf, logger)
	default:
		return nil, errors.Errorf("unknown hardware type %q", conf.Type)
	}
}

// New builds a machine from cfg. If anything fails, whatever was already built is closed and
// the error is returned.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (_ *Machine, err error) {
	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}

	hw := o.hw
	if hw == nil {
		hw, err = NewHardware(ctx, cfg.Hardware, logger.Sublogger("hardware"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open hardware")
		}
	}

	m := &Machine{
		hw:             hw,
		reg:            registry.New(logger.Sublogger("registry")),
		logger:         logger,
		analogInputs:   map[string]*pins.AnalogInput{},
		analogOutputs:  map[string]*pins.AnalogOutput{},
		digitalInputs:  map[string]*pins.DigitalInput{},
		digitalOutputs: map[string]*pins.DigitalOutput{},
		servos:         map[string]*servo.Servo{},
		leds:           map[string]*led.LED{},
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, m.Close(ctx))
		}
	}()

	pinLogger := logger.Sublogger("pins")
	for _, conf := range cfg.AnalogInputs {
		pin, err := pins.NewAnalogInput(ctx, hw, m.reg, header.Lookup(conf.Pin), conf.AnalogConfig(), pinLogger)
		if err != nil {
			return nil, errors.Wrapf(err, "analog input %q", conf.Name)
		}
		m.analogInputs[conf.Name] = pin
		m.closers = append(m.closers, pin)
	}
	for _, conf := range cfg.AnalogOutputs {
		pin, err := pins.NewAnalogOutput(ctx, hw, m.reg, header.Lookup(conf.Pin), conf.AnalogConfig(), pinLogger)
		if err != nil {
			return nil, errors.Wrapf(err, "analog output %q", conf.Name)
		}
		m.analogOutputs[conf.Name] = pin
		m.closers = append(m.closers, pin)
	}
	for _, conf := range cfg.DigitalInputs {
		inConf, err := conf.DigitalInputConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "digital input %q", conf.Name)
		}
		pin, err := pins.NewDigitalInput(ctx, hw, m.reg, header.Lookup(conf.Pin), inConf, pinLogger)
		if err != nil {
			return nil, errors.Wrapf(err, "digital input %q", conf.Name)
		}
		m.digitalInputs[conf.Name] = pin
		m.closers = append(m.closers, pin)
	}
	for _, conf := range cfg.DigitalOutputs {
		pin, err := pins.NewDigitalOutput(ctx, hw, m.reg, header.Lookup(conf.Pin), conf.DigitalOutputConfig(), pinLogger)
		if err != nil {
			return nil, errors.Wrapf(err, "digital output %q", conf.Name)
		}
		m.digitalOutputs[conf.Name] = pin
		m.closers = append(m.closers, pin)
	}
	for _, conf := range cfg.Servos {
		s, err := servo.NewRaw(ctx, hw, m.reg, o.clk, conf, logger.Sublogger("servo."+conf.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "servo %q", conf.Name)
		}
		m.servos[conf.Name] = s
		m.closers = append(m.closers, s)
	}
	for _, conf := range cfg.LEDs {
		l, err := led.New(ctx, hw, m.reg, conf, logger.Sublogger("led."+conf.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "led %q", conf.Name)
		}
		m.leds[conf.Name] = l
		m.closers = append(m.closers, l)
	}

	logger.Infow("machine ready", "hardware", cfg.Hardware.Type, "claimed", m.reg.Claimed())
	return m, nil
}

// Registry returns the registry every part of the machine claimed its slot from.
func (m *Machine) Registry() *registry.Registry {
	return m.reg
}

// Hardware returns the backend the machine drives.
func (m *Machine) Hardware() hardware.Context {
	return m.hw
}

func lookup[T any](all map[string]T, kind, name string) (T, error) {
	v, ok := all[name]
	if !ok {
		var zero T
		return zero, errors.Errorf("no %s named %q", kind, name)
	}
	return v, nil
}

// AnalogInput returns the analog input with the given name.
func (m *Machine) AnalogInput(name string) (*pins.AnalogInput, error) {
	return lookup(m.analogInputs, "analog input", name)
}

// AnalogOutput returns the analog output with the given name.
func (m *Machine) AnalogOutput(name string) (*pins.AnalogOutput, error) {
	return lookup(m.analogOutputs, "analog output", name)
}

// DigitalInput returns the digital input with the given name.
func (m *Machine) DigitalInput(name string) (*pins.DigitalInput, error) {
	return lookup(m.digitalInputs, "digital input", name)
}

// DigitalOutput returns the digital output with the given name.
func (m *Machine) DigitalOutput(name string) (*pins.DigitalOutput, error) {
	return lookup(m.digitalOutputs, "digital output", name)
}

// Servo returns the servo with the given name.
func (m *Machine) Servo(name string) (*servo.Servo, error) {
	return lookup(m.servos, "servo", name)
}

// LED returns the LED with the given name.
func (m *Machine) LED(name string) (*led.LED, error) {
	return lookup(m.leds, "led", name)
}

// ServoNames returns the names of every servo, sorted.
func (m *Machine) ServoNames() []string {
	names := make([]string, 0, len(m.servos))
	for name := range m.servos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every part concurrently, then the hardware. Later calls return the first result.
func (m *Machine) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		var (
			mu   sync.Mutex
			errs error
		)
		var group errgroup.Group
		for _, c := range m.closers {
			c := c
			group.Go(func() error {
				if err := c.Close(ctx); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
		goutils.UncheckedError(group.Wait())
		m.closeErr = multierr.Combine(errs, m.hw.Close(ctx))
		if dangling := m.reg.Claimed(); len(dangling) != 0 {
			m.logger.Warnw("slots still claimed after close", "slots", dangling)
		}
	})
	return m.closeErr
}

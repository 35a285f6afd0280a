// Package config defines the JSON description of a header: which backend drives it and which
// pins, servos and LEDs live on it.
package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"
	"periph.io/x/conn/v3/gpio"

	"go.viam.com/gpioheader/components/led"
	"go.viam.com/gpioheader/components/servo"
	"go.viam.com/gpioheader/hardware/chardev"
	"go.viam.com/gpioheader/hardware/periph"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

// The hardware backends.
const (
	HardwareFake    = "fake"
	HardwarePeriph  = "periph"
	HardwareChardev = "chardev"
)

// Config describes a header.
type Config struct {
	Hardware       Hardware        `json:"hardware"`
	AnalogInputs   []AnalogPin     `json:"analog_inputs,omitempty"`
	AnalogOutputs  []AnalogPin     `json:"analog_outputs,omitempty"`
	DigitalInputs  []DigitalInput  `json:"digital_inputs,omitempty"`
	DigitalOutputs []DigitalOutput `json:"digital_outputs,omitempty"`
	Servos         []servo.Config  `json:"servos,omitempty"`
	LEDs           []led.Config    `json:"leds,omitempty"`
	LogLevel       string          `json:"log_level,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Hardware selects and configures the backend.
type Hardware struct {
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// DecodeAttributes decodes the backend attributes into target using its json tags. Unknown
// attributes are an error.
func (hw Hardware) DecodeAttributes(target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      target,
		ErrorUnused: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create attribute decoder")
	}
	if err := decoder.Decode(hw.Attributes); err != nil {
		return errors.Wrapf(err, "invalid %s attributes", hw.Type)
	}
	return nil
}

// PeriphConfig decodes the attributes of a periph backend.
func (hw Hardware) PeriphConfig() (*periph.Config, error) {
	var conf periph.Config
	if err := hw.DecodeAttributes(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// ChardevConfig decodes the attributes of a chardev backend.
func (hw Hardware) ChardevConfig() (*chardev.Config, error) {
	var conf chardev.Config
	if err := hw.DecodeAttributes(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate ensures all parts of the config are valid.
func (hw *Hardware) Validate(path string) error {
	switch hw.Type {
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	case HardwareFake:
		if len(hw.Attributes) != 0 {
			return goutils.NewConfigValidationError(path, errors.New("the fake backend takes no attributes"))
		}
	case HardwarePeriph:
		conf, err := hw.PeriphConfig()
		if err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
		return conf.Validate(path + ".attributes")
	case HardwareChardev:
		if _, err := hw.ChardevConfig(); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown hardware type %q", hw.Type))
	}
	return nil
}

// An AnalogPin configures an analog input or output.
type AnalogPin struct {
	Name               string `json:"name"`
	Pin                int    `json:"pin"`
	Min                *int   `json:"min,omitempty"`
	Max                *int   `json:"max,omitempty"`
	ExtendedResolution bool   `json:"extended_resolution,omitempty"`
}

// AnalogConfig returns the pin construction options.
func (conf *AnalogPin) AnalogConfig() pins.AnalogConfig {
	return pins.AnalogConfig{Name: conf.Name, Min: conf.Min, Max: conf.Max, ExtendedResolution: conf.ExtendedResolution}
}

// Validate ensures all parts of the config are valid.
func (conf *AnalogPin) Validate(path string) error {
	if err := validatePin(path, conf.Pin); err != nil {
		return err
	}
	if _, err := conf.AnalogConfig().Range(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// A DigitalInput configures a digital input. Pull is one of up, down, float or empty.
type DigitalInput struct {
	Name string `json:"name"`
	Pin  int    `json:"pin"`
	Pull string `json:"pull,omitempty"`
}

// DigitalInputConfig returns the pin construction options.
func (conf *DigitalInput) DigitalInputConfig() (pins.DigitalInputConfig, error) {
	pull, err := ParsePull(conf.Pull)
	if err != nil {
		return pins.DigitalInputConfig{}, err
	}
	return pins.DigitalInputConfig{Name: conf.Name, Pull: pull}, nil
}

// Validate ensures all parts of the config are valid.
func (conf *DigitalInput) Validate(path string) error {
	if err := validatePin(path, conf.Pin); err != nil {
		return err
	}
	if _, err := ParsePull(conf.Pull); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// ParsePull maps a pull name onto a periph pull.
func ParsePull(name string) (gpio.Pull, error) {
	switch strings.ToLower(name) {
	case "":
		return gpio.PullNoChange, nil
	case "up":
		return gpio.PullUp, nil
	case "down":
		return gpio.PullDown, nil
	case "float", "none":
		return gpio.Float, nil
	default:
		return gpio.PullNoChange, errors.Errorf("unknown pull %q", name)
	}
}

// A DigitalOutput configures a digital output.
type DigitalOutput struct {
	Name      string `json:"name"`
	Pin       int    `json:"pin"`
	LatchedOn bool   `json:"latched_on,omitempty"`
}

// DigitalOutputConfig returns the pin construction options.
func (conf *DigitalOutput) DigitalOutputConfig() pins.DigitalOutputConfig {
	return pins.DigitalOutputConfig{Name: conf.Name, LatchedOn: conf.LatchedOn}
}

// Validate ensures all parts of the config are valid.
func (conf *DigitalOutput) Validate(path string) error {
	return validatePin(path, conf.Pin)
}

func validatePin(path string, pin int) error {
	if pin == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	if err := registry.CheckConfigurable(pin); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

type entry struct {
	path string
	name string
	pin  int
}

// entries lists every named pin user in the order pins are built.
func (c *Config) entries() []entry {
	var all []entry
	add := func(section string, idx int, name string, pin int) {
		all = append(all, entry{fmt.Sprintf("%s.%d", section, idx), name, pin})
	}
	for idx, conf := range c.AnalogInputs {
		add("analog_inputs", idx, conf.Name, conf.Pin)
	}
	for idx, conf := range c.AnalogOutputs {
		add("analog_outputs", idx, conf.Name, conf.Pin)
	}
	for idx, conf := range c.DigitalInputs {
		add("digital_inputs", idx, conf.Name, conf.Pin)
	}
	for idx, conf := range c.DigitalOutputs {
		add("digital_outputs", idx, conf.Name, conf.Pin)
	}
	for idx, conf := range c.Servos {
		add("servos", idx, conf.Name, conf.Pin)
	}
	for idx, conf := range c.LEDs {
		add("leds", idx, conf.Name, conf.Pin)
	}
	return all
}

// Validate checks the whole config: the backend, every entry, then that names and pins are
// unique across entries.
func (c *Config) Validate() error {
	if err := c.Hardware.Validate("hardware"); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return goutils.NewConfigValidationError("log_level", err)
		}
	}

	for idx := range c.AnalogInputs {
		if err := c.AnalogInputs[idx].Validate(fmt.Sprintf("analog_inputs.%d", idx)); err != nil {
			return err
		}
	}
	for idx := range c.AnalogOutputs {
		if err := c.AnalogOutputs[idx].Validate(fmt.Sprintf("analog_outputs.%d", idx)); err != nil {
			return err
		}
	}
	for idx := range c.DigitalInputs {
		if err := c.DigitalInputs[idx].Validate(fmt.Sprintf("digital_inputs.%d", idx)); err != nil {
			return err
		}
	}
	for idx := range c.DigitalOutputs {
		if err := c.DigitalOutputs[idx].Validate(fmt.Sprintf("digital_outputs.%d", idx)); err != nil {
			return err
		}
	}
	for idx := range c.Servos {
		if err := c.Servos[idx].Validate(fmt.Sprintf("servos.%d", idx)); err != nil {
			return err
		}
	}
	for idx := range c.LEDs {
		if err := c.LEDs[idx].Validate(fmt.Sprintf("leds.%d", idx)); err != nil {
			return err
		}
	}

	all := c.entries()
	for _, e := range all {
		if e.name == "" {
			return goutils.NewConfigValidationFieldRequiredError(e.path, "name")
		}
	}
	if dups := lo.FindDuplicates(lo.Map(all, func(e entry, _ int) string { return e.name })); len(dups) != 0 {
		return errors.Errorf("duplicate name %q", dups[0])
	}
	if dups := lo.FindDuplicates(lo.Map(all, func(e entry, _ int) int { return e.pin })); len(dups) != 0 {
		users := lo.Filter(all, func(e entry, _ int) bool { return e.pin == dups[0] })
		return errors.Errorf("pin %d is used by both %q and %q", dups[0], users[0].name, users[1].name)
	}
	return nil
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	if c.LogLevel == "" {
		return logging.INFO
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

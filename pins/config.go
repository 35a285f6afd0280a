package pins

import (
	"periph.io/x/conn/v3/gpio"
)

// An AnalogConfig configures an analog pin. Nil bounds take their defaults.
type AnalogConfig struct {
	Name               string `json:"name,omitempty"`
	Min                *int   `json:"min,omitempty"`
	Max                *int   `json:"max,omitempty"`
	ExtendedResolution bool   `json:"extended_resolution,omitempty"`
}

// Range validates the configured bounds.
func (conf AnalogConfig) Range() (Range, error) {
	return NewRange(conf.Min, conf.Max, conf.ExtendedResolution)
}

// A DigitalOutputConfig configures a digital output.
type DigitalOutputConfig struct {
	Name string `json:"name,omitempty"`
	// LatchedOn drives the output high at construction and ignores every later attempt to drive
	// it low.
	LatchedOn bool `json:"latched_on,omitempty"`
}

// A DigitalInputConfig configures a digital input.
type DigitalInputConfig struct {
	Name string    `json:"name,omitempty"`
	Pull gpio.Pull `json:"pull,omitempty"`
}

// Package chardev implements a digital-only hardware context over the Linux GPIO character
// device, by way of mkch's gpio package.
package chardev

const (
	defaultChip     = "/dev/gpiochip0"
	defaultConsumer = "gpioheader"
)

// A Config describes the character device backend.
type Config struct {
	Chip     string `json:"chip,omitempty"`
	Consumer string `json:"consumer,omitempty"`
}

func (conf *Config) chip() string {
	if conf.Chip == "" {
		return defaultChip
	}
	return conf.Chip
}

func (conf *Config) consumer() string {
	if conf.Consumer == "" {
		return defaultConsumer
	}
	return conf.Consumer
}

package machine

import (
	"github.com/benbjohnson/clock"

	"go.viam.com/gpioheader/hardware"
)

// options configures a Machine.
type options struct {
	clk clock.Clock
	hw  hardware.Context
}

// Option configures how a Machine is built.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithClock returns an Option which sets the clock driving servo schedulers.
func WithClock(clk clock.Clock) Option {
	return newFuncOption(func(o *options) {
		o.clk = clk
	})
}

// WithHardware returns an Option which makes the machine use hw instead of building the backend
// named by the config. The machine closes hw when it closes.
func WithHardware(hw hardware.Context) Option {
	return newFuncOption(func(o *options) {
		o.hw = hw
	})
}

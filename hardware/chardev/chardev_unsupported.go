//go:build !linux

package chardev

import (
	"context"

	"go.viam.com/gpioheader/hardware"
	"go.viam.com/gpioheader/logging"
)

// A Context is only implemented on Linux.
type Context struct {
	hardware.Context
}

// NewContext always fails off Linux.
func NewContext(ctx context.Context, conf *Config, logger logging.Logger) (*Context, error) {
	return nil, hardware.Unavailable(nil, "the gpio character device needs linux, cannot open %s", conf.chip())
}

// Package inject provides hardware doubles whose behavior is set per test through function
// fields. A nil field falls through to the embedded implementation.
package inject

import (
	"context"

	"go.viam.com/gpioheader/hardware"
)

// HardwareContext is an injectable hardware.Context.
type HardwareContext struct {
	hardware.Context
	OpenAnalogInputFunc   func(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogInput, error)
	OpenAnalogOutputFunc  func(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogOutput, error)
	OpenDigitalInputFunc  func(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalInput, error)
	OpenDigitalOutputFunc func(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalOutput, error)
	CloseFunc             func(ctx context.Context) error
}

// OpenAnalogInput calls the injected OpenAnalogInput or the real version.
func (hw *HardwareContext) OpenAnalogInput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogInput, error) {
	if hw.OpenAnalogInputFunc == nil {
		return hw.Context.OpenAnalogInput(ctx, conf)
	}
	return hw.OpenAnalogInputFunc(ctx, conf)
}

// OpenAnalogOutput calls the injected OpenAnalogOutput or the real version.
func (hw *HardwareContext) OpenAnalogOutput(ctx context.Context, conf hardware.AnalogChannelConfig) (hardware.AnalogOutput, error) {
	if hw.OpenAnalogOutputFunc == nil {
		return hw.Context.OpenAnalogOutput(ctx, conf)
	}
	return hw.OpenAnalogOutputFunc(ctx, conf)
}

// OpenDigitalInput calls the injected OpenDigitalInput or the real version.
func (hw *HardwareContext) OpenDigitalInput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalInput, error) {
	if hw.OpenDigitalInputFunc == nil {
		return hw.Context.OpenDigitalInput(ctx, conf)
	}
	return hw.OpenDigitalInputFunc(ctx, conf)
}

// OpenDigitalOutput calls the injected OpenDigitalOutput or the real version.
func (hw *HardwareContext) OpenDigitalOutput(ctx context.Context, conf hardware.DigitalChannelConfig) (hardware.DigitalOutput, error) {
	if hw.OpenDigitalOutputFunc == nil {
		return hw.Context.OpenDigitalOutput(ctx, conf)
	}
	return hw.OpenDigitalOutputFunc(ctx, conf)
}

// Close calls the injected Close or the real version.
func (hw *HardwareContext) Close(ctx context.Context) error {
	if hw.CloseFunc == nil {
		return hw.Context.Close(ctx)
	}
	return hw.CloseFunc(ctx)
}

// AnalogOutput is an injectable hardware.AnalogOutput.
type AnalogOutput struct {
	hardware.AnalogOutput
	ValueFunc    func(ctx context.Context) (float64, error)
	SetValueFunc func(ctx context.Context, value float64) error
	CloseFunc    func(ctx context.Context) error
}

// Value calls the injected Value or the real version.
func (out *AnalogOutput) Value(ctx context.Context) (float64, error) {
	if out.ValueFunc == nil {
		return out.AnalogOutput.Value(ctx)
	}
	return out.ValueFunc(ctx)
}

// SetValue calls the injected SetValue or the real version.
func (out *AnalogOutput) SetValue(ctx context.Context, value float64) error {
	if out.SetValueFunc == nil {
		return out.AnalogOutput.SetValue(ctx, value)
	}
	return out.SetValueFunc(ctx, value)
}

// Close calls the injected Close or the real version.
func (out *AnalogOutput) Close(ctx context.Context) error {
	if out.CloseFunc == nil {
		return out.AnalogOutput.Close(ctx)
	}
	return out.CloseFunc(ctx)
}

package logging

import "context"

type debugModeKey struct{}

// EnableDebugMode returns a copy of ctx under which CDebugw logs regardless of logger level.
func EnableDebugMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, debugModeKey{}, true)
}

// IsDebugMode reports whether ctx came from EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	on, _ := ctx.Value(debugModeKey{}).(bool)
	return on
}

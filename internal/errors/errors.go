// Package errors defines the small error taxonomy this driver surfaces
// to callers, distinct from the transient transport errors it absorbs
// internally.
package errors

import "fmt"

// NoPrimaryAvailable is returned by getMaster when a full check leaves
// the replica set without a known primary.
type NoPrimaryAvailable struct {
	Set string
}

func (e *NoPrimaryAvailable) Error() string {
	return fmt.Sprintf("rsmon: no primary available for replica set %q", e.Set)
}

// ConfigError marks a programmer/configuration mistake caught at setup
// time rather than at runtime, such as registering a ConfigChangeHook
// twice or supplying an invalid Config.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rsmon: configuration error: %s", e.Message)
}

// NewConfigError builds a ConfigError from a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

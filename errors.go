package servicetools

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is matched by every NotConfiguredError.
	ErrNotConfigured = errors.New("servicetools: service is not configured")

	// ErrNotSerializable is returned by the Response factories when the content
	// cannot be stored in a cache (functions, channels, unsafe pointers).
	ErrNotSerializable = errors.New("servicetools: response body is not serializable")

	// ErrUnsupportedOperation is returned by backends with a closed operation set.
	ErrUnsupportedOperation = errors.New("servicetools: unsupported operation")

	// ErrInvalidArgument is returned when call arguments do not fit the operation.
	ErrInvalidArgument = errors.New("servicetools: invalid argument")
)

// ConfigError represents a missing or invalid configuration option.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// ConnectionError reports an external resource that could not be reached or
// rejected the supplied credentials while configuring a backend.
type ConnectionError struct {
	Op  string // "connect" | "bind"
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("servicetools: %s failed", e.Op)
	}
	return fmt.Sprintf("servicetools: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type NotConfiguredError struct {
	Service string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("service %q is not configured", e.Service)
}

func (e *NotConfiguredError) Is(target error) bool { return target == ErrNotConfigured }

// SerializationError carries the path of the offending value inside the content.
type SerializationError struct {
	Path string
	Kind string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%v: %s at %s", ErrNotSerializable, e.Kind, e.Path)
}

func (e *SerializationError) Unwrap() error { return ErrNotSerializable }

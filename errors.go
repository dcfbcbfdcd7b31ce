package solbuild

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrCacheMiss is returned by the artifact store when no entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoContracts is returned by the compiler invoker when the input produced no
	// contracts. Backends translate it into an empty compilation.
	ErrNoContracts = errors.New("no contracts found")

	// ErrKeyNotFound is returned when a nested key path does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotMapping is returned when a key path walks through a value that is not a mapping.
	ErrNotMapping = errors.New("not a mapping")
)

// ConfigurationError reports one or more problems with the project configuration
// or the standard-JSON override document.
type ConfigurationError struct {
	Errors []error
}

// Error implements the error interface.
func (ce *ConfigurationError) Error() string {
	if len(ce.Errors) == 0 {
		return "invalid configuration"
	}
	if len(ce.Errors) == 1 {
		return fmt.Sprintf("invalid configuration: %v", ce.Errors[0])
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "invalid configuration, %d errors:\n", len(ce.Errors))
	for i, err := range ce.Errors {
		fmt.Fprintf(&buf, "  %d. %v\n", i+1, err)
	}
	return buf.String()
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (ce *ConfigurationError) Unwrap() []error {
	return ce.Errors
}

// newConfigurationError creates a ConfigurationError from a slice of errors.
// Returns nil if the slice is empty.
func newConfigurationError(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Errors: errs}
}

// ToolchainVersionError is returned when the compiler binary is older than the
// minimum version a backend supports.
type ToolchainVersionError struct {
	Version string
	Minimum string
}

func (e *ToolchainVersionError) Error() string {
	return fmt.Sprintf("solc %s is not supported, the standard JSON backend requires solc >= %s", e.Version, e.Minimum)
}

// CompilerError wraps any failure of the external compiler other than
// "no contracts found". Messages holds the formatted diagnostics solc reported.
type CompilerError struct {
	Messages []string
	Err      error
}

func (e *CompilerError) Error() string {
	switch {
	case len(e.Messages) > 0 && e.Err != nil:
		return fmt.Sprintf("compilation failed: %v: %s", e.Err, strings.Join(e.Messages, "; "))
	case len(e.Messages) > 0:
		return "compilation failed: " + strings.Join(e.Messages, "; ")
	case e.Err != nil:
		return fmt.Sprintf("compilation failed: %v", e.Err)
	}
	return "compilation failed"
}

func (e *CompilerError) Unwrap() error {
	return e.Err
}

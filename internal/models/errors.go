package models

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a lookup for a country the dataset does not contain.
var ErrNotFound = errors.New("country not found")

// ConfigurationError reports an invalid or incomplete configuration value,
// detected when a component is constructed rather than mid-operation.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// ProviderError reports a failed call to an external provider (embedding
// API, vector index, completion model).
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

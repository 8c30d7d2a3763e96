package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is one structured problem found while loading or
// validating configuration.
type ConfigurationError struct {
	File       string `json:"file,omitempty"`       // Root-relative document the error was found in
	Capability string `json:"capability,omitempty"` // Capability context, if any
	Action     string `json:"action,omitempty"`     // Action context, if any
	Field      string `json:"field,omitempty"`      // Offending field
	Message    string `json:"message"`              // Human-readable description
}

// Error implements the error interface.
func (ce ConfigurationError) Error() string {
	var parts []string
	if ce.File != "" {
		parts = append(parts, ce.File)
	}
	if ce.Capability != "" {
		ctx := ce.Capability
		if ce.Action != "" {
			ctx += "/" + ce.Action
		}
		parts = append(parts, ctx)
	}
	if ce.Field != "" {
		parts = append(parts, ce.Field)
	}
	if len(parts) == 0 {
		return ce.Message
	}
	return fmt.Sprintf("[%s] %s", strings.Join(parts, " "), ce.Message)
}

// ErrorCollection accumulates configuration errors so a single validation
// pass can surface every problem at once instead of failing on the first.
type ErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Add appends an error to the collection.
func (c *ErrorCollection) Add(ce ConfigurationError) {
	c.Errors = append(c.Errors, ce)
}

// Addf appends a plain formatted error.
func (c *ErrorCollection) Addf(format string, args ...interface{}) {
	c.Errors = append(c.Errors, ConfigurationError{Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether anything was accumulated.
func (c *ErrorCollection) HasErrors() bool {
	return len(c.Errors) > 0
}

// Error implements the error interface for the whole collection.
func (c *ErrorCollection) Error() string {
	if len(c.Errors) == 0 {
		return "no configuration errors"
	}
	lines := make([]string, 0, len(c.Errors)+1)
	lines = append(lines, fmt.Sprintf("%d configuration error(s):", len(c.Errors)))
	for _, ce := range c.Errors {
		lines = append(lines, "  - "+ce.Error())
	}
	return strings.Join(lines, "\n")
}

// AsError returns the collection as an error, or nil when it is empty.
func (c *ErrorCollection) AsError() error {
	if c.HasErrors() {
		return c
	}
	return nil
}

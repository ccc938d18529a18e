// Package util provides logging, the error taxonomy, and VLAN range helpers.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per error kind. Higher layers match with errors.Is;
// raw transport and parse errors never cross the executor boundary.
var (
	ErrConnectivity     = errors.New("device unreachable")
	ErrProtocol         = errors.New("device rejected command")
	ErrDrift            = errors.New("configuration drift detected")
	ErrValidation       = errors.New("validation failed")
	ErrPersistence      = errors.New("persistence failure")
	ErrCancelled        = errors.New("operation cancelled")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyAssigned  = errors.New("bridge domain already assigned")
	ErrNotFound         = errors.New("resource not found")
)

// DeviceError carries device, phase, and command context for any failure
// that originates on or en route to a device.
type DeviceError struct {
	Device  string
	Phase   string // "connect", "query", "commit-check", "commit"
	Command string
	Detail  string
	Kind    error // one of the sentinels above
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s failed", e.Device, e.Phase)
	if e.Command != "" {
		msg += fmt.Sprintf(" on %q", e.Command)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	return e.Kind
}

// NewDeviceError creates a device error of the given kind.
func NewDeviceError(kind error, device, phase, command, detail string) *DeviceError {
	return &DeviceError{
		Device:  device,
		Phase:   phase,
		Command: command,
		Detail:  detail,
		Kind:    kind,
	}
}

// PermissionError reports a user acting outside their VLAN-range policy
// or without holding the active assignment.
type PermissionError struct {
	User   string
	Action string
	Target string
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s may not %s %s: %s", e.User, e.Action, e.Target, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

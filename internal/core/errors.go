package core

import (
	"context"
	"errors"
	"fmt"
)

// LifecycleError reports an invalid state transition or an operation invoked
// in the wrong state (double start, execute before start, stop after fail).
type LifecycleError struct {
	Component string
	Op        string
	Message   string
}

func (e *LifecycleError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: invalid lifecycle operation %s", e.Component, e.Op)
}

// NewLifecycleError creates a new LifecycleError.
func NewLifecycleError(component, op, message string) *LifecycleError {
	return &LifecycleError{Component: component, Op: op, Message: message}
}

// IsLifecycle checks if an error is or wraps a LifecycleError.
func IsLifecycle(err error) bool {
	var e *LifecycleError
	return errors.As(err, &e)
}

// ConnectionError reports that a source or engine cannot open, or has been
// closed underneath a caller.
type ConnectionError struct {
	Resource string // "source" or "engine"
	Name     string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Resource, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %s: connection unavailable", e.Resource, e.Name)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError creates a new ConnectionError wrapping cause.
func NewConnectionError(resource, name string, cause error) *ConnectionError {
	return &ConnectionError{Resource: resource, Name: name, Err: cause}
}

// IsConnection checks if an error is or wraps a ConnectionError.
func IsConnection(err error) bool {
	var e *ConnectionError
	return errors.As(err, &e)
}

// MissingFieldError reports a required field absent from a task, envelope, or
// canonical value. It is a bad-request error.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %s is missing", e.Field)
}

// NewMissingFieldError creates a new MissingFieldError.
func NewMissingFieldError(field string) *MissingFieldError {
	return &MissingFieldError{Field: field}
}

// WrongTypeError reports a field present with an unexpected type. It is a
// bad-request error, distinct from MissingFieldError so callers can tell the
// two apart.
type WrongTypeError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("field %s has type %s, expected %s", e.Field, e.Actual, e.Expected)
}

// NewWrongTypeError creates a new WrongTypeError.
func NewWrongTypeError(field, expected, actual string) *WrongTypeError {
	return &WrongTypeError{Field: field, Expected: expected, Actual: actual}
}

// BadRequestError reports a malformed or unresolvable request, e.g. an
// unknown capability or action.
type BadRequestError struct {
	Message string
	Err     error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BadRequestError) Unwrap() error { return e.Err }

// NewBadRequestError creates a new BadRequestError.
func NewBadRequestError(format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// IsBadRequest checks whether an error should be reported to the client as a
// bad request. Missing and wrongly typed fields count.
func IsBadRequest(err error) bool {
	var br *BadRequestError
	var mf *MissingFieldError
	var wt *WrongTypeError
	return errors.As(err, &br) || errors.As(err, &mf) || errors.As(err, &wt)
}

// UnauthorizedError is raised by step code when the request's security
// context fails authentication checks.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// IsUnauthorized checks if an error is or wraps an UnauthorizedError.
func IsUnauthorized(err error) bool {
	var e *UnauthorizedError
	return errors.As(err, &e)
}

// ForbiddenError is raised by step code when an authenticated caller is not
// allowed to perform the action.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "forbidden"
}

// NewForbiddenError creates a new ForbiddenError.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// IsForbidden checks if an error is or wraps a ForbiddenError.
func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

// TimeoutError reports that the request deadline was exceeded during
// pipeline execution.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("deadline exceeded at %s", e.Stage)
	}
	return "deadline exceeded"
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(stage string) *TimeoutError {
	return &TimeoutError{Stage: stage}
}

// IsTimeout checks if an error is or wraps a TimeoutError, including the
// context package's deadline error.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e) || errors.Is(err, context.DeadlineExceeded)
}

// ExecutionError wraps any other failure raised by step code or downstream
// collaborators during request execution.
type ExecutionError struct {
	Capability string
	Action     string
	Step       string
	Err        error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Step != "":
		return fmt.Sprintf("execution failed in %s/%s step %s: %v", e.Capability, e.Action, e.Step, e.Err)
	case e.Capability != "":
		return fmt.Sprintf("execution failed in %s/%s: %v", e.Capability, e.Action, e.Err)
	default:
		return fmt.Sprintf("execution failed: %v", e.Err)
	}
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps cause with capability/action context.
func NewExecutionError(capability, action string, cause error) *ExecutionError {
	return &ExecutionError{Capability: capability, Action: action, Err: cause}
}

// IsExecution checks if an error is or wraps an ExecutionError.
func IsExecution(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// InternalError reports a violated framework invariant, e.g. a factory
// adapter producing a config of the wrong declared type.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// NewInternalError creates a new InternalError.
func NewInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// IsInternal checks if an error is or wraps an InternalError.
func IsInternal(err error) bool {
	var e *InternalError
	return errors.As(err, &e)
}

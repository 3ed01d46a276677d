package snapshot

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a provider failure. The same code is reported whichever
// operation failed.
type Code string

const (
	CodeAuth       Code = "AUTH_ERROR"
	CodePermission Code = "PERMISSION_ERROR"
	CodeQuota      Code = "QUOTA_ERROR"
	CodeNotFound   Code = "NOT_FOUND"
	CodeCommand    Code = "COMMAND_ERROR"
	CodeTimeout    Code = "TIMEOUT"
	// CodeNotReady is returned by DescribeSnapshot while the snapshot is
	// still being produced. It is expected and not a failure.
	CodeNotReady Code = "NOT_READY"
)

// Operation names used in error details.
const (
	OpVerify   = "verify_instance"
	OpCreate   = "create_snapshot"
	OpDescribe = "describe_snapshot"
	OpDelete   = "delete_snapshot"
)

// Details carries context about a failed provider call.
type Details struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Resource  string    `json:"resource,omitempty"`
}

// Error is the structured failure returned by every Provider operation.
type Error struct {
	Code    Code    `json:"errorCode"`
	Message string  `json:"message"`
	Details Details `json:"details"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds an Error for op on resource.
func NewError(code Code, op, resource, message string, now time.Time) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: Details{Timestamp: now.UTC(), Operation: op, Resource: resource},
	}
}

// CodeOf returns the Code carried by err, or "" if err is not a provider error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// AsError returns the provider error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsNotReady reports whether err means the snapshot exists but is not ready yet.
func IsNotReady(err error) bool {
	return CodeOf(err) == CodeNotReady
}

// IsNotFound reports whether err means the remote resource does not exist.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

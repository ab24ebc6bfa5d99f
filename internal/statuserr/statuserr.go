// Package statuserr defines the classified error taxonomy shared by every
// status checker. The retry executor is the single place these errors are
// absorbed and turned into result objects; nothing above the per-checker
// boundary propagates them further.
package statuserr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/smithy-go"
)

// StatusCheckError is the base classified error. It carries the component
// that raised it plus optional details.
type StatusCheckError struct {
	Component string
	Message   string
	Details   map[string]string
	Timestamp time.Time
	Cause     error
}

// New creates a StatusCheckError for the given component.
func New(component, message string, cause error) *StatusCheckError {
	return &StatusCheckError{
		Component: component,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

func (e *StatusCheckError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *StatusCheckError) Unwrap() error { return e.Cause }

// ConnectionError marks network, endpoint or credential reachability
// failures.
type ConnectionError struct{ StatusCheckError }

// PermissionError marks AccessDenied-class API failures.
type PermissionError struct{ StatusCheckError }

// TimeoutError marks an attempt that exceeded its deadline.
type TimeoutError struct{ StatusCheckError }

// NewConnection wraps err as a connection failure.
func NewConnection(component, message string, cause error) *ConnectionError {
	return &ConnectionError{*New(component, message, cause)}
}

// NewPermission wraps err as a permission failure.
func NewPermission(component, message string, cause error) *PermissionError {
	return &PermissionError{*New(component, message, cause)}
}

// NewTimeout wraps err as a timeout failure.
func NewTimeout(component, message string, cause error) *TimeoutError {
	return &TimeoutError{*New(component, message, cause)}
}

// AWS error codes that classify as permission failures.
var permissionCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"UnauthorizedOperation": true,
	"Forbidden":             true,
}

// Keywords that mark connectivity-class failures in error text.
var connectionKeywords = []string{
	"connection",
	"network",
	"endpoint",
	"no such host",
	"dial tcp",
	"connection refused",
	"unable to load",
	"no credentials",
	"failed to retrieve credentials",
}

// Keywords whose presence in a validation error message indicates the
// referenced resource does not exist.
var notFoundKeywords = []string{
	"not found",
	"does not exist",
	"no such",
	"cannot be found",
}

// Classify wraps a raw error into the taxonomy for the given component.
// Timeouts take precedence, then permission codes, then connectivity
// keywords; anything else stays a plain StatusCheckError.
func Classify(component string, err error) error {
	if err == nil {
		return nil
	}
	var (
		sce *StatusCheckError
		ce  *ConnectionError
		pe  *PermissionError
		te  *TimeoutError
	)
	if errors.As(err, &sce) || errors.As(err, &ce) || errors.As(err, &pe) || errors.As(err, &te) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(component, "operation timed out", err)
	}
	if IsPermission(err) {
		return NewPermission(component, "permission denied", err)
	}
	if IsConnection(err) {
		return NewConnection(component, "connection failed", err)
	}
	return New(component, "check failed", err)
}

// IsTimeout reports whether err classifies as a timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}

// IsPermission reports whether err classifies as a permission failure.
func IsPermission(err error) bool {
	var pe *PermissionError
	if errors.As(err, &pe) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return permissionCodes[apiErr.ErrorCode()]
	}
	return false
}

// IsConnection reports whether err classifies as a connectivity failure.
func IsConnection(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range connectionKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// IsMissingCredentials reports whether err indicates absent or unloadable
// credentials, a narrower sub-case of connection failures.
func IsMissingCredentials(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no credentials") ||
		strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "unable to load")
}

// IsNotFound reports whether err confirms the referenced resource is gone.
// ResourceNotFoundException is definitive; validation errors only count when
// their message indicates non-existence. Permission and other unclassified
// errors deliberately return false so callers assume the resource still
// exists.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "ResourceNotFoundException" || code == "ResourceNotFound" {
			return true
		}
		if code == "ValidationException" {
			msg := strings.ToLower(apiErr.ErrorMessage())
			for _, kw := range notFoundKeywords {
				if strings.Contains(msg, kw) {
					return true
				}
			}
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "resourcenotfound") {
		return true
	}
	return false
}

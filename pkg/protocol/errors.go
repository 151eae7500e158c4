package protocol

import (
	"fmt"

	"github.com/janus-web/janus-db/pkg/types"
)

// StatusError is the common shape of every terminal precondition failure.
// Callers branch on the concrete type (errors.As) or on the status code.
type StatusError interface {
	error
	StatusCode() int
}

// MethodNotAllowedError reports a method whose bit is not set in the path's
// CORS bitset. It carries the allowed set and the current immutability flag
// so callers can render a full 405 response.
type MethodNotAllowedError struct {
	Method    types.Method
	Allowed   types.MethodSet
	Immutable bool
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed (allowed: %s)", e.Method, e.Allowed)
}

func (e *MethodNotAllowedError) StatusCode() int { return 405 }

// ForbiddenError reports a caller lacking the required role.
type ForbiddenError struct {
	Method   types.Method
	Required types.RoleId
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("method %s requires role %q", e.Method, e.Required)
}

func (e *ForbiddenError) StatusCode() int { return 403 }

// NotFoundError reports a path that never had content (version 0).
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.Path)
}

func (e *NotFoundError) StatusCode() int { return 404 }

// GoneError reports a read of a path in the Gone state (version > 0,
// size 0).
type GoneError struct {
	Path string
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("resource %s is gone", e.Path)
}

func (e *GoneError) StatusCode() int { return 410 }

// ConflictError reports a mutation attempt against an immutable resource.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s is immutable", e.Path)
}

func (e *ConflictError) StatusCode() int { return 409 }

// PaymentError reports a payload whose chunk prices exceed the supplied
// payment. Nothing is committed; Required carries the total the caller must
// supply to retry.
type PaymentError struct {
	Required uint64
	Supplied uint64
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %d, supplied %d", e.Required, e.Supplied)
}

func (e *PaymentError) StatusCode() int { return 402 }

// InvalidRequestError reports a structurally malformed request, rejected at
// the boundary before any state is touched.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func (e *InvalidRequestError) StatusCode() int { return 400 }

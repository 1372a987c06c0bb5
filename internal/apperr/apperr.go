// Package apperr holds the classified errors shared across the gateway.
// Each carries a Kind that the HTTP layer maps to a status code.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable matches every error produced by Upstream.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
func (notFoundError) Kind() string  { return "not_found" }

// InvalidError reports a malformed request parameter. Its message is meant
// for the caller.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string { return e.Field + " " + e.Reason }
func (e *InvalidError) Kind() string  { return "bad_request" }

// UpstreamError reports that the provider could not be consulted.
// It is never the caller's fault and is never merged into validation errors.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: upstream unavailable", e.Op)
	}
	return fmt.Sprintf("%s: upstream unavailable: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstreamUnavailable as a match.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Kind classifies the error for the HTTP layer. A provider that did not
// answer within the call timeout is a "timeout".
func (e *UpstreamError) Kind() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "upstream_unavailable"
}

// Upstream wraps err as an UpstreamError for operation op.
// An error that already is one is returned unchanged.
func Upstream(op string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

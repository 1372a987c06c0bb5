package httptransport

import (
	"context"
	"errors"
	"net/http"

	"github.com/iliamunaev/facility-gateway/internal/apperr"
)

// kinder is satisfied by domain errors
// that carry a classification kind.
type kinder interface {
	Kind() string
}

// kindToStatus maps error classification kinds
// to HTTP status codes.
var kindToStatus = map[string]int{
	"bad_request":          http.StatusBadRequest,
	"not_found":            http.StatusNotFound,
	"upstream_unavailable": http.StatusBadGateway,
	"timeout":              http.StatusGatewayTimeout,
	"canceled":             http.StatusRequestTimeout,
}

// errorKind returns the kind of an error.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[errorKind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// errorMessage is the client-facing text for a failed request. Internal
// details stay in the logs.
func errorMessage(err error) string {
	var invalid *apperr.InvalidError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	switch errorKind(err) {
	case "upstream_unavailable":
		return "facility provider unavailable"
	case "timeout":
		return "facility provider timed out"
	case "canceled":
		return "request canceled"
	case "not_found":
		return "not found"
	case "bad_request":
		return "bad request"
	default:
		return "internal error"
	}
}

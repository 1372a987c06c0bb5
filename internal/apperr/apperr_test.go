package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := Upstream("currencies", errors.New("connection refused"))

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.EqualError(t, err, "currencies: upstream unavailable: connection refused")

	var ue *UpstreamError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &ue))
	assert.Equal(t, "upstream_unavailable", ue.Kind())
}

func TestUpstreamKeepsCause(t *testing.T) {
	t.Parallel()

	err := Upstream("roles", fmt.Errorf("GET /counterparty-roles: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	var ue *UpstreamError
	assert.True(t, errors.As(err, &ue))
	assert.Equal(t, "timeout", ue.Kind())
}

func TestUpstreamDoesNotDoubleWrap(t *testing.T) {
	t.Parallel()

	inner := Upstream("product type", errors.New("boom"))
	outer := Upstream("reference data", fmt.Errorf("fetch: %w", inner))

	assert.Equal(t, "fetch: product type: upstream unavailable: boom", outer.Error())
}

func TestUpstreamNilCause(t *testing.T) {
	t.Parallel()

	assert.EqualError(t, &UpstreamError{Op: "subtypes"}, "subtypes: upstream unavailable")
}

func TestNotFoundKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not_found", ErrNotFound.Kind())
	assert.ErrorIs(t, fmt.Errorf("journal: %w", ErrNotFound), ErrNotFound)
}

func TestInvalidError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("submissions: %w", &InvalidError{Field: "facilityIdentifier", Reason: "must be exactly 10 digits"})

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bad_request", invalid.Kind())
	assert.Equal(t, "facilityIdentifier must be exactly 10 digits", invalid.Error())
}

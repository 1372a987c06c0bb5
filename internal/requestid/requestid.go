// Package requestid carries the inbound request id through a context.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the id is echoed in.
const Header = "X-Request-Id"

type ctxKey struct{}

// New returns a fresh id.
func New() string {
	return uuid.NewString()
}

// With returns a copy of ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id stored in ctx, or "" when there is none.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

package requestid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Empty(t, From(context.Background()))

	id := New()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	ctx := With(context.Background(), id)
	assert.Equal(t, id, From(ctx))
	assert.NotEqual(t, id, New())
}

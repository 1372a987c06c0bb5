package journal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

func TestStamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	e := Stamp(Entry{FacilityIdentifier: "0030000321"}, now)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now.UTC(), e.RecordedAt)

	kept := Stamp(Entry{ID: "fixed", RecordedAt: now}, time.Now())
	assert.Equal(t, "fixed", kept.ID)
	assert.Equal(t, now, kept.RecordedAt)
}

func TestMemory_RecordAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Record(ctx, Entry{FacilityIdentifier: "A", State: "all_created", RecordedAt: base.Add(time.Second)}))
	require.NoError(t, m.Record(ctx, Entry{FacilityIdentifier: "B", State: "all_created"}))
	require.NoError(t, m.Record(ctx, Entry{
		FacilityIdentifier: "A",
		State:              "partially_failed",
		RecordedAt:         base,
		Created:            []Created{{EntityName: model.Obligations, Index: 0, Identifier: "OB1"}},
		Failures:           []model.ValidationError{model.Indexed(model.Obligations, 1, "Bad request")},
	}))

	got, err := m.List(ctx, "A")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "partially_failed", got[0].State)
	assert.Equal(t, "all_created", got[1].State)
	assert.Len(t, got[0].Created, 1)
	assert.Len(t, got[0].Failures, 1)

	none, err := m.List(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("FACILITY_GATEWAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FACILITY_GATEWAY_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	p, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()

	facilityID := "T" + time.Now().Format("150405.000000")
	require.NoError(t, p.Record(ctx, Entry{
		FacilityIdentifier: facilityID,
		Operation:          "create",
		State:              "partially_failed",
		Created:            []Created{{EntityName: model.Obligations, Index: 0, Identifier: "OB1"}},
		Failures:           []model.ValidationError{model.Indexed(model.Obligations, 1, "Bad request")},
	}))

	got, err := p.List(ctx, facilityID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "partially_failed", got[0].State)
	assert.Equal(t, "OB1", got[0].Created[0].Identifier)
	require.NotNil(t, got[0].Failures[0].Index)
	assert.Equal(t, 1, *got[0].Failures[0].Index)
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

func TestStripByField_Currency(t *testing.T) {
	t.Parallel()

	p := model.FacilityRequest{
		Overview:          model.FacilityOverview{Currency: "GBP"},
		Counterparties:    []model.Counterparty{{RoleCode: "100"}},
		Obligations:       []model.Obligation{{Currency: "USD"}, {Currency: "EUR"}},
		RepaymentProfiles: []model.RepaymentProfile{{Currency: "GBP"}},
	}

	got := StripByField(p, "currency")

	assert.Equal(t, Stripped{
		Field:       "currency",
		Overview:    "GBP",
		HasOverview: true,
		Collections: []FieldValues{
			{Collection: model.Obligations, Values: []string{"USD", "EUR"}},
			{Collection: model.RepaymentProfiles, Values: []string{"GBP"}},
			{Collection: model.FixedFees, Values: []string{}},
		},
	}, got)
}

func TestStripByField_OnlyCarryingCollections(t *testing.T) {
	t.Parallel()

	p := model.FacilityRequest{
		Counterparties: []model.Counterparty{{RoleCode: "100"}, {RoleCode: "500"}},
		Obligations:    []model.Obligation{{SubtypeCode: "OST001"}},
	}

	got := StripByField(p, "roleCode")

	assert.False(t, got.HasOverview)
	assert.Equal(t, []FieldValues{
		{Collection: model.Counterparties, Values: []string{"100", "500"}},
	}, got.Collections)
}

func TestStripByField_UnknownField(t *testing.T) {
	t.Parallel()

	got := StripByField(model.FacilityRequest{Obligations: []model.Obligation{{}}}, "nope")
	assert.Empty(t, got.Collections)
	assert.False(t, got.HasOverview)
}

package validation

import "github.com/iliamunaev/facility-gateway/internal/model"

// FieldValues is one collection's projection onto a single field.
// Values[i] belongs to element i of the collection.
type FieldValues struct {
	Collection string
	Values     []string
}

// Stripped is a composite payload reduced to one field.
type Stripped struct {
	Field       string
	Overview    string
	HasOverview bool
	Collections []FieldValues
}

type fielder interface {
	Field(name string) (string, bool)
}

// StripByField projects every collection of p whose elements carry field
// down to that field's values. Collections appear in declaration order and
// values keep their element order, so positions are ordinal indexes.
func StripByField(p model.FacilityRequest, field string) Stripped {
	s := Stripped{Field: field}
	s.Overview, s.HasOverview = p.Overview.Field(field)

	appendIf := func(fv FieldValues, ok bool) {
		if ok {
			s.Collections = append(s.Collections, fv)
		}
	}
	appendIf(project(model.Counterparties, p.Counterparties, field))
	appendIf(project(model.Obligations, p.Obligations, field))
	appendIf(project(model.RepaymentProfiles, p.RepaymentProfiles, field))
	appendIf(project(model.FixedFees, p.FixedFees, field))

	return s
}

func project[T fielder](collection string, items []T, field string) (FieldValues, bool) {
	var zero T
	if _, ok := zero.Field(field); !ok {
		return FieldValues{}, false
	}
	values := make([]string, len(items))
	for i, item := range items {
		values[i], _ = item.Field(field)
	}
	return FieldValues{Collection: collection, Values: values}, true
}

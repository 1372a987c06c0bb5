package validation

import (
	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

// Rule is one independent cross-entity check.
type Rule struct {
	Name  string
	Check func() []model.ValidationError
}

// Rules returns the cross-entity checks for p in reporting order.
func Rules(p model.FacilityRequest, ref model.ReferenceData) []Rule {
	return []Rule{
		{Name: "overview", Check: func() []model.ValidationError {
			return ValidateOverview(p.Overview, ref)
		}},
		{Name: "currencies", Check: func() []model.ValidationError {
			return GenerateValidationErrors(StripByField(p, "currency"), ref.SupportedCurrencies)
		}},
		{Name: "counterparty_roles", Check: func() []model.ValidationError {
			return ValidateCounterpartyRoles(p.Counterparties, ref)
		}},
		{Name: "obligation_subtypes", Check: func() []model.ValidationError {
			return ValidateObligationSubtypes(p.Overview.ProductTypeCode, p.Obligations, ref)
		}},
		{Name: "repayment_due_dates", Check: func() []model.ValidationError {
			return ValidateRepaymentDueDates(p.RepaymentProfiles)
		}},
	}
}

// Run executes rules concurrently and concatenates their results in rule
// order, regardless of which rule finished first.
func Run(rules []Rule) []model.ValidationError {
	results := make([][]model.ValidationError, len(rules))

	var g errgroup.Group
	for i, r := range rules {
		g.Go(func() error {
			results[i] = r.Check()
			return nil
		})
	}
	_ = g.Wait()

	var out []model.ValidationError
	for _, errs := range results {
		out = append(out, errs...)
	}
	return out
}

// Validate runs every cross-entity rule for p against ref.
func Validate(p model.FacilityRequest, ref model.ReferenceData) []model.ValidationError {
	return Run(Rules(p, ref))
}

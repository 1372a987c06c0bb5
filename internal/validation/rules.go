// Package validation checks a composite facility payload before anything is
// sent to the provider.
//
// Every rule is a pure function of the payload and the reference data and
// returns the problems it found. Rules never fail; an empty result means the
// payload passed that rule.
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliamunaev/facility-gateway/internal/model"
)

var (
	SharePercentageMin = decimal.NewFromInt(1)
	SharePercentageMax = decimal.NewFromInt(100)
)

// ValidateOverview checks the overview currency and product type.
// Values that fail their format guard are left to field-level validation.
func ValidateOverview(o model.FacilityOverview, ref model.ReferenceData) []model.ValidationError {
	var errs []model.ValidationError

	if IsValidFormat(o.Currency, CurrencyFormat) && !ref.CurrencySupported(o.Currency) {
		errs = append(errs, model.Unindexed(model.Overview,
			fmt.Sprintf("overview.currency is not supported (%s)", o.Currency)))
	}

	if IsValidFormat(o.ProductTypeCode, ProductTypeCodeFormat) {
		if supported, probed := ref.ProductTypeSupported(o.ProductTypeCode); probed && !supported {
			errs = append(errs, model.Unindexed(model.Overview,
				fmt.Sprintf("overview.productTypeCode is not supported (%s)", o.ProductTypeCode)))
		}
	}

	return errs
}

// GenerateValidationErrors reports every collection value of s that is not
// in supported. The overview is skipped; ValidateOverview covers it.
func GenerateValidationErrors(s Stripped, supported []string) []model.ValidationError {
	set := make(map[string]struct{}, len(supported))
	for _, v := range supported {
		set[v] = struct{}{}
	}

	var errs []model.ValidationError
	for _, c := range s.Collections {
		for i, v := range c.Values {
			if _, ok := set[v]; ok {
				continue
			}
			errs = append(errs, model.Indexed(c.Collection, i,
				fmt.Sprintf("%s.%d.%s is not supported (%s)", c.Collection, i, s.Field, v)))
		}
	}
	return errs
}

// ValidateCounterpartyRoles checks that every counterparty takes a known
// role and, when that role requires one, carries a share percentage in
// [SharePercentageMin, SharePercentageMax]. Unknown roles are reported once
// and their share percentage is not checked.
func ValidateCounterpartyRoles(cps []model.Counterparty, ref model.ReferenceData) []model.ValidationError {
	var errs []model.ValidationError
	for i, c := range cps {
		role, ok := ref.Role(c.RoleCode)
		if !ok {
			errs = append(errs, model.Indexed(model.Counterparties, i,
				fmt.Sprintf("counterparties.%d.roleCode is not supported (%s)", i, c.RoleCode)))
			continue
		}
		if role.HasSharePercentage && !validSharePercentage(c.SharePercentage) {
			errs = append(errs, model.Indexed(model.Counterparties, i,
				fmt.Sprintf("counterparties.%d.sharePercentage must be a number between %s and %s for role %s",
					i, SharePercentageMin, SharePercentageMax, c.RoleCode)))
		}
	}
	return errs
}

func validSharePercentage(p *model.Percentage) bool {
	d, ok := p.Decimal()
	return ok && d.GreaterThanOrEqual(SharePercentageMin) && d.LessThanOrEqual(SharePercentageMax)
}

// ValidateObligationSubtypes checks every obligation subtype against the
// subtypes of productTypeCode.
func ValidateObligationSubtypes(productTypeCode string, obs []model.Obligation, ref model.ReferenceData) []model.ValidationError {
	if len(obs) == 0 {
		return nil
	}

	allowed := make(map[string]struct{})
	for _, st := range ref.SubtypesFor(productTypeCode) {
		allowed[st.Code] = struct{}{}
	}

	var errs []model.ValidationError
	for i, o := range obs {
		if _, ok := allowed[o.SubtypeCode]; ok {
			continue
		}
		errs = append(errs, model.Indexed(model.Obligations, i,
			fmt.Sprintf("obligations.%d.subtypeCode is not supported by product type %s", i, productTypeCode)))
	}
	return errs
}

// ValidateRepaymentDueDates requires every allocation due date, across all
// repayment profiles, to be distinct. A violation has no single owner and is
// reported once without an index.
func ValidateRepaymentDueDates(profiles []model.RepaymentProfile) []model.ValidationError {
	seen := make(map[string]struct{})
	for _, p := range profiles {
		for _, a := range p.Allocations {
			if _, dup := seen[a.DueDate]; dup {
				return []model.ValidationError{model.Unindexed(model.RepaymentProfiles,
					"repaymentProfiles.allocations.dueDate values must be unique")}
			}
			seen[a.DueDate] = struct{}{}
		}
	}
	return nil
}

package model

import "slices"

// CounterpartyRole is a provider-defined role a counterparty may take.
type CounterpartyRole struct {
	Code               string `json:"code"`
	Name               string `json:"name"`
	HasSharePercentage bool   `json:"hasSharePercentage"`
}

// ObligationSubtype is a provider-defined obligation subtype, scoped to one
// product type.
type ObligationSubtype struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	ProductTypeCode string `json:"productTypeCode"`
}

// ReferenceData is the snapshot of provider enumerations used to validate
// one request. It is read-only once built.
type ReferenceData struct {
	SupportedCurrencies []string
	// SupportedProductTypes holds the probe answer for every product type
	// code that was checked. Codes that were never probed are absent.
	SupportedProductTypes map[string]bool
	CounterpartyRoles     []CounterpartyRole
	ObligationSubtypes    []ObligationSubtype
}

// CurrencySupported reports whether code is a supported currency.
func (r ReferenceData) CurrencySupported(code string) bool {
	return slices.Contains(r.SupportedCurrencies, code)
}

// ProductTypeSupported reports the probe answer for code and whether code
// was probed at all.
func (r ReferenceData) ProductTypeSupported(code string) (supported, probed bool) {
	supported, probed = r.SupportedProductTypes[code]
	return supported, probed
}

// Role returns the counterparty role with the given code.
func (r ReferenceData) Role(code string) (CounterpartyRole, bool) {
	for _, role := range r.CounterpartyRoles {
		if role.Code == code {
			return role, true
		}
	}
	return CounterpartyRole{}, false
}

// SubtypesFor returns the obligation subtypes of a product type.
func (r ReferenceData) SubtypesFor(productTypeCode string) []ObligationSubtype {
	var out []ObligationSubtype
	for _, st := range r.ObligationSubtypes {
		if st.ProductTypeCode == productTypeCode {
			out = append(out, st)
		}
	}
	return out
}

// Package model defines the request and response payloads used by the API.
// It keeps transport-level types in one place for reuse.
package model

import "github.com/shopspring/decimal"

// Collection names, in declaration order. Error reports and stripped
// payloads always follow this order.
const (
	Overview          = "overview"
	Facility          = "facility"
	Counterparties    = "counterparties"
	Obligations       = "obligations"
	RepaymentProfiles = "repaymentProfiles"
	FixedFees         = "fixedFees"
)

// FacilityRequest is the composite payload for creating or updating a facility.
type FacilityRequest struct {
	Overview          FacilityOverview   `json:"overview"`
	Counterparties    []Counterparty     `json:"counterparties,omitempty" validate:"dive"`
	Obligations       []Obligation       `json:"obligations,omitempty" validate:"dive"`
	RepaymentProfiles []RepaymentProfile `json:"repaymentProfiles,omitempty" validate:"dive"`
	FixedFees         []FixedFee         `json:"fixedFees,omitempty" validate:"dive"`
}

// FacilityOverview holds the scalar fields of the root facility.
type FacilityOverview struct {
	FacilityIdentifier string          `json:"facilityIdentifier" validate:"required,numeric,len=10"`
	DealIdentifier     string          `json:"dealIdentifier" validate:"required,numeric,len=10"`
	ProductTypeCode    string          `json:"productTypeCode" validate:"required,product_type_code"`
	Currency           string          `json:"currency" validate:"required,currency_code"`
	EffectiveDate      string          `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	ExpiryDate         string          `json:"expiryDate" validate:"required,datetime=2006-01-02"`
	Amount             decimal.Decimal `json:"amount" validate:"gt=0"`
}

// Counterparty is a party taking a role on the facility.
type Counterparty struct {
	PartyIdentifier string      `json:"partyIdentifier" validate:"required,max=8"`
	RoleCode        string      `json:"roleCode" validate:"required,max=3"`
	SharePercentage *Percentage `json:"sharePercentage,omitempty"`
	StartDate       string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	ExitDate        string      `json:"exitDate" validate:"required,datetime=2006-01-02"`
}

// Obligation is a typed financial obligation under the facility.
type Obligation struct {
	SubtypeCode   string          `json:"subtypeCode" validate:"required,max=6"`
	Currency      string          `json:"currency" validate:"required,currency_code"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	EffectiveDate string          `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	MaturityDate  string          `json:"maturityDate" validate:"required,datetime=2006-01-02"`
}

// RepaymentProfile groups the scheduled allocations of a repayment plan.
type RepaymentProfile struct {
	Name        string       `json:"name" validate:"required,max=20"`
	Currency    string       `json:"currency" validate:"required,currency_code"`
	Allocations []Allocation `json:"allocations" validate:"required,min=1,dive"`
}

// Allocation is one scheduled repayment.
type Allocation struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

// FixedFee is a flat fee charged on the facility.
type FixedFee struct {
	Description   string          `json:"description" validate:"required,max=35"`
	Currency      string          `json:"currency" validate:"required,currency_code"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	EffectiveDate string          `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	ExpiryDate    string          `json:"expiryDate" validate:"required,datetime=2006-01-02"`
}

// FacilityResponse is returned once every part of the facility was accepted.
type FacilityResponse struct {
	FacilityIdentifier string          `json:"facilityIdentifier"`
	DealIdentifier     string          `json:"dealIdentifier"`
	Counterparties     []CreatedEntity `json:"counterparties"`
	Obligations        []CreatedEntity `json:"obligations"`
	RepaymentProfiles  []CreatedEntity `json:"repaymentProfiles"`
	FixedFees          []CreatedEntity `json:"fixedFees"`
}

// CreatedEntity links a submitted element to its provider identifier.
type CreatedEntity struct {
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
}

// ValidateResponse is returned by a successful dry run.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

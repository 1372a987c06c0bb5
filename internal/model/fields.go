package model

// Field returns the value of the named overview field and whether the
// overview carries it.
func (o FacilityOverview) Field(name string) (string, bool) {
	switch name {
	case "currency":
		return o.Currency, true
	case "productTypeCode":
		return o.ProductTypeCode, true
	case "facilityIdentifier":
		return o.FacilityIdentifier, true
	case "dealIdentifier":
		return o.DealIdentifier, true
	}
	return "", false
}

// Field returns the value of the named counterparty field.
func (c Counterparty) Field(name string) (string, bool) {
	switch name {
	case "partyIdentifier":
		return c.PartyIdentifier, true
	case "roleCode":
		return c.RoleCode, true
	}
	return "", false
}

// Field returns the value of the named obligation field.
func (o Obligation) Field(name string) (string, bool) {
	switch name {
	case "subtypeCode":
		return o.SubtypeCode, true
	case "currency":
		return o.Currency, true
	}
	return "", false
}

// Field returns the value of the named repayment profile field.
func (r RepaymentProfile) Field(name string) (string, bool) {
	switch name {
	case "name":
		return r.Name, true
	case "currency":
		return r.Currency, true
	}
	return "", false
}

// Field returns the value of the named fixed fee field.
func (f FixedFee) Field(name string) (string, bool) {
	switch name {
	case "description":
		return f.Description, true
	case "currency":
		return f.Currency, true
	}
	return "", false
}

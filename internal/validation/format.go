package validation

import (
	"regexp"
	"unicode/utf8"
)

// Constraints describe the expected shape of a single code value.
type Constraints struct {
	Min     int
	Max     int
	Pattern *regexp.Regexp
}

var (
	FacilityIdentifierFormat = Constraints{Min: 10, Max: 10, Pattern: regexp.MustCompile(`^\d{10}$`)}
	ProductTypeCodeFormat    = Constraints{Min: 3, Max: 3, Pattern: regexp.MustCompile(`^\d{3}$`)}
	CurrencyFormat           = Constraints{Min: 3, Max: 3, Pattern: regexp.MustCompile(`^[A-Z]{3}$`)}
	SubtypeCodeFormat        = Constraints{Min: 6, Max: 6, Pattern: regexp.MustCompile(`^OST\d{3}$`)}
	RoleCodeFormat           = Constraints{Min: 1, Max: 3, Pattern: regexp.MustCompile(`^[A-Z0-9]{1,3}$`)}
)

// IsValidFormat reports whether value is a string whose length lies in
// [c.Min, c.Max] and which matches c.Pattern when one is set.
// It accepts string and *string and returns false for anything else.
//
// A false result is not an error: field-level validation already reports
// malformed values. Callers use it to skip provider lookups that cannot
// succeed.
func IsValidFormat(value any, c Constraints) bool {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return false
		}
		s = *v
	default:
		return false
	}

	n := utf8.RuneCountInString(s)
	if n < c.Min || n > c.Max {
		return false
	}
	if c.Pattern != nil && !c.Pattern.MatchString(s) {
		return false
	}
	return true
}

package model

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Percentage is a share percentage as the client sent it. Any JSON value
// decodes without error; only a JSON number yields a usable value, so a
// quoted or boolean share is reported by validation rather than failing the
// whole request.
type Percentage struct {
	value   decimal.Decimal
	numeric bool
	raw     json.RawMessage
}

// NewPercentage returns a numeric Percentage.
func NewPercentage(d decimal.Decimal) *Percentage {
	return &Percentage{value: d, numeric: true}
}

// Decimal returns the value and whether it was sent as a JSON number.
// A nil Percentage is absent.
func (p *Percentage) Decimal() (decimal.Decimal, bool) {
	if p == nil {
		return decimal.Decimal{}, false
	}
	return p.value, p.numeric
}

func (p *Percentage) UnmarshalJSON(data []byte) error {
	*p = Percentage{raw: append(json.RawMessage(nil), data...)}

	b := bytes.TrimSpace(data)
	if len(b) == 0 || (b[0] != '-' && (b[0] < '0' || b[0] > '9')) {
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return nil
	}
	p.value, p.numeric = d, true
	return nil
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	switch {
	case p.numeric:
		return []byte(p.value.String()), nil
	case len(p.raw) > 0:
		return p.raw, nil
	default:
		return []byte("null"), nil
	}
}

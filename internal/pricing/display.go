package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RedactionMarker replaces the numeric price for viewers that are not approved.
const RedactionMarker = "*"

// DisplayPrice is the price field as serialized to clients. When Redacted is
// set the JSON output is the literal asterisk string instead of a number.
// Redaction happens at serialization time only; the numeric value is always
// computed first.
type DisplayPrice struct {
	Value    decimal.Decimal
	Redacted bool
}

// MarshalJSON implements json.Marshaler.
func (p DisplayPrice) MarshalJSON() ([]byte, error) {
	if p.Redacted {
		return json.Marshal(RedactionMarker)
	}
	return []byte(p.Value.StringFixed(2)), nil
}

// UnmarshalJSON implements json.Unmarshaler so views round-trip in tests.
func (p *DisplayPrice) UnmarshalJSON(data []byte) error {
	var marker string
	if err := json.Unmarshal(data, &marker); err == nil {
		if marker == RedactionMarker {
			p.Redacted = true
			p.Value = decimal.Decimal{}
			return nil
		}
		value, err := decimal.NewFromString(marker)
		if err != nil {
			return err
		}
		p.Value = value
		return nil
	}
	value, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	p.Value = value
	p.Redacted = false
	return nil
}

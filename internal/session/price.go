package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawPrice keeps a price exactly as the backend sent it: a JSON number in
// live chat responses, currency formatted text in historical records, or
// nothing at all.
type RawPrice struct {
	value any
}

// NumberPrice wraps a numeric price
func NumberPrice(v float64) RawPrice {
	return RawPrice{value: v}
}

// TextPrice wraps a formatted price such as "1 234,56 €"
func TextPrice(s string) RawPrice {
	return RawPrice{value: s}
}

// Raw returns the underlying float64, string or nil
func (p RawPrice) Raw() any {
	return p.value
}

// IsZero reports whether no price was provided
func (p RawPrice) IsZero() bool {
	return p.value == nil
}

// String returns the price as the backend formatted it
func (p RawPrice) String() string {
	switch v := p.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

// UnmarshalJSON accepts numbers, strings and null
func (p *RawPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		p.value = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode price text: %w", err)
		}
		p.value = s
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Anything else (bool, object) is kept as its raw text and will
		// normalize to zero.
		p.value = string(data)
		return nil
	}
	p.value = f
	return nil
}

// MarshalJSON writes the price back in its original form
func (p RawPrice) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// MarshalYAML writes the price back in its original form
func (p RawPrice) MarshalYAML() (interface{}, error) {
	return p.value, nil
}

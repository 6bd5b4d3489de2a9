package pricing

import (
	"encoding/json"
	"math"
	"testing"

	"BuyBuddy/internal/session"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name          string
		raw           any
		want          float64
		wantDefaulted bool
	}{
		{name: "float", raw: 1234.5, want: 1234.5},
		{name: "float32", raw: float32(12.5), want: 12.5},
		{name: "int", raw: 42, want: 42},
		{name: "int64", raw: int64(7), want: 7},
		{name: "json number", raw: json.Number("19.99"), want: 19.99},
		{name: "genuine zero", raw: 0.0, want: 0},
		{name: "euro with space grouping", raw: "1 234,56€", want: 1234.56},
		{name: "euro with nbsp grouping", raw: "1\u00a0234,56\u00a0€", want: 1234.56},
		{name: "narrow nbsp grouping", raw: "1\u202f234,56\u202f€", want: 1234.56},
		{name: "dot grouping decimal comma", raw: "1.234,56 €", want: 1234.56},
		{name: "comma grouping decimal dot", raw: "$1,234.56", want: 1234.56},
		{name: "decimal comma", raw: "699,00 €", want: 699},
		{name: "plain text number", raw: "749.99", want: 749.99},
		{name: "repeated comma grouping", raw: "1,234,567", want: 1234567},
		{name: "repeated dot grouping", raw: "1.234.567", want: 1234567},
		{name: "leading currency", raw: "€ 15", want: 15},
		{name: "pound", raw: "£9.99", want: 9.99},
		{name: "nil", raw: nil, wantDefaulted: true},
		{name: "empty string", raw: "", wantDefaulted: true},
		{name: "only currency", raw: " € ", wantDefaulted: true},
		{name: "garbage", raw: "prix sur demande", wantDefaulted: true},
		{name: "NaN", raw: math.NaN(), wantDefaulted: true},
		{name: "positive infinity", raw: math.Inf(1), wantDefaulted: true},
		{name: "negative infinity", raw: math.Inf(-1), wantDefaulted: true},
		{name: "textual infinity", raw: "Inf", wantDefaulted: true},
		{name: "unsupported type", raw: []int{1}, wantDefaulted: true},
		{name: "raw number price", raw: session.NumberPrice(699), want: 699},
		{name: "raw text price", raw: session.TextPrice("749,99 €"), want: 749.99},
		{name: "raw missing price", raw: session.RawPrice{}, wantDefaulted: true},
		{name: "nil raw price pointer", raw: (*session.RawPrice)(nil), wantDefaulted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.wantDefaulted, got.Defaulted)
			assert.False(t, math.IsNaN(got.Value) || math.IsInf(got.Value, 0))
		})
	}
}

func TestValue(t *testing.T) {
	assert.Equal(t, 1234.5, Value(1234.5))
	assert.Equal(t, 0.0, Value("n/a"))
}

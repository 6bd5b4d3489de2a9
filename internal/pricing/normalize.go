// Package pricing turns backend price representations into canonical floats
// and derives best-deal summaries from product sets.
package pricing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"BuyBuddy/internal/session"
)

// Price is a canonical price. Defaulted is set when the input could not be
// read as a finite number and Value fell back to zero, which lets callers
// tell a genuine zero apart from malformed data.
type Price struct {
	Value     float64
	Defaulted bool
}

// Value is Normalize without the metadata
func Value(raw any) float64 {
	return Normalize(raw).Value
}

// Normalize converts any price representation to a canonical float. It never
// fails: unusable input yields a zero Price with Defaulted set.
func Normalize(raw any) Price {
	switch v := raw.(type) {
	case nil:
		return defaulted()
	case session.RawPrice:
		return Normalize(v.Raw())
	case *session.RawPrice:
		if v == nil {
			return defaulted()
		}
		return Normalize(v.Raw())
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return Price{Value: float64(v)}
	case int64:
		return Price{Value: float64(v)}
	case json.Number:
		return parseText(v.String())
	case string:
		return parseText(v)
	default:
		return defaulted()
	}
}

func defaulted() Price {
	return Price{Defaulted: true}
}

func finite(v float64) Price {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return defaulted()
	}
	return Price{Value: v}
}

// parseText strips currency symbols and whitespace, settles which of ',' and
// '.' is the decimal separator, then parses what is left.
func parseText(s string) Price {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return defaulted()
	}

	cleaned = resolveSeparators(cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return defaulted()
	}
	return finite(v)
}

// resolveSeparators rewrites grouping and decimal marks into the form
// strconv.ParseFloat expects. When both marks appear the rightmost one is the
// decimal separator. A mark that repeats is grouping. A single comma on its
// own is a decimal comma.
func resolveSeparators(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

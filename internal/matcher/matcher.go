// Package matcher re-attaches products from a session's flat product list
// to the history entry whose search produced them.
//
// The backend tags products only with the free text of the search that found
// them, so the association is heuristic. Near-duplicate queries across turns
// can land a product on the wrong turn, or on more than one turn.
package matcher

import (
	"strings"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/session"
)

// PrefixLength bounds, in runes, how much of each text the substring rule
// compares. Long user messages often have chatty tails that the backend's
// query never contains.
const PrefixLength = 50

// Rule names the test that associated a product with an entry
type Rule int

const (
	NoMatch Rule = iota
	// StructuredQuery is an exact, case-insensitive match against the
	// entry's machine derived query.
	StructuredQuery
	// UserMessage is a case-insensitive substring match, either way round,
	// against the prefix of the raw user message.
	UserMessage
)

func (r Rule) String() string {
	switch r {
	case StructuredQuery:
		return "structured_query"
	case UserMessage:
		return "user_message"
	default:
		return "none"
	}
}

// Match returns copies of the products that belong to entry, in input order
func Match(entry api.HistoryEntry, products []session.Product) []session.Product {
	var matched []session.Product
	for _, p := range products {
		if Classify(entry, p) != NoMatch {
			matched = append(matched, p)
		}
	}
	return matched
}

// Classify reports which rule, if any, ties product to entry. Rules are
// tried in order and the first hit wins.
func Classify(entry api.HistoryEntry, product session.Product) Rule {
	query := fold(product.SearchQuery)
	if query == "" {
		return NoMatch
	}

	userMessage := fold(entry.UserMessage)
	if structured := fold(entry.StructuredQuery.Text()); structured != "" && structured != userMessage {
		if query == structured {
			return StructuredQuery
		}
	}

	if userMessage == "" {
		return NoMatch
	}
	q, m := prefix(query), prefix(userMessage)
	if strings.Contains(m, q) || strings.Contains(q, m) {
		return UserMessage
	}

	return NoMatch
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func prefix(s string) string {
	runes := []rune(s)
	if len(runes) <= PrefixLength {
		return s
	}
	return strings.TrimSpace(string(runes[:PrefixLength]))
}

package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"BuyBuddy/internal/session"
)

// ChatRequest is the body of POST /api/v1/chat. A nil SessionID is sent as
// JSON null and asks the backend to open a new session.
type ChatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

// ChatResponse is the raw body of a chat reply. Which fields are present
// depends on the branch the backend took; use Reply to classify it.
type ChatResponse struct {
	SessionID              string            `json:"session_id"`
	Message                string            `json:"message,omitempty"`
	StructuredQuery        *StructuredQuery  `json:"structured_query,omitempty"`
	ConversationalResponse string            `json:"conversational_response,omitempty"`
	ProductMessage         string            `json:"product_message,omitempty"`
	Products               []session.Product `json:"products,omitempty"`
	PriceComparison        *PriceComparison  `json:"price_comparison,omitempty"`
	Error                  string            `json:"error,omitempty"`
}

// PriceComparison is the backend's own comparison payload. Prices may arrive
// as numbers or formatted text and are normalized before use.
type PriceComparison struct {
	BestDeal *struct {
		Name     string           `json:"name"`
		Price    session.RawPrice `json:"price"`
		Platform string           `json:"platform"`
	} `json:"best_deal"`
	PriceRange *struct {
		Min session.RawPrice `json:"min"`
		Max session.RawPrice `json:"max"`
	} `json:"price_range"`
	TotalCompared int `json:"total_compared"`
}

// StructuredQuery is the machine derived search behind a user message. The
// history endpoint stores it as a JSON document inside a string column, the
// chat endpoint returns it as an object, and older rows hold plain text.
type StructuredQuery struct {
	QueryText   string   `json:"query_text"`
	ProductType string   `json:"product_type,omitempty"`
	Category    string   `json:"category,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// UnmarshalJSON accepts an object, a string holding an object, or plain text
func (q *StructuredQuery) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = StructuredQuery{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") {
			if err := q.UnmarshalJSON([]byte(trimmed)); err == nil {
				return nil
			}
		}
		*q = StructuredQuery{QueryText: s}
		return nil
	}

	type plain StructuredQuery
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = StructuredQuery(p)
	return nil
}

// Text returns the query text, or "" for a nil query
func (q *StructuredQuery) Text() string {
	if q == nil {
		return ""
	}
	return strings.TrimSpace(q.QueryText)
}

// HistoryEntry is one exchange as recorded by GET /api/v1/history/conversations
type HistoryEntry struct {
	ID                int              `json:"id,omitempty"`
	SessionID         string           `json:"session_id"`
	UserMessage       string           `json:"user_message"`
	AssistantResponse string           `json:"assistant_response"`
	Timestamp         Timestamp        `json:"timestamp"`
	StructuredQuery   *StructuredQuery `json:"structured_query,omitempty"`
}

// SearchEntry is one row of GET /api/v1/history/searches
type SearchEntry struct {
	ID              int              `json:"id,omitempty"`
	SessionID       string           `json:"session_id"`
	QueryText       string           `json:"query_text"`
	StructuredQuery *StructuredQuery `json:"structured_query,omitempty"`
	NumResults      int              `json:"num_results"`
	Timestamp       Timestamp        `json:"timestamp"`
}

// timestampLayouts lists the formats the backend is known to emit. sqlite's
// CURRENT_TIMESTAMP has neither a 'T' nor a zone and is UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp decodes the backend's timestamp variants
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses a timestamp string; unknown layouts decode to the zero time
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = ParseTimestamp(s)
	return nil
}

// MarshalJSON writes RFC 3339
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp parses s with the known backend layouts, returning the zero
// time when none matches.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts
		}
	}
	return time.Time{}
}

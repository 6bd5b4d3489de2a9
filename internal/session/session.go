package session

import (
	"fmt"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat message. Messages are never mutated once
// they are part of a Session; a changed message is a new value.
type Message struct {
	ID              string           `json:"id" yaml:"id"`
	Seq             uint64           `json:"seq" yaml:"seq"`
	Role            Role             `json:"role" yaml:"role"`
	Content         string           `json:"content" yaml:"content"`
	Timestamp       time.Time        `json:"timestamp" yaml:"timestamp"`
	Products        []Product        `json:"products,omitempty" yaml:"products,omitempty"`
	PriceComparison *PriceComparison `json:"price_comparison,omitempty" yaml:"price_comparison,omitempty"`
	ProductMessage  string           `json:"product_message,omitempty" yaml:"product_message,omitempty"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Product is a single product listing as returned by the backend
type Product struct {
	Name        string   `json:"name" yaml:"name"`
	Price       RawPrice `json:"price" yaml:"price"`
	Link        string   `json:"link" yaml:"link"`
	Platform    string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	SearchQuery string   `json:"search_query,omitempty" yaml:"search_query,omitempty"`
}

// Deal is the cheapest product of a comparison
type Deal struct {
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Platform string  `json:"platform" yaml:"platform"`
}

// PriceRange holds the canonical price extrema of a comparison
type PriceRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// PriceComparison summarizes a product set. A nil *PriceComparison means no
// product had a usable price.
type PriceComparison struct {
	BestDeal      Deal       `json:"best_deal" yaml:"best_deal"`
	PriceRange    PriceRange `json:"price_range" yaml:"price_range"`
	TotalCompared int        `json:"total_compared" yaml:"total_compared"`
}

// Valid reports whether the comparison satisfies
// Min <= BestDeal.Price <= Max and TotalCompared >= 1.
func (pc *PriceComparison) Valid() bool {
	if pc == nil {
		return false
	}
	return pc.TotalCompared >= 1 &&
		pc.PriceRange.Min > 0 &&
		pc.PriceRange.Min <= pc.BestDeal.Price &&
		pc.BestDeal.Price <= pc.PriceRange.Max
}

// Session represents a chat session. An empty ID means the backend has not
// assigned one yet.
type Session struct {
	ID       string    `json:"id" yaml:"id"`
	Messages []Message `json:"messages" yaml:"messages"`
}

// MessageID formats the identifier of the message with the given sequence number
func MessageID(seq uint64) string {
	return fmt.Sprintf("msg-%06d", seq)
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	if m.Products != nil {
		products := make([]Product, len(m.Products))
		copy(products, m.Products)
		m.Products = products
	}
	if m.PriceComparison != nil {
		pc := *m.PriceComparison
		m.PriceComparison = &pc
	}
	return m
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	out := Session{ID: s.ID}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, msg := range s.Messages {
			out.Messages[i] = msg.Clone()
		}
	}
	return out
}

// Last returns the most recent message, if any
func (s Session) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

package api

import (
	"strings"

	"BuyBuddy/internal/session"
)

// Reply is the classified outcome of a chat exchange. It is one of
// ConversationalReply, ProductResult or ErrorResult.
type Reply interface {
	// Session returns the session id the backend attached to the reply
	Session() string
	isReply()
}

// ConversationalReply is a text only answer
type ConversationalReply struct {
	SessionID      string
	Text           string
	ProductMessage string
}

// ProductResult is an answer that carries product listings. Products is
// never empty; Comparison is whatever the backend supplied, possibly nil.
type ProductResult struct {
	SessionID       string
	Text            string
	ProductMessage  string
	StructuredQuery *StructuredQuery
	Products        []session.Product
	Comparison      *PriceComparison
}

// ErrorResult is an application error reported inside a successful response
type ErrorResult struct {
	SessionID string
	Message   string
}

func (r ConversationalReply) Session() string { return r.SessionID }
func (r ProductResult) Session() string       { return r.SessionID }
func (r ErrorResult) Session() string         { return r.SessionID }

func (ConversationalReply) isReply() {}
func (ProductResult) isReply()       {}
func (ErrorResult) isReply()         {}

// emptyReplyMessage matches the backend's own wording for a turn that
// produced nothing.
const emptyReplyMessage = "Aucune réponse générée. Veuillez réessayer."

// Reply classifies the response. An error field always wins; a response with
// no text, no products and no product message is treated as an error too.
func (r *ChatResponse) Reply() Reply {
	if msg := strings.TrimSpace(r.Error); msg != "" {
		return ErrorResult{SessionID: r.SessionID, Message: msg}
	}

	if len(r.Products) > 0 {
		products := make([]session.Product, len(r.Products))
		copy(products, r.Products)
		return ProductResult{
			SessionID:       r.SessionID,
			Text:            r.ConversationalResponse,
			ProductMessage:  r.ProductMessage,
			StructuredQuery: r.StructuredQuery,
			Products:        products,
			Comparison:      r.PriceComparison,
		}
	}

	if strings.TrimSpace(r.ConversationalResponse) == "" && strings.TrimSpace(r.ProductMessage) == "" {
		return ErrorResult{SessionID: r.SessionID, Message: emptyReplyMessage}
	}

	return ConversationalReply{
		SessionID:      r.SessionID,
		Text:           r.ConversationalResponse,
		ProductMessage: r.ProductMessage,
	}
}

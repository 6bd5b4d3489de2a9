package chatbot

import (
	"sort"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/matcher"
	"BuyBuddy/internal/pricing"
	"BuyBuddy/internal/session"
)

// Reconstruct rebuilds the message list of a stored conversation. Entries
// are put in chronological order, each producing a user message followed by
// an assistant message carrying the products matched to it and, when there
// are any, a comparison over them. Sequence numbers start at 1, so the result
// depends only on its inputs.
func Reconstruct(entries []api.HistoryEntry, products []session.Product) []session.Message {
	ordered := chronological(entries)

	messages := make([]session.Message, 0, 2*len(ordered))
	var seq uint64
	for _, entry := range ordered {
		seq++
		messages = append(messages, session.Message{
			ID:        session.MessageID(seq),
			Seq:       seq,
			Role:      session.RoleUser,
			Content:   entry.UserMessage,
			Timestamp: entry.Timestamp.Time,
		})

		seq++
		assistant := session.Message{
			ID:        session.MessageID(seq),
			Seq:       seq,
			Role:      session.RoleAssistant,
			Content:   entry.AssistantResponse,
			Timestamp: entry.Timestamp.Time,
		}
		if matched := matcher.Match(entry, products); len(matched) > 0 {
			assistant.Products = matched
			assistant.PriceComparison = pricing.BuildComparison(matched)
		}
		messages = append(messages, assistant)
	}

	return messages
}

// chronological sorts a copy of entries oldest first. The backend lists
// newest first and stores timestamps to the second, so ties fall back to the
// row id and then to reversed listing order.
func chronological(entries []api.HistoryEntry) []api.HistoryEntry {
	type indexed struct {
		entry api.HistoryEntry
		pos   int
	}

	items := make([]indexed, len(entries))
	for i, e := range entries {
		items[i] = indexed{entry: e, pos: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.entry.Timestamp.Equal(b.entry.Timestamp.Time) {
			return a.entry.Timestamp.Before(b.entry.Timestamp.Time)
		}
		if a.entry.ID != b.entry.ID {
			return a.entry.ID < b.entry.ID
		}
		return a.pos > b.pos
	})

	out := make([]api.HistoryEntry, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

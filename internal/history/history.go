// Package history turns the backend's flat exchange listing into the
// conversation index shown to the user.
package history

import (
	"fmt"
	"strings"
	"time"

	"BuyBuddy/internal/api"
)

// DefaultTitle names a conversation whose first message is empty
const DefaultTitle = "Nouvelle conversation"

// titleKeywords are product words that make a better title than the start
// of the message.
var titleKeywords = []string{
	"laptop", "phone", "dress", "robe", "shoes", "chaussures",
	"air force", "nike", "iphone", "smartphone",
}

// Conversation is one entry of the conversation index
type Conversation struct {
	SessionID   string
	Title       string
	UserMessage string
	Timestamp   time.Time
}

// Conversations keeps the first listed entry of each session, in listing
// order, and drops entries without a session id.
func Conversations(entries []api.HistoryEntry) []Conversation {
	seen := make(map[string]bool, len(entries))
	var out []Conversation
	for _, e := range entries {
		if e.SessionID == "" || seen[e.SessionID] {
			continue
		}
		seen[e.SessionID] = true
		out = append(out, Conversation{
			SessionID:   e.SessionID,
			Title:       Title(e.UserMessage),
			UserMessage: e.UserMessage,
			Timestamp:   e.Timestamp.Time,
		})
	}
	return out
}

// Title derives a short title from a user message: a window around the first
// product keyword, else the first 30 characters.
func Title(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return DefaultTitle
	}

	runes := []rune(message)
	lower := []rune(strings.ToLower(message))
	// Lowercasing can change the rune count for a few scripts; fall back to
	// the plain prefix rule then.
	if len(lower) == len(runes) {
		for _, keyword := range titleKeywords {
			idx := runeIndex(lower, []rune(keyword))
			if idx < 0 {
				continue
			}
			start := max(0, idx-10)
			end := min(len(runes), idx+len([]rune(keyword))+20)
			if title := strings.TrimSpace(string(runes[start:end])); title != "" {
				return title
			}
			break
		}
	}

	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return message
}

func runeIndex(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// RelativeDay labels ts relative to now the way the conversation list does
func RelativeDay(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	days := int(now.Sub(ts).Hours() / 24)
	switch {
	case days <= 0:
		return "Aujourd'hui"
	case days == 1:
		return "Hier"
	case days < 7:
		return fmt.Sprintf("Il y a %d jours", days)
	default:
		return fmt.Sprintf("%d %s", ts.Day(), shortMonths[ts.Month()-1])
	}
}

var shortMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

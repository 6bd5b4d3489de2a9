package history

import (
	"testing"
	"time"

	"BuyBuddy/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "empty", message: "   ", want: DefaultTitle},
		{name: "short message", message: "Bonjour", want: "Bonjour"},
		{name: "keyword window", message: "Bonjour, je cherche un iphone 15 pro max pas cher du tout svp", want: "erche un iphone 15 pro max pas cher"},
		{name: "keyword at start", message: "Nike Air Force 1 blanches taille 42", want: "Nike Air Force 1 blanches taille 4"},
		{name: "prefix fallback", message: "Quel est le meilleur aspirateur robot pour un grand appartement ?", want: "Quel est le meilleur aspirateu..."},
		{name: "accented text", message: "Élégante robe d'été à fleurs", want: "Élégante robe d'été à fleurs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.message))
		})
	}
}

func TestConversations(t *testing.T) {
	ts := func(s string) api.Timestamp { return api.Timestamp{Time: api.ParseTimestamp(s)} }
	entries := []api.HistoryEntry{
		{ID: 4, SessionID: "s-2", UserMessage: "et des chaussures ?", Timestamp: ts("2024-05-02 09:00:00")},
		{ID: 3, SessionID: "s-1", UserMessage: "moins cher", Timestamp: ts("2024-05-01 10:05:00")},
		{ID: 2, SessionID: "", UserMessage: "orphan", Timestamp: ts("2024-05-01 10:01:00")},
		{ID: 1, SessionID: "s-1", UserMessage: "iphone 15", Timestamp: ts("2024-05-01 10:00:00")},
	}

	convs := Conversations(entries)
	require.Len(t, convs, 2)
	assert.Equal(t, "s-2", convs[0].SessionID)
	assert.Equal(t, "s-1", convs[1].SessionID)
	assert.Equal(t, "moins cher", convs[1].UserMessage)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC), convs[1].Timestamp)

	assert.Empty(t, Conversations(nil))
}

func TestRelativeDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Aujourd'hui", RelativeDay(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Hier", RelativeDay(now.Add(-30*time.Hour), now))
	assert.Equal(t, "Il y a 3 jours", RelativeDay(now.Add(-3*24*time.Hour), now))
	assert.Equal(t, "1 mai", RelativeDay(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "", RelativeDay(time.Time{}, now))
}

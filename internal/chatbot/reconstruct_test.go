package chatbot

import (
	"testing"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstruct_Ordering(t *testing.T) {
	ts := func(s string) api.Timestamp { return api.Timestamp{Time: api.ParseTimestamp(s)} }

	tests := []struct {
		name    string
		entries []api.HistoryEntry
		want    []string
	}{
		{
			name: "newest first listing",
			entries: []api.HistoryEntry{
				{ID: 3, UserMessage: "c", Timestamp: ts("2024-05-01 10:00:02")},
				{ID: 2, UserMessage: "b", Timestamp: ts("2024-05-01 10:00:01")},
				{ID: 1, UserMessage: "a", Timestamp: ts("2024-05-01 10:00:00")},
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "same second ordered by id",
			entries: []api.HistoryEntry{
				{ID: 1, UserMessage: "a", Timestamp: ts("2024-05-01 10:00:00")},
				{ID: 2, UserMessage: "b", Timestamp: ts("2024-05-01 10:00:00")},
			},
			want: []string{"a", "b"},
		},
		{
			name: "same second without ids uses reversed listing order",
			entries: []api.HistoryEntry{
				{UserMessage: "b", Timestamp: ts("2024-05-01 10:00:00")},
				{UserMessage: "a", Timestamp: ts("2024-05-01 10:00:00")},
			},
			want: []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := Reconstruct(tt.entries, nil)
			require.Len(t, messages, 2*len(tt.want))

			var users []string
			for i, msg := range messages {
				assert.Equal(t, uint64(i+1), msg.Seq)
				if i%2 == 0 {
					assert.Equal(t, session.RoleUser, msg.Role)
					users = append(users, msg.Content)
				} else {
					assert.Equal(t, session.RoleAssistant, msg.Role)
					assert.Nil(t, msg.PriceComparison)
				}
			}
			assert.Equal(t, tt.want, users)
		})
	}
}

func TestReconstruct_DoesNotReorderInput(t *testing.T) {
	entries, products := historyFixture()
	firstID := entries[0].ID

	Reconstruct(entries, products)
	assert.Equal(t, firstID, entries[0].ID)
}

func TestReconstruct_UnpricedMatchesHaveNoComparison(t *testing.T) {
	entries := []api.HistoryEntry{{ID: 1, UserMessage: "robe rouge"}}
	products := []session.Product{{Name: "Robe", Price: session.TextPrice("sur demande"), SearchQuery: "robe rouge"}}

	messages := Reconstruct(entries, products)
	require.Len(t, messages, 2)
	assert.Len(t, messages[1].Products, 1)
	assert.Nil(t, messages[1].PriceComparison)
}

func TestReconstruct_Empty(t *testing.T) {
	assert.Empty(t, Reconstruct(nil, nil))
}

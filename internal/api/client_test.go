package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"BuyBuddy/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, testLogger(), opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("http://localhost:8000", nil)
	assert.Error(t, err)

	_, err = NewClient("ftp://localhost", testLogger())
	assert.Error(t, err)

	client, err := NewClient("http://localhost:8000/", testLogger())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", client.baseURL)
}

func TestClientChat_NewSessionSendsNull(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, chatPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bonjour", body["message"])
		sessionID, present := body["session_id"]
		assert.True(t, present)
		assert.Nil(t, sessionID)

		_, _ = io.WriteString(w, `{"session_id":"s-1","message":"bonjour","conversational_response":"Salut !"}`)
	})

	reply, err := client.Chat(context.Background(), "bonjour", "")
	require.NoError(t, err)

	conv, ok := reply.(ConversationalReply)
	require.True(t, ok, "got %T", reply)
	assert.Equal(t, "s-1", conv.Session())
	assert.Equal(t, "Salut !", conv.Text)
}

func TestClientChat_ProductResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.SessionID) {
			assert.Equal(t, "s-1", *req.SessionID)
		}

		_, _ = io.WriteString(w, `{
			"session_id": "s-1",
			"structured_query": {"query_text": "iphone 15 pro", "brand": "Apple"},
			"product_message": "Voici ce que j'ai trouvé",
			"products": [
				{"name": "iPhone 15 Pro", "price": 749.99, "link": "https://a", "platform": "fnac", "search_query": "iphone 15 pro"},
				{"name": "iPhone 15 Pro", "price": "699,00 €", "link": "https://b", "platform": "amazon", "search_query": "iphone 15 pro"}
			],
			"price_comparison": {
				"best_deal": {"name": "iPhone 15 Pro", "price": 699.0, "platform": "amazon"},
				"price_range": {"min": 699.0, "max": 749.99},
				"total_compared": 2
			}
		}`)
	})

	reply, err := client.Chat(context.Background(), "iphone 15 pro", "s-1")
	require.NoError(t, err)

	result, ok := reply.(ProductResult)
	require.True(t, ok, "got %T", reply)
	assert.Equal(t, "Voici ce que j'ai trouvé", result.ProductMessage)
	assert.Equal(t, "iphone 15 pro", result.StructuredQuery.Text())
	require.Len(t, result.Products, 2)
	assert.Equal(t, 749.99, result.Products[0].Price.Raw())
	assert.Equal(t, "699,00 €", result.Products[1].Price.Raw())
	require.NotNil(t, result.Comparison)
	assert.Equal(t, 2, result.Comparison.TotalCompared)
}

func TestClientChat_ErrorField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"session_id":"s-1","error":"Service de recherche indisponible"}`)
	})

	reply, err := client.Chat(context.Background(), "iphone", "s-1")
	require.NoError(t, err)

	errReply, ok := reply.(ErrorResult)
	require.True(t, ok, "got %T", reply)
	assert.Equal(t, "Service de recherche indisponible", errReply.Message)
}

func TestClientChat_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})

	reply, err := client.Chat(context.Background(), "iphone", "")
	assert.Nil(t, reply)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "boom")
	assert.True(t, IsRecoverable(err))
}

func TestClientChat_TransportErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"session_id":`)
		})
		_, err := client.Chat(context.Background(), "x", "")
		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, "decode", transportErr.Op)
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := NewClient(url, testLogger())
		require.NoError(t, err)
		_, err = client.Chat(context.Background(), "x", "")
		var transportErr *TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, "send", transportErr.Op)
		assert.True(t, IsRecoverable(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.Chat(ctx, "x", "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClientConversationHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, conversationsPath, r.URL.Path)
		assert.Equal(t, "s-1", r.URL.Query().Get("session_id"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		_, _ = io.WriteString(w, `[
			{"id": 2, "session_id": "s-1", "user_message": "et en bleu ?", "assistant_response": "Voici",
			 "timestamp": "2024-05-01 10:00:05", "structured_query": "{\"query_text\": \"iphone 15 pro bleu\"}"},
			{"id": 1, "session_id": "s-1", "user_message": "iphone 15 pro", "assistant_response": "Voilà",
			 "timestamp": "2024-05-01T10:00:00Z", "structured_query": "iphone 15 pro"}
		]`)
	})

	entries, err := client.ConversationHistory(context.Background(), "s-1", 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "iphone 15 pro bleu", entries[0].StructuredQuery.Text())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC), entries[0].Timestamp.Time)
	assert.Equal(t, "iphone 15 pro", entries[1].StructuredQuery.Text())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), entries[1].Timestamp.Time)
}

func TestClientConversationHistory_CachesListing(t *testing.T) {
	var listings, chats atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case conversationsPath:
			listings.Add(1)
			_, _ = io.WriteString(w, `[{"session_id":"s-1","user_message":"hi","assistant_response":"hello","timestamp":"2024-05-01 10:00:00"}]`)
		case chatPath:
			chats.Add(1)
			_, _ = io.WriteString(w, `{"session_id":"s-1","conversational_response":"ok"}`)
		}
	}, WithCache(cache.NewStore(time.Minute)))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		entries, err := client.ConversationHistory(ctx, "", 50)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}
	assert.EqualValues(t, 1, listings.Load())

	// Per-session reads are never cached.
	_, err := client.ConversationHistory(ctx, "s-1", 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, listings.Load())

	_, err = client.Chat(ctx, "encore", "s-1")
	require.NoError(t, err)
	_, err = client.ConversationHistory(ctx, "", 50)
	require.NoError(t, err)
	assert.EqualValues(t, 3, listings.Load())
	assert.EqualValues(t, 1, chats.Load())
}

func TestClientConversationProducts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/history/conversation/s 1/products", r.URL.Path)
		_, _ = io.WriteString(w, `[{"name":"iPhone","price":"699 €","link":"l","search_query":"iphone"}]`)
	})

	products, err := client.ConversationProducts(context.Background(), "s 1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "iphone", products[0].SearchQuery)
	assert.Equal(t, "699 €", products[0].Price.String())

	_, err = client.ConversationProducts(context.Background(), "")
	assert.Error(t, err)
}

func TestClientSearchHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, searchesPath, r.URL.Path)
		assert.Equal(t, "", r.URL.Query().Get("session_id"))
		_, _ = io.WriteString(w, `[{"id":1,"session_id":"s-1","query_text":"iphone 15","num_results":12,"timestamp":"2024-05-01 10:00:00"}]`)
	})

	searches, err := client.SearchHistory(context.Background(), "", 20)
	require.NoError(t, err)
	require.Len(t, searches, 1)
	assert.Equal(t, "iphone 15", searches[0].QueryText)
	assert.Equal(t, 12, searches[0].NumResults)
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "/api/v1/history/conversation/{session_id}/products", routeName("/api/v1/history/conversation/abc/products"))
	assert.Equal(t, chatPath, routeName(chatPath))
}

package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewTelegramClient(&common.TelegramConfig{
		BotToken:      "test-token",
		ChannelChatID: 999,
	}, common.GetLogger())
	require.NoError(t, err)
	client.apiURL = server.URL + "/bot%s/sendMessage"
	return client
}

func TestSendDirectMessage(t *testing.T) {
	var got sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "test-token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	})

	err := client.SendDirectMessage(context.Background(), 42, "AAPL crossed 200")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "AAPL crossed 200", got.Text)
}

func TestSendToChannelUsesConfiguredChat(t *testing.T) {
	var got sendMessageRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sendMessageResponse{OK: true})
	})

	err := client.SendToChannel(context.Background(), "Morning briefing")
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.ChatID)
}

func TestSendSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendMessageResponse{OK: false, Description: "Forbidden: bot was blocked by the user"})
	})

	err := client.SendDirectMessage(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by the user")
}

func TestSendDirectMessageRequiresChatID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := client.SendDirectMessage(context.Background(), 0, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no direct chat")
}

func TestNewTelegramClientRequiresToken(t *testing.T) {
	_, err := NewTelegramClient(&common.TelegramConfig{}, common.GetLogger())
	require.Error(t, err)
}

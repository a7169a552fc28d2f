package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mugummy/chzzkbot/internal/errors"
	"github.com/mugummy/chzzkbot/internal/retry"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.URL, "test-token", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.policy.InitialBackoff = time.Millisecond
	c.policy.RateLimitBackoff = time.Millisecond
	return c
}

func TestClientSendChat(t *testing.T) {
	var got map[string]string
	var auth string

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/open/v1/chats/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.SendChat(context.Background(), "channel-1", "hello chat")

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", auth)
	assert.Equal(t, "channel-1", got["channelId"])
	assert.Equal(t, "hello chat", got["message"])
}

func TestClientSendChatRetriesServerErrors(t *testing.T) {
	attempts := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	err := c.SendChat(context.Background(), "channel-1", "hello")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClientSendChatStopsOnClientError(t *testing.T) {
	attempts := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.SendChat(context.Background(), "channel-1", "hello")

	require.Error(t, err)
	var permanent *retry.PermanentError
	assert.ErrorAs(t, err, &permanent)
	assert.Equal(t, 1, attempts)

	structured := apperrors.AsStructured(err)
	assert.Equal(t, apperrors.TypeExternal, structured.Type)
	assert.Equal(t, "channel-1", structured.Context["channel_id"])
}

func TestClientStatusLive(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/service/v2/channels/channel-1/live-detail", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{
				"status":              "OPEN",
				"liveTitle":           "Speedrun Sunday",
				"liveCategoryValue":   "Games",
				"concurrentUserCount": 412,
				"openDate":            "2026-08-30 18:00:00",
			},
		})
	})

	status, err := c.Status(context.Background(), "channel-1")

	require.NoError(t, err)
	assert.True(t, status.Live)
	assert.Equal(t, "Speedrun Sunday", status.Title)
	assert.Equal(t, "Games", status.Category)
	assert.Equal(t, 412, status.ViewerCount)
	assert.Equal(t, 18, status.StartedAt.Hour())
}

func TestClientStatusOffline(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]any{"status": "CLOSE"},
		})
	})

	status, err := c.Status(context.Background(), "channel-1")

	require.NoError(t, err)
	assert.False(t, status.Live)
	assert.True(t, status.StartedAt.IsZero())
}

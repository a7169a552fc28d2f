package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mugummy/chzzkbot/internal/config"
	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/persist"
	"github.com/mugummy/chzzkbot/internal/session"
	"github.com/mugummy/chzzkbot/internal/websocket"
)

type nopSender struct{}

func (nopSender) SendChat(context.Context, string, string) error { return nil }

type nopPersister struct{}

func (nopPersister) MarkDirty(string, *domain.ChannelSnapshot) {}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, domain.FeatureTag, any) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := session.NewRegistry(persist.NewMemoryRepository(), session.Deps{
		Clock:       clockwork.NewRealClock(),
		Logger:      logger,
		Sender:      nopSender{},
		Broadcaster: nopBroadcaster{},
		Persister:   nopPersister{},
	})
	t.Cleanup(registry.Shutdown)

	hub := websocket.NewHub(logger, websocket.HubOptions{})
	t.Cleanup(hub.Stop)

	return NewServer(Deps{
		Config:   &config.Config{Port: "0"},
		Registry: registry,
		Hub:      hub,
		Logger:   logger,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health/live", nil)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleReadiness_MemoryBackends(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health/ready", nil)

	assert.Equal(t, 200, rec.Code)
}

func TestHandleChatEvent(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/events/chat", domain.ChatEvent{
		ChannelID: "channel-1",
		ViewerID:  "viewer-1",
		Nickname:  "Alice",
		Message:   "hello",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	sess, ok := srv.registry.Lookup("channel-1")
	require.True(t, ok)

	// Snapshot serializes behind the chat dispatch, so points are visible.
	snap, err := sess.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Points.Entries, 1)
}

func TestHandleChatEvent_MissingChannel(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/events/chat", domain.ChatEvent{ViewerID: "viewer-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDonationEvent_RejectsNonPositiveAmount(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/events/donation", domain.DonationEvent{
		ChannelID: "channel-1",
		ViewerID:  "viewer-1",
		Amount:    0,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteLifecycleOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/votes", createVoteRequest{
		Question: "Which boss next?",
		Options:  []string{"Dragon", "Lich"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/votes/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/events/chat", domain.ChatEvent{
		ChannelID: "channel-1",
		ViewerID:  "viewer-1",
		Nickname:  "Alice",
		Message:   "1",
		Timestamp: time.Now(),
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/votes/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var record domain.VoteRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "Which boss next?", record.Question)
	assert.Equal(t, 1, record.Total)
	assert.Equal(t, 1, record.Options[0].Count)
}

func TestEndVoteWithoutActiveVote(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/votes/end", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRuleCRUDOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/rules", addRuleRequest{
		Kind:     domain.KindCommand,
		Triggers: []string{"!discord"},
		Response: "Join us at discord.gg/example",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var rule domain.CommandRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	require.NotEmpty(t, rule.ID)

	rec = doJSON(t, srv, http.MethodPut, "/api/channels/channel-1/rules/"+rule.ID, updateRuleRequest{
		Triggers: []string{"!discord", "!dc"},
		Response: rule.Response,
		Enabled:  true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/channels/channel-1/rules/"+rule.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/channels/channel-1/rules/"+rule.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdjustPointsAndLeaderboard(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/points/adjust", adjustPointsRequest{
		ViewerID: "viewer-1",
		Nickname: "Alice",
		Delta:    250,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":250`)

	rec = doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/points/leaderboard?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []domain.PointEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].Nickname)
}

func TestGetPointBalanceOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/points/adjust", adjustPointsRequest{
		ViewerID: "viewer-1",
		Nickname: "Alice",
		Delta:    120,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/points/viewer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":120`)

	// Unknown viewers read as zero, not as an error.
	rec = doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/points/viewer-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":0`)
}

func TestTeardownChannelDeletesSnapshot(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/points/adjust", adjustPointsRequest{
		ViewerID: "viewer-1",
		Nickname: "Alice",
		Delta:    50,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/channels/channel-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, exists := srv.registry.Lookup("channel-1")
	assert.False(t, exists)

	// The channel starts over from defaults on its next activation.
	rec = doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/points/viewer-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":0`)
}

func TestLeaderboardRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/points/leaderboard?limit=zero", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStateReturnsFullSnapshot(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/channels/channel-1/state", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap domain.ChannelSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Points.Settings.Enabled)
}

func TestSpinRouletteOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/channels/channel-1/roulette", configureRouletteRequest{
		Items: []domain.RouletteItem{
			{Text: "Sing a song", Weight: 1},
			{Text: "Do a dance", Weight: 3},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/roulette/spin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.RouletteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Item.Text)
	assert.Positive(t, result.DurationMs)
}

func TestParticipationFlowOverAPI(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/participation/open", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/participation/join", joinParticipationRequest{
		ViewerID: "viewer-1",
		Nickname: "Alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/channels/channel-1/participation/promote", promoteRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, ok := srv.registry.Lookup("channel-1")
	require.True(t, ok)
	snap, err := sess.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Participation.Active, 1)
	assert.Equal(t, "Alice", snap.Participation.Active[0].Nickname)
}

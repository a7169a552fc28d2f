// Package websocket fans feature state out to dashboard clients. A single
// actor goroutine owns all connection maps; per-connection writer goroutines
// decouple slow clients from the broadcast path.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mugummy/chzzkbot/internal/domain"
	"github.com/mugummy/chzzkbot/internal/metrics"
)

const writeDeadline = 5 * time.Second

// Envelope is the wire format for every hub message. Type carries the
// feature tag so clients can route payloads without inspecting them.
type Envelope struct {
	Type    domain.FeatureTag `json:"type"`
	Payload any               `json:"payload"`
}

// ResyncFunc returns the full current state of a channel, one envelope per
// feature. It is called off the hub goroutine whenever a client (re)connects.
type ResyncFunc func(channelID string) []Envelope

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	channelID string
	conn      *websocket.Conn
	errCh     chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	channelID string
	conn      *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	channelID string
	feature   domain.FeatureTag
	data      []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdGetClientCount struct {
	channelID string
	replyCh   chan int
}

func (cmdGetClientCount) hubCmd() {}

type cmdFirstConnectResult struct {
	channelID string
	err       error
}

func (cmdFirstConnectResult) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

// send queues a message without blocking. Used by the resync goroutine;
// broadcast delivery goes through the hub actor instead.
func (cw *clientWriter) send(msg []byte) bool {
	select {
	case cw.sendCh <- msg:
		return true
	case <-cw.done:
		return false
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// Hub tracks dashboard connections per channel. onFirstConnect runs before
// the first client of a channel is admitted, so the channel session can be
// activated first; onLastDisconnect fires after the last client leaves.
type Hub struct {
	cmdCh            chan hubCmd
	clients          map[string]map[*websocket.Conn]*clientWriter
	pendingClients   map[string][]cmdRegister
	maxClients       int
	logger           *slog.Logger
	onFirstConnect   func(channelID string) error
	onLastDisconnect func(channelID string)
	resync           ResyncFunc
}

type HubOptions struct {
	MaxClientsPerChannel int
	OnFirstConnect       func(channelID string) error
	OnLastDisconnect     func(channelID string)
	Resync               ResyncFunc
}

func NewHub(logger *slog.Logger, opts HubOptions) *Hub {
	if opts.MaxClientsPerChannel <= 0 {
		opts.MaxClientsPerChannel = 50
	}
	hub := &Hub{
		cmdCh:            make(chan hubCmd, 256),
		clients:          make(map[string]map[*websocket.Conn]*clientWriter),
		pendingClients:   make(map[string][]cmdRegister),
		maxClients:       opts.MaxClientsPerChannel,
		logger:           logger,
		onFirstConnect:   opts.OnFirstConnect,
		onLastDisconnect: opts.OnLastDisconnect,
		resync:           opts.Resync,
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.channelID, c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdGetClientCount:
			c.replyCh <- len(h.clients[c.channelID])
		case cmdFirstConnectResult:
			h.handleFirstConnectResult(c)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) admit(channelID string, c cmdRegister, clients map[*websocket.Conn]*clientWriter) {
	cw := newClientWriter(c.conn)
	clients[c.conn] = cw
	metrics.HubConnectedClients.Inc()
	h.logger.Info("dashboard client connected",
		"channel_id", channelID, "total_clients", len(clients))
	if h.resync != nil {
		go h.sendResync(channelID, cw)
	}
	c.errCh <- nil
}

// sendResync pushes the channel's full state to one freshly connected
// client. Runs off the hub goroutine so a slow state read never stalls
// broadcasts.
func (h *Hub) sendResync(channelID string, cw *clientWriter) {
	for _, env := range h.resync(channelID) {
		data, err := json.Marshal(env)
		if err != nil {
			h.logger.Error("failed to marshal resync payload",
				"channel_id", channelID, "feature", env.Type, "error", err)
			continue
		}
		if !cw.send(data) {
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	// Channel already active, add the client directly.
	if clients, exists := h.clients[c.channelID]; exists {
		if len(clients) >= h.maxClients {
			h.logger.Warn("rejecting dashboard client, channel full",
				"channel_id", c.channelID, "max_clients", h.maxClients)
			c.conn.Close()
			c.errCh <- fmt.Errorf("max clients per channel (%d) reached", h.maxClients)
			return
		}
		h.admit(c.channelID, c, clients)
		return
	}

	// Channel has a pending onFirstConnect, queue this client behind it.
	if _, exists := h.pendingClients[c.channelID]; exists {
		h.pendingClients[c.channelID] = append(h.pendingClients[c.channelID], c)
		return
	}

	if h.onFirstConnect != nil {
		h.pendingClients[c.channelID] = []cmdRegister{c}
		channelID := c.channelID
		go func() {
			err := h.onFirstConnect(channelID)
			h.cmdCh <- cmdFirstConnectResult{channelID: channelID, err: err}
		}()
		return
	}

	clients := make(map[*websocket.Conn]*clientWriter)
	h.clients[c.channelID] = clients
	metrics.HubActiveChannels.Set(float64(len(h.clients)))
	h.admit(c.channelID, c, clients)
}

func (h *Hub) handleFirstConnectResult(c cmdFirstConnectResult) {
	pending, exists := h.pendingClients[c.channelID]
	if !exists {
		return
	}
	delete(h.pendingClients, c.channelID)

	if c.err != nil {
		h.logger.Error("failed to activate channel session",
			"channel_id", c.channelID, "error", c.err)
		for _, p := range pending {
			p.conn.Close()
			p.errCh <- c.err
		}
		return
	}

	clients := make(map[*websocket.Conn]*clientWriter)
	h.clients[c.channelID] = clients
	metrics.HubActiveChannels.Set(float64(len(h.clients)))
	for _, p := range pending {
		if len(clients) >= h.maxClients {
			p.conn.Close()
			p.errCh <- fmt.Errorf("max clients per channel (%d) reached", h.maxClients)
			continue
		}
		h.admit(c.channelID, p, clients)
	}
}

func (h *Hub) handleUnregister(channelID string, conn *websocket.Conn) {
	clients, exists := h.clients[channelID]
	if !exists {
		return
	}

	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	metrics.HubConnectedClients.Dec()

	if len(clients) == 0 {
		delete(h.clients, channelID)
		metrics.HubActiveChannels.Set(float64(len(h.clients)))
		if h.onLastDisconnect != nil {
			h.onLastDisconnect(channelID)
		}
		h.logger.Info("last dashboard client disconnected", "channel_id", channelID)
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	clients, exists := h.clients[c.channelID]
	if !exists {
		return
	}
	metrics.HubBroadcastsTotal.WithLabelValues(string(c.feature)).Inc()

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		h.logger.Warn("disconnecting slow dashboard client", "channel_id", c.channelID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleUnregister(c.channelID, conn)
	}
}

func (h *Hub) handleStop() {
	for channelID, clients := range h.clients {
		for _, cw := range clients {
			cw.stop()
			metrics.HubConnectedClients.Dec()
		}
		delete(h.clients, channelID)
	}
	metrics.HubActiveChannels.Set(0)
	for channelID, pending := range h.pendingClients {
		for _, p := range pending {
			p.conn.Close()
			p.errCh <- fmt.Errorf("hub stopped")
		}
		delete(h.pendingClients, channelID)
	}
}

// --- Public API ---

func (h *Hub) Register(channelID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{channelID: channelID, conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(channelID string, conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{channelID: channelID, conn: conn}
}

// Broadcast implements domain.Broadcaster. Marshal happens once here, not
// per client.
func (h *Hub) Broadcast(channelID string, feature domain.FeatureTag, payload any) {
	data, err := json.Marshal(Envelope{Type: feature, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload",
			"channel_id", channelID, "feature", feature, "error", err)
		return
	}
	h.cmdCh <- cmdBroadcast{channelID: channelID, feature: feature, data: data}
}

func (h *Hub) GetClientCount(channelID string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdGetClientCount{channelID: channelID, replyCh: replyCh}
	return <-replyCh
}

func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}

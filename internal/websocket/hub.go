// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
	"github.com/tomtom215/parley/internal/presence"
	"github.com/tomtom215/parley/internal/typing"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// cleanupTimeout bounds presence cleanup for clients closed at shutdown.
const cleanupTimeout = 5 * time.Second

// Options tunes the hub and its clients.
type Options struct {
	// Instance names this process in connection handles.
	Instance string

	TypingTimeout   time.Duration
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	WriteWait       time.Duration
	PongWait        time.Duration
	MaxMessageSize  int64
}

// DefaultOptions returns the production client timings.
func DefaultOptions() Options {
	return Options{
		TypingTimeout:   typing.DefaultTimeout,
		SendBuffer:      256,
		EventsPerSecond: 20,
		EventBurst:      40,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		MaxMessageSize:  512 * 1024,
	}
}

// OptionsFromConfig maps realtime configuration onto hub options.
func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		TypingTimeout:   cfg.TypingTimeout,
		SendBuffer:      cfg.SendBuffer,
		EventsPerSecond: cfg.EventsPerSecond,
		EventBurst:      cfg.EventBurst,
		WriteWait:       cfg.WriteWait,
		PongWait:        cfg.PongWait,
		MaxMessageSize:  cfg.MaxMessageSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Instance == "" {
		o.Instance = defaultInstance()
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = d.TypingTimeout
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = d.EventsPerSecond
	}
	if o.EventBurst <= 0 {
		o.EventBurst = d.EventBurst
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	return o
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "parley"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Hub owns the live connections of this process. Register and Unregister
// are serialized on the run loop, which performs the presence transitions:
// a registered client is added to the directory before the roster that
// includes it is broadcast, and an unregistered client has its typing
// timers purged, its rooms left and its directory entry removed (only if
// still current) before the roster that excludes it is broadcast.
type Hub struct {
	dir    presence.Directory
	opts   Options
	rooms  *Rooms
	typing *typing.Coordinator

	clients    map[string]*Client
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a Hub registering connections in dir.
func NewHub(dir presence.Directory, opts Options) *Hub {
	h := &Hub{
		dir:        dir,
		opts:       opts.withDefaults(),
		clients:    make(map[string]*Client),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.rooms = NewRooms(h.sendTo)
	h.typing = typing.NewCoordinator(dir, h, h.rooms, h.opts.TypingTimeout)
	return h
}

// Directory returns the presence directory connections are registered in.
func (h *Hub) Directory() presence.Directory {
	return h.dir
}

// Rooms returns the group room manager.
func (h *Hub) Rooms() *Rooms {
	return h.rooms
}

// Typing returns the typing coordinator.
func (h *Hub) Typing() *typing.Coordinator {
	return h.typing
}

// Options returns the effective options.
func (h *Hub) Options() Options {
	return h.opts
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RunWithContext runs the hub loop until ctx is cancelled. It is designed
// for use with suture supervision.
//
// Shutdown takes priority over lifecycle events, and lifecycle events take
// priority over broadcasts, so client state is consistent before any
// message is fanned out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: client lifecycle.
		select {
		case client := <-h.Register:
			h.handleRegister(ctx, client)
			continue
		case client := <-h.Unregister:
			h.handleUnregister(ctx, client)
			continue
		default:
		}

		// Priority 3: broadcasts, or wait for anything.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.handleRegister(ctx, client)

		case client := <-h.Unregister:
			h.handleUnregister(ctx, client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client.handle.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.dir.AddOnline(ctx, client.handle.UserID, client.handle)
	client.setState(StateAuthenticated)
	metrics.WSConnections.Set(float64(total))

	logging.Info().
		Str("user_id", client.handle.UserID).
		Str("handle", client.handle.ID).
		Int("total_clients", total).
		Msg("websocket client connected")

	h.broadcastRoster(ctx)
}

func (h *Hub) handleUnregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.handle.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.handle.ID)
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	removed := h.release(ctx, client)
	metrics.WSConnections.Set(float64(total))

	logging.Info().
		Str("user_id", client.handle.UserID).
		Str("handle", client.handle.ID).
		Bool("presence_removed", removed).
		Int("total_clients", total).
		Msg("websocket client disconnected")

	h.broadcastRoster(ctx)
}

// release runs the disconnect transition for a client already removed from
// the registry and reports whether its presence entry was removed.
func (h *Hub) release(ctx context.Context, client *Client) bool {
	h.typing.PurgeActor(client.handle.UserID)
	h.rooms.LeaveAll(client.handle.ID)
	removed := h.dir.RemoveIfCurrent(ctx, client.handle.UserID, client.handle)
	client.setState(StateDisconnected)
	return removed
}

// broadcastRoster sends the current online roster to every connection.
func (h *Hub) broadcastRoster(ctx context.Context) {
	users := h.dir.ListOnline(ctx)
	h.broadcastToClients(Message{Type: EventOnlineUsers, Data: users})
}

// logGracefulShutdown closes every client and logs the shutdown. ctx.Err()
// is not logged as an error because cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()

	h.closeAllClients(ctx)
	h.doneOnce.Do(func() { close(h.done) })

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Int("typing_timers", h.typing.Active()).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClientsLocked returns clients in connection order. Caller holds h.mu.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].seq < clients[j].seq
	})
	return clients
}

// broadcastToClients sends a message to all connected clients in connection order.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.sortedClientsLocked() {
		h.trySendLocked(client, message)
	}
}

// trySendLocked queues message without blocking. A client whose buffer is
// full has its transport closed, which runs the normal unregister path.
// Caller holds h.mu (read or write) so client.send is open.
func (h *Hub) trySendLocked(client *Client, message Message) bool {
	select {
	case client.send <- message:
		return true
	default:
		metrics.RecordEventDropped("buffer_full")
		logging.Warn().
			Str("user_id", client.handle.UserID).
			Str("handle", client.handle.ID).
			Str("event", message.Type).
			Msg("websocket send buffer full, closing slow client")
		client.closeTransport()
		return false
	}
}

// closeAllClients closes every client and releases its presence entry.
func (h *Hub) closeAllClients(ctx context.Context) {
	h.mu.Lock()
	clients := h.sortedClientsLocked()
	for _, client := range clients {
		delete(h.clients, client.handle.ID)
		close(client.send)
	}
	h.mu.Unlock()

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	for _, client := range clients {
		h.release(cleanupCtx, client)
	}
	metrics.WSConnections.Set(0)
	logging.Info().Int("clients", len(clients)).Msg("closed all websocket clients during shutdown")
}

// sendTo delivers to the connection with the given handle id.
func (h *Hub) sendTo(handleID string, message Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handleID]
	if !ok {
		return false
	}
	return h.trySendLocked(client, message)
}

// Push delivers event to the connection identified by handle. It returns
// false when that connection is not attached to this process or its buffer
// is full.
func (h *Hub) Push(handle presence.Handle, event string, payload any) bool {
	if handle.IsZero() {
		return false
	}
	return h.sendTo(handle.ID, Message{Type: event, Data: payload})
}

// BroadcastJSON queues a message for every connected client.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	message := Message{Type: messageType, Data: data}

	select {
	case h.broadcast <- message:
	default:
		metrics.RecordEventDropped("broadcast_full")
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping JSON message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns the connected client with the given handle id.
func (h *Hub) Client(handleID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[handleID]
	return c, ok
}

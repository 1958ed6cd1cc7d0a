// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
	"github.com/tomtom215/parley/internal/presence"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// clientSeq orders clients for deterministic broadcast iteration.
var clientSeq atomic.Uint64

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	seq     uint64
	handle  presence.Handle
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	limiter *rate.Limiter
	state   atomic.Int32

	closeOnce sync.Once
}

// NewClient creates a client for an authenticated user. The client stays in
// StateAuthenticating until the hub registers it.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	opts := hub.opts
	c := &Client{
		seq:     clientSeq.Add(1),
		handle:  presence.NewHandle(userID, opts.Instance),
		hub:     hub,
		conn:    conn,
		send:    make(chan Message, opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.EventBurst),
	}
	c.state.Store(int32(StateAuthenticating))
	return c
}

// Handle returns the connection handle.
func (c *Client) Handle() presence.Handle {
	return c.handle
}

// UserID returns the authenticated user.
func (c *Client) UserID() string {
	return c.handle.UserID
}

// State returns the lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// closeTransport closes the underlying connection once. The read pump then
// fails and unregisters the client.
func (c *Client) closeTransport() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// readPump pumps events from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.Done():
		}
		c.closeTransport()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(opts.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("user_id", c.handle.UserID).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		c.handleEvent(raw)
	}
}

// handleEvent routes one inbound frame. Malformed, unknown and throttled
// events are dropped and logged; the client gets no error frame.
func (c *Client) handleEvent(raw []byte) {
	log := logging.Logger().With().Str("user_id", c.handle.UserID).Str("handle", c.handle.ID).Logger()

	if !c.limiter.Allow() {
		metrics.RecordEventDropped("rate_limited")
		log.Debug().Msg("Inbound event rate limited")
		return
	}

	env, err := decodeInbound(raw)
	if err != nil {
		metrics.RecordEventDropped("malformed")
		log.Warn().Err(err).Msg("Malformed websocket frame dropped")
		return
	}

	ctx := logging.ContextWithUserID(context.Background(), c.handle.UserID)

	switch env.Type {
	case EventPing:
		c.enqueue(Message{Type: EventPong})

	case EventJoinGroup, EventLeaveGroup:
		p, err := decodeGroupPayload(env.Data)
		if err != nil {
			metrics.RecordEventDropped("malformed")
			log.Warn().Err(err).Str("event", env.Type).Msg("Group event missing groupId")
			return
		}
		if env.Type == EventJoinGroup {
			c.hub.rooms.Join(c.handle.ID, p.GroupID)
			log.Debug().Str("group", p.GroupID).Msg("Joined group room")
		} else {
			c.hub.rooms.Leave(c.handle.ID, p.GroupID)
			log.Debug().Str("group", p.GroupID).Msg("Left group room")
		}

	case EventTyping:
		var p TypingPayload
		if err := decodePayload(env.Data, &p); err != nil {
			metrics.RecordEventDropped("malformed")
			log.Warn().Err(err).Msg("Typing event missing receiverId")
			return
		}
		c.hub.typing.SetDirect(ctx, c.handle.UserID, p.ReceiverID, *p.IsTyping)

	case EventGroupTyping:
		var p GroupTypingPayload
		if err := decodePayload(env.Data, &p); err != nil {
			metrics.RecordEventDropped("malformed")
			log.Warn().Err(err).Msg("Group typing event missing groupId")
			return
		}
		c.hub.typing.SetGroup(ctx, c.handle.UserID, c.handle.ID, p.GroupID, *p.IsTyping)

	default:
		metrics.RecordEventDropped("unknown_type")
		log.Debug().Str("event", env.Type).Msg("Unknown websocket event dropped")
	}
}

// enqueue queues a reply for this client through the hub registry so a
// client that already unregistered is skipped.
func (c *Client) enqueue(msg Message) {
	c.hub.sendTo(c.handle.ID, msg)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker((opts.PongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.closeTransport()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("event", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Msg("failed to write websocket message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/presence"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

const (
	testOrigin = "http://localhost:5173"
	testCookie = "jwt_T"
)

// tokenResolver maps "token-<user>" to "<user>".
type tokenResolver struct{}

func (tokenResolver) ResolveIdentity(_ context.Context, credential string) (string, error) {
	user, ok := strings.CutPrefix(credential, "token-")
	if !ok || user == "" {
		return "", errors.New("invalid token")
	}
	return user, nil
}

func testOptions() Options {
	return Options{
		Instance:      "test",
		TypingTimeout: 150 * time.Millisecond,
		SendBuffer:    64,
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, dir presence.Directory) *Hub {
	t.Helper()
	return startHubWith(t, dir, testOptions())
}

// startHubWith runs a hub with opts until the test ends.
func startHubWith(t *testing.T, dir presence.Directory, opts Options) *Hub {
	t.Helper()
	if dir == nil {
		dir = presence.NewMemoryDirectory(presence.ModeMemory)
	}
	hub := NewHub(dir, opts)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

// startServer serves the gateway for hub over httptest.
func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	h := NewHandler(hub, tokenResolver{}, HandlerConfig{
		CookieName:     testCookie,
		AllowedOrigins: []string{testOrigin},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// dialAs opens an authenticated connection for user.
func dialAs(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", testOrigin)
	header.Set("Cookie", testCookie+"=token-"+user)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial as %s: %v", user, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readFrame reads the next frame within timeout.
func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) (frame, error) {
	t.Helper()
	var f frame
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return f, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(raw, &f)
	return f, err
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) frame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f, err := readFrame(t, conn, time.Until(deadline))
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
	t.Fatalf("no %s frame within %v", typ, timeout)
	return frame{}
}

// collect reads frames of type typ until the connection is idle for window.
func collect(t *testing.T, conn *websocket.Conn, typ string, window time.Duration) []frame {
	t.Helper()
	var out []frame
	for {
		f, err := readFrame(t, conn, window)
		if err != nil {
			return out
		}
		if f.Type == typ {
			out = append(out, f)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "data": data}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out: %s", msg)
}

// registered registers a transport-less client and waits until it has
// received its first roster. The new client is last in broadcast order, so
// every other client has the roster too.
func registered(t *testing.T, hub *Hub, user string) *Client {
	t.Helper()
	c := NewClient(hub, nil, user)
	hub.Register <- c
	waitFor(t, time.Second, "client registered", func() bool {
		return c.State() == StateAuthenticated && len(c.send) > 0
	})
	return c
}

// drain empties a transport-less client's buffer.
func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType(msgs []Message, typ string) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

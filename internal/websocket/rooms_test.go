// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package websocket

import (
	"reflect"
	"sync"
	"testing"
)

type sink struct {
	mu   sync.Mutex
	got  map[string][]Message
	dead map[string]bool
}

func newSink() *sink {
	return &sink{got: make(map[string][]Message), dead: make(map[string]bool)}
}

func (s *sink) send(handleID string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead[handleID] {
		return false
	}
	s.got[handleID] = append(s.got[handleID], msg)
	return true
}

func TestRooms_JoinLeave(t *testing.T) {
	r := NewRooms(newSink().send)

	r.Join("h1", "g1")
	r.Join("h1", "g1")
	r.Join("h2", "g1")
	r.Join("h1", "g2")

	if got := r.Members("g1"); !reflect.DeepEqual(got, []string{"h1", "h2"}) {
		t.Errorf("Members(g1) = %v", got)
	}
	if got := r.GroupsOf("h1"); !reflect.DeepEqual(got, []string{"g1", "g2"}) {
		t.Errorf("GroupsOf(h1) = %v", got)
	}

	r.Leave("h1", "g1")
	r.Leave("h1", "g1")
	r.Leave("h9", "g9")

	if got := r.Members("g1"); !reflect.DeepEqual(got, []string{"h2"}) {
		t.Errorf("Members(g1) after leave = %v", got)
	}
	if got := r.GroupsOf("h1"); !reflect.DeepEqual(got, []string{"g2"}) {
		t.Errorf("GroupsOf(h1) after leave = %v", got)
	}
}

func TestRooms_LeaveAll(t *testing.T) {
	r := NewRooms(newSink().send)
	r.Join("h1", "g1")
	r.Join("h1", "g2")
	r.Join("h2", "g2")

	if n := r.LeaveAll("h1"); n != 2 {
		t.Errorf("LeaveAll() = %d, want 2", n)
	}
	if n := r.LeaveAll("h1"); n != 0 {
		t.Errorf("second LeaveAll() = %d, want 0", n)
	}
	if got := r.Members("g1"); len(got) != 0 {
		t.Errorf("g1 should be empty, got %v", got)
	}
	if got := r.Members("g2"); !reflect.DeepEqual(got, []string{"h2"}) {
		t.Errorf("Members(g2) = %v", got)
	}
	if len(r.groups) != 1 || len(r.handles) != 1 {
		t.Errorf("empty index entries not pruned: groups=%d handles=%d", len(r.groups), len(r.handles))
	}
}

func TestRooms_BroadcastExcludes(t *testing.T) {
	s := newSink()
	r := NewRooms(s.send)
	r.Join("alice", "g1")
	r.Join("alice", "g2")
	r.Join("bob", "g1")
	r.Join("carol", "g1")

	n := r.Broadcast("g1", EventNewGroupMessage, "hello", "alice")
	if n != 2 {
		t.Errorf("Broadcast() = %d, want 2", n)
	}
	if len(s.got["alice"]) != 0 {
		t.Error("excluded handle received the broadcast")
	}
	for _, h := range []string{"bob", "carol"} {
		if len(s.got[h]) != 1 || s.got[h][0].Type != EventNewGroupMessage || s.got[h][0].Data != "hello" {
			t.Errorf("%s got %v", h, s.got[h])
		}
	}

	if n := r.Broadcast("g1", EventNewGroupMessage, "all", ""); n != 3 {
		t.Errorf("Broadcast() without exclusion = %d, want 3", n)
	}
	if n := r.Broadcast("nobody", EventNewGroupMessage, "x", ""); n != 0 {
		t.Errorf("Broadcast() to empty room = %d, want 0", n)
	}
}

func TestRooms_BroadcastCountsOnlyAccepted(t *testing.T) {
	s := newSink()
	s.dead["bob"] = true
	r := NewRooms(s.send)
	r.Join("bob", "g1")
	r.Join("carol", "g1")

	if n := r.Broadcast("g1", EventNewGroupMessage, "x", ""); n != 1 {
		t.Errorf("Broadcast() = %d, want 1", n)
	}
}

func TestRooms_Concurrent(t *testing.T) {
	r := NewRooms(newSink().send)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				r.Join(h, "g1")
				r.Broadcast("g1", "e", j, h)
				r.Leave(h, "g1")
			}
			r.LeaveAll(h)
		}(i)
	}
	wg.Wait()

	if got := r.Members("g1"); len(got) != 0 {
		t.Errorf("members left behind: %v", got)
	}
}

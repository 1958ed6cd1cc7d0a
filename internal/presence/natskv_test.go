// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startTestServer(t *testing.T) *EmbeddedServer {
	t.Helper()

	srv, err := StartEmbeddedServer(t.TempDir())
	if err != nil {
		t.Fatalf("StartEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func openTestKV(t *testing.T, url string) *NATSKV {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	kv, err := OpenNATSKV(ctx, NATSKVConfig{URL: url, Bucket: "online_users"})
	if err != nil {
		t.Fatalf("OpenNATSKV() error = %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestNATSKV_Operations(t *testing.T) {
	srv := startTestServer(t)
	kv := openTestKV(t, srv.ClientURL())
	ctx := context.Background()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrKeyNotFound", err)
	}

	if err := kv.Put(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	value, rev, err := kv.Get(ctx, "k1")
	if err != nil || string(value) != "v1" || rev == 0 {
		t.Fatalf("Get(k1) = %q, %d, %v", value, rev, err)
	}

	if err := kv.Put(ctx, "k1", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if err := kv.DeleteRevision(ctx, "k1", rev); !errors.Is(err, ErrRevisionMismatch) {
		t.Fatalf("DeleteRevision(stale) error = %v, want ErrRevisionMismatch", err)
	}

	_, rev, _ = kv.Get(ctx, "k1")
	if err := kv.DeleteRevision(ctx, "k1", rev); err != nil {
		t.Fatalf("DeleteRevision(current) error = %v", err)
	}
	if _, _, err := kv.Get(ctx, "k1"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete error = %v, want ErrKeyNotFound", err)
	}

	if err := kv.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}

func TestNATSKV_CreateAndUpdate(t *testing.T) {
	srv := startTestServer(t)
	kv := openTestKV(t, srv.ClientURL())
	ctx := context.Background()

	rev, err := kv.Create(ctx, "c1", []byte("v1"))
	if err != nil || rev == 0 {
		t.Fatalf("Create() = %d, %v", rev, err)
	}
	if _, err := kv.Create(ctx, "c1", []byte("again")); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("Create(existing) error = %v, want ErrKeyExists", err)
	}

	next, err := kv.Update(ctx, "c1", []byte("v2"), rev)
	if err != nil || next <= rev {
		t.Fatalf("Update(current) = %d, %v", next, err)
	}
	if _, err := kv.Update(ctx, "c1", []byte("v3"), rev); !errors.Is(err, ErrRevisionMismatch) {
		t.Fatalf("Update(stale) error = %v, want ErrRevisionMismatch", err)
	}
	if value, _, _ := kv.Get(ctx, "c1"); string(value) != "v2" {
		t.Errorf("Get(c1) = %q, want v2", value)
	}

	// A deleted key can be created again.
	if err := kv.Delete(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := kv.Create(ctx, "c1", []byte("v4")); err != nil {
		t.Errorf("Create(after delete) error = %v", err)
	}
}

func TestNATSKV_Keys(t *testing.T) {
	srv := startTestServer(t)
	kv := openTestKV(t, srv.ClientURL())
	ctx := context.Background()

	keys, err := kv.Keys(ctx)
	if err != nil || len(keys) != 0 {
		t.Fatalf("Keys() on empty bucket = %v, %v", keys, err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if err := kv.Put(ctx, k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	_ = kv.Delete(ctx, "b")

	keys, err = kv.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 live keys", keys)
	}
}

func TestSharedDirectory_OnNATS(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	nodeA := NewSharedDirectory(openTestKV(t, srv.ClientURL()), testBreaker())
	nodeB := NewSharedDirectory(openTestKV(t, srv.ClientURL()), testBreaker())

	old := NewHandle("ivan", "node-a")
	fresh := NewHandle("ivan", "node-b")
	nodeA.AddOnline(ctx, "ivan", old)
	nodeB.AddOnline(ctx, "ivan", fresh)
	if nodeA.RemoveIfCurrent(ctx, "ivan", old) {
		t.Error("RemoveIfCurrent(stale) should not report removal")
	}

	got, ok := nodeA.Lookup(ctx, "ivan")
	if !ok || got.ID != fresh.ID {
		t.Fatalf("Lookup() = %+v, %v; want node B's handle", got, ok)
	}
	if err := nodeB.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got, _ := nodeA.Lookup(ctx, "ivan"); got.ID != fresh.ID {
		t.Errorf("Lookup() after refresh = %s, want %s", got.ID, fresh.ID)
	}
	if users := nodeA.ListOnline(ctx); len(users) != 1 || users[0] != "ivan" {
		t.Errorf("ListOnline() = %v", users)
	}

	if !nodeB.RemoveIfCurrent(ctx, "ivan", fresh) {
		t.Error("RemoveIfCurrent(current) should report removal")
	}
	if _, ok := nodeA.Lookup(ctx, "ivan"); ok {
		t.Error("expected ivan offline")
	}
}

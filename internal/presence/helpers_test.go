// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/parley/internal/logging"
)

func init() {
	logging.SetLogger(zerolog.Nop())
}

var errStoreDown = errors.New("store down")

// fakeKV is an in-memory KVStore with revisions. Setting fail makes every
// call return errStoreDown.
type fakeKV struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
	rev     uint64
	fail    bool
	calls   int
	closed  bool
}

type fakeEntry struct {
	value []byte
	rev   uint64
}

func newFakeKV() *fakeKV {
	return &fakeKV{entries: make(map[string]fakeEntry)}
}

func (f *fakeKV) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeKV) begin() error {
	f.calls++
	if f.fail {
		return errStoreDown
	}
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return nil, 0, err
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, 0, ErrKeyNotFound
	}
	return e.value, e.rev, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	f.rev++
	f.entries[key] = fakeEntry{value: value, rev: f.rev}
	return nil
}

func (f *fakeKV) Create(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return 0, err
	}
	if _, ok := f.entries[key]; ok {
		return 0, ErrKeyExists
	}
	f.rev++
	f.entries[key] = fakeEntry{value: value, rev: f.rev}
	return f.rev, nil
}

func (f *fakeKV) Update(_ context.Context, key string, value []byte, rev uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return 0, err
	}
	if e, ok := f.entries[key]; !ok || e.rev != rev {
		return 0, ErrRevisionMismatch
	}
	f.rev++
	f.entries[key] = fakeEntry{value: value, rev: f.rev}
	return f.rev, nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeKV) DeleteRevision(_ context.Context, key string, rev uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return err
	}
	if e, ok := f.entries[key]; ok && e.rev != rev {
		return ErrRevisionMismatch
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeKV) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeKV) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin()
}

func (f *fakeKV) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

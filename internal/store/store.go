// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/parley/internal/cache"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
	"github.com/tomtom215/parley/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	userKeyPrefix      = "user:"
	userEmailKeyPrefix = "user_email:"
	messageKeyPrefix   = "msg:"
	convKeyPrefix      = "conv:"
	groupMsgKeyPrefix  = "gmsg:"
	groupKeyPrefix     = "group:"
	memberKeyPrefix    = "member:"
)

const (
	// maxConflictRetries bounds optimistic transaction retries on badger.ErrConflict.
	maxConflictRetries = 5

	// batchSize caps the number of messages rewritten per transaction in bulk updates.
	batchSize = 256

	gcDiscardRatio = 0.5
	closeTimeout   = 30 * time.Second

	userCacheSize = 10000
	userCacheTTL  = time.Minute
)

// Errors
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when a user with the same email already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Store persists users, messages and groups in BadgerDB.
type Store struct {
	db *badger.DB

	// users caches user records by id. Every write path refreshes it.
	users *cache.LRU[models.User]

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the badger database described by cfg.
func Open(cfg config.StorageConfig) (*Store, error) {
	if cfg.InMemory {
		return OpenInMemory()
	}

	opts := badger.DefaultOptions(cfg.Path)

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Store opened")
	return newStore(db), nil
}

// OpenInMemory opens a store that keeps everything in memory.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory BadgerDB: %w", err)
	}
	logging.Info().Msg("Store opened in memory")
	return newStore(db), nil
}

func newStore(db *badger.DB) *Store {
	return &Store{
		db:    db,
		users: cache.NewLRU[models.User](userCacheSize, userCacheTTL),
	}
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(closeTimeout):
		logging.Warn().Dur("timeout", closeTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", closeTimeout)
	}
}

// Ping reports whether the store can serve reads.
func (s *Store) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// RunGC runs value log garbage collection until nothing is left to rewrite.
func (s *Store) RunGC() error {
	if s.isClosed() {
		return ErrClosed
	}

	start := time.Now()
	defer func() { metrics.RecordStoreGC(time.Since(start)) }()

	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// update runs fn in a read-write transaction, retrying when another
// transaction committed a conflicting write first.
func (s *Store) update(op string, fn func(txn *badger.Txn) error) error {
	if s.isClosed() {
		return ErrClosed
	}
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		metrics.RecordStoreOp(op, "conflict")
	}
	recordResult(op, err)
	return err
}

// view runs fn in a read-only transaction.
func (s *Store) view(op string, fn func(txn *badger.Txn) error) error {
	if s.isClosed() {
		return ErrClosed
	}
	err := s.db.View(fn)
	recordResult(op, err)
	return err
}

func recordResult(op string, err error) {
	switch {
	case err == nil:
		metrics.RecordStoreOp(op, "ok")
	case errors.Is(err, ErrNotFound):
		metrics.RecordStoreOp(op, "not_found")
	case errors.Is(err, badger.ErrConflict):
		metrics.RecordStoreOp(op, "conflict")
	default:
		metrics.RecordStoreOp(op, "error")
	}
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func deleteKey(txn *badger.Txn, key string) error {
	if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// scanSuffixes returns the key suffixes after prefix in ascending key order.
func scanSuffixes(txn *badger.Txn, prefix string) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		out = append(out, string(it.Item().Key()[len(p):]))
	}
	return out
}

// NewID returns a time-ordered identifier. Lexical order of ids matches
// creation order, which the message indexes rely on.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

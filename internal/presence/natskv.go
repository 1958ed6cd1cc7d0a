// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/parley/internal/logging"
)

// NATSKV is a KVStore on a NATS JetStream key-value bucket.
type NATSKV struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NATSKVConfig configures OpenNATSKV.
type NATSKVConfig struct {
	URL    string
	Bucket string
	// TTL expires entries not rewritten within the window. Zero keeps entries forever.
	TTL time.Duration
	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration
}

// OpenNATSKV connects to NATS and binds (creating if needed) the presence bucket.
func OpenNATSKV(ctx context.Context, cfg NATSKVConfig) (*NATSKV, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("parley-presence"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn().Err(err).Msg("Presence store disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Presence store reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "online user -> connection handle",
		History:     1,
		TTL:         cfg.TTL,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind presence bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSKV{nc: nc, kv: kv}, nil
}

// Get implements KVStore.
func (s *NATSKV) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, 0, ErrKeyNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

// Put implements KVStore.
func (s *NATSKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Put(ctx, key, value)
	return err
}

// Create implements KVStore.
func (s *NATSKV) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := s.kv.Create(ctx, key, value)
	if errors.Is(err, jetstream.ErrKeyExists) {
		return 0, ErrKeyExists
	}
	return rev, err
}

// Update implements KVStore.
func (s *NATSKV) Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error) {
	next, err := s.kv.Update(ctx, key, value, rev)
	if wrongRevision(err) {
		return 0, ErrRevisionMismatch
	}
	return next, err
}

// Delete implements KVStore.
func (s *NATSKV) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// DeleteRevision implements KVStore.
func (s *NATSKV) DeleteRevision(ctx context.Context, key string, rev uint64) error {
	err := s.kv.Delete(ctx, key, jetstream.LastRevision(rev))
	if wrongRevision(err) {
		return ErrRevisionMismatch
	}
	return err
}

// wrongRevision reports whether err is the server rejecting an expected
// last-revision write.
func wrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Keys implements KVStore.
func (s *NATSKV) Keys(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	keys := make([]string, 0)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case key, ok := <-lister.Keys():
			if !ok {
				return keys, nil
			}
			keys = append(keys, key)
		}
	}
}

// Ping implements KVStore: a server round trip plus a bucket status read.
func (s *NATSKV) Ping(ctx context.Context) error {
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if _, err := s.kv.Status(ctx); err != nil {
		return fmt.Errorf("bucket status: %w", err)
	}
	return nil
}

// Close implements KVStore.
func (s *NATSKV) Close() error {
	s.nc.Close()
	return nil
}

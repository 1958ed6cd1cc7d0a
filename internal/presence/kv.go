// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"encoding/base64"
	"errors"
)

var (
	// ErrKeyNotFound is returned by KVStore.Get for absent or deleted keys.
	ErrKeyNotFound = errors.New("presence: key not found")

	// ErrRevisionMismatch is returned by KVStore.Update and
	// KVStore.DeleteRevision when the key was written after the given revision.
	ErrRevisionMismatch = errors.New("presence: revision mismatch")

	// ErrKeyExists is returned by KVStore.Create when the key holds a value.
	ErrKeyExists = errors.New("presence: key exists")
)

// KVStore is the shared key-value store behind SharedDirectory. Each key's
// value is only ever replaced wholesale.
type KVStore interface {
	// Get returns the value and its revision, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, uint64, error)

	// Put replaces the value of key.
	Put(ctx context.Context, key string, value []byte) error

	// Create writes key only if it is absent or deleted, returning
	// ErrKeyExists otherwise.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Update replaces the value of key only if its latest revision is rev,
	// returning ErrRevisionMismatch otherwise.
	Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteRevision removes key only if its latest revision is rev,
	// returning ErrRevisionMismatch otherwise.
	DeleteRevision(ctx context.Context, key string, rev uint64) error

	// Keys lists all live keys.
	Keys(ctx context.Context) ([]string, error)

	// Ping is a cheap liveness check.
	Ping(ctx context.Context) error

	Close() error
}

// encodeKey maps a user ID to a KV key. NATS keys only allow a restricted
// alphabet, and base64url stays inside it for any input.
func encodeKey(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func decodeKey(key string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

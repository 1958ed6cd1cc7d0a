// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/metrics"
)

const breakerName = "presence-kv"

// SharedDirectory is a Directory backed by a KVStore shared by every server
// process.
//
// Entries written by this process are also kept in a local mirror. When the
// store fails (or the breaker is open) reads answer from the mirror, which
// holds exactly the handles this process can push to. Writes always update
// the mirror first, so a store outage never loses local state.
type SharedDirectory struct {
	kv        KVStore
	cb        *gobreaker.CircuitBreaker[any]
	opTimeout time.Duration

	mu     sync.RWMutex
	mirror map[string]Handle
}

// NewSharedDirectory wraps kv with a circuit breaker configured by bc.
func NewSharedDirectory(kv KVStore, bc config.BreakerConfig) *SharedDirectory {
	opTimeout := bc.OpTimeout
	if opTimeout <= 0 {
		opTimeout = time.Second
	}
	threshold := bc.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Presence store circuit breaker state change")
			metrics.RecordBreakerTransition(name, from, to)
		},
	})

	return &SharedDirectory{
		kv:        kv,
		cb:        cb,
		opTimeout: opTimeout,
		mirror:    make(map[string]Handle),
	}
}

// exec runs fn through the breaker with a per-operation timeout.
func (d *SharedDirectory) exec(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return d.cb.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, d.opTimeout)
		defer cancel()
		return fn(opCtx)
	})
}

// AddOnline implements Directory.
func (d *SharedDirectory) AddOnline(ctx context.Context, userID string, h Handle) {
	if userID == "" {
		return
	}
	d.mu.Lock()
	d.mirror[userID] = h
	d.mu.Unlock()

	value, err := json.Marshal(h)
	if err == nil {
		_, err = d.exec(ctx, func(ctx context.Context) (any, error) {
			return nil, d.kv.Put(ctx, encodeKey(userID), value)
		})
	}
	d.record(ctx, "add", userID, err)
}

// RemoveOnline implements Directory.
func (d *SharedDirectory) RemoveOnline(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	d.mu.Lock()
	delete(d.mirror, userID)
	d.mu.Unlock()

	_, err := d.exec(ctx, func(ctx context.Context) (any, error) {
		return nil, d.kv.Delete(ctx, encodeKey(userID))
	})
	d.record(ctx, "remove", userID, err)
}

// RemoveIfCurrent implements Directory. The shared entry is removed with a
// revision-checked delete, so a newer connection registered by any process
// between the read and the delete survives. When the store cannot answer the
// result reflects the local mirror.
func (d *SharedDirectory) RemoveIfCurrent(ctx context.Context, userID string, h Handle) bool {
	if userID == "" {
		return false
	}
	d.mu.Lock()
	local, ok := d.mirror[userID]
	localMatch := ok && local.ID == h.ID
	if localMatch {
		delete(d.mirror, userID)
	}
	d.mu.Unlock()

	key := encodeKey(userID)
	res, err := d.exec(ctx, func(ctx context.Context) (any, error) {
		value, rev, err := d.kv.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return nil, err
		}
		var cur Handle
		if json.Unmarshal(value, &cur) != nil || cur.ID != h.ID {
			return false, nil
		}
		if err := d.kv.DeleteRevision(ctx, key, rev); err != nil {
			if errors.Is(err, ErrRevisionMismatch) {
				return false, nil
			}
			return nil, err
		}
		return true, nil
	})
	d.record(ctx, "remove_if_current", userID, err)
	if err != nil {
		return localMatch
	}

	removed, _ := res.(bool)
	return removed
}

// Lookup implements Directory. A store failure answers from the local mirror.
func (d *SharedDirectory) Lookup(ctx context.Context, userID string) (Handle, bool) {
	// "" encodes to an invalid key; the failure would count against the breaker.
	if userID == "" {
		return Handle{}, false
	}
	res, err := d.exec(ctx, func(ctx context.Context) (any, error) {
		value, _, err := d.kv.Get(ctx, encodeKey(userID))
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return value, err
	})
	d.record(ctx, "lookup", userID, err)
	if err != nil {
		return d.mirrorLookup(userID)
	}

	value, ok := res.([]byte)
	if !ok {
		return Handle{}, false
	}
	var h Handle
	if err := json.Unmarshal(value, &h); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Discarding undecodable presence entry")
		return Handle{}, false
	}
	return h, true
}

// ListOnline implements Directory. A store failure answers from the local mirror.
func (d *SharedDirectory) ListOnline(ctx context.Context) []string {
	res, err := d.exec(ctx, func(ctx context.Context) (any, error) {
		return d.kv.Keys(ctx)
	})
	d.record(ctx, "list", "", err)
	if err != nil {
		return d.mirrorList()
	}

	keys, _ := res.([]string)
	users := make([]string, 0, len(keys))
	for _, key := range keys {
		userID, err := decodeKey(key)
		if err != nil {
			continue
		}
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Mode implements Directory.
func (d *SharedDirectory) Mode() Mode {
	return ModeShared
}

// Refresh rewrites every entry this process owns. With a bucket TTL this
// keeps live entries from expiring, and after an outage it restores entries
// whose writes were lost.
//
// Every write is conditional on the revision read just before it. A key
// held by a handle connected later than the local one is left alone and the
// local entry is dropped; a key that vanished is recreated only if nobody
// wrote it in the meantime.
func (d *SharedDirectory) Refresh(ctx context.Context) error {
	d.mu.RLock()
	owned := make(map[string]Handle, len(d.mirror))
	for k, v := range d.mirror {
		owned[k] = v
	}
	d.mu.RUnlock()

	var firstErr error
	for userID, h := range owned {
		if err := d.refreshOne(ctx, userID, h); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("refresh %s: %w", userID, err)
		}
	}
	return firstErr
}

type refreshOutcome struct {
	rev        uint64
	written    bool
	superseded bool
}

func (d *SharedDirectory) refreshOne(ctx context.Context, userID string, h Handle) error {
	if !d.ownsLocally(userID, h) {
		return nil
	}
	value, err := json.Marshal(h)
	if err != nil {
		return err
	}

	key := encodeKey(userID)
	res, err := d.exec(ctx, func(ctx context.Context) (any, error) {
		cur, rev, err := d.kv.Get(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			rev, err = d.kv.Create(ctx, key, value)
			if errors.Is(err, ErrKeyExists) {
				return refreshOutcome{}, nil
			}
			if err != nil {
				return nil, err
			}
			return refreshOutcome{rev: rev, written: true}, nil
		}
		if err != nil {
			return nil, err
		}

		var stored Handle
		if json.Unmarshal(cur, &stored) == nil && stored.ID != h.ID && !stored.CreatedAt.Before(h.CreatedAt) {
			return refreshOutcome{superseded: true}, nil
		}
		rev, err = d.kv.Update(ctx, key, value, rev)
		if errors.Is(err, ErrRevisionMismatch) {
			return refreshOutcome{}, nil
		}
		if err != nil {
			return nil, err
		}
		return refreshOutcome{rev: rev, written: true}, nil
	})
	d.record(ctx, "refresh", userID, err)
	if err != nil {
		return err
	}

	out, _ := res.(refreshOutcome)
	switch {
	case out.superseded:
		d.mu.Lock()
		if cur, ok := d.mirror[userID]; ok && cur.ID == h.ID {
			delete(d.mirror, userID)
		}
		d.mu.Unlock()
		logging.Ctx(ctx).Debug().Str("user_id", userID).Str("handle", h.ID).
			Msg("Presence entry taken over by a newer connection, dropping local copy")
	case out.written && !d.ownsLocally(userID, h):
		// Released while the write was in flight: take the write back unless
		// someone has written over it since.
		_, err = d.exec(ctx, func(ctx context.Context) (any, error) {
			err := d.kv.DeleteRevision(ctx, key, out.rev)
			if errors.Is(err, ErrRevisionMismatch) {
				return nil, nil
			}
			return nil, err
		})
		d.record(ctx, "refresh", userID, err)
		return err
	}
	return nil
}

// ownsLocally reports whether the mirror still maps userID to h.
func (d *SharedDirectory) ownsLocally(userID string, h Handle) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cur, ok := d.mirror[userID]
	return ok && cur.ID == h.ID
}

// LocalCount returns the number of entries owned by this process.
func (d *SharedDirectory) LocalCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.mirror)
}

// BreakerState reports the circuit breaker state for health output.
func (d *SharedDirectory) BreakerState() string {
	return d.cb.State().String()
}

// Close closes the underlying store.
func (d *SharedDirectory) Close() error {
	return d.kv.Close()
}

func (d *SharedDirectory) mirrorLookup(userID string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.mirror[userID]
	return h, ok
}

func (d *SharedDirectory) mirrorList() []string {
	d.mu.RLock()
	users := make([]string, 0, len(d.mirror))
	for userID := range d.mirror {
		users = append(users, userID)
	}
	d.mu.RUnlock()
	sort.Strings(users)
	return users
}

func (d *SharedDirectory) record(ctx context.Context, op, userID string, err error) {
	metrics.RecordPresenceOp(string(ModeShared), op, err != nil)
	if err == nil {
		return
	}
	ev := logging.Ctx(ctx).Debug()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		ev = ev.Bool("breaker_open", true)
	}
	ev.Err(err).Str("op", op).Str("user_id", userID).Msg("Presence store unavailable, using local mirror")
}

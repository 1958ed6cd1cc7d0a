// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/parley/internal/models"
)

// CreateUser stores a new user and claims its email. The email is stored
// lowercased. An empty ID is assigned.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = NewID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	err := s.update("create_user", func(txn *badger.Txn) error {
		emailKey := []byte(userEmailKeyPrefix + user.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check email: %w", err)
		}

		if err := setJSON(txn, userKeyPrefix+user.ID, user); err != nil {
			return err
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return fmt.Errorf("set email index: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cacheUser(user)
	return nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users.Get(id); ok && !s.isClosed() {
		return &user, nil
	}

	var user models.User
	err := s.view("get_user", func(txn *badger.Txn) error {
		return getJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	s.cacheUser(&user)
	return &user, nil
}

// cacheUser stores a copy of u unless a newer version is already cached.
func (s *Store) cacheUser(u *models.User) {
	s.users.Upsert(u.ID, *u, func(old, next models.User) bool {
		return !next.UpdatedAt.Before(old.UpdatedAt)
	})
}

// GetUserByEmail returns the user registered with email (case-insensitive).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.view("get_user_by_email", func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailKeyPrefix + email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get email index: %w", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKeyPrefix+string(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies fn to the stored user and writes the result. The email
// index is not touched; fn must not change Email.
func (s *Store) UpdateUser(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	var user models.User
	err := s.update("update_user", func(txn *badger.Txn) error {
		user = models.User{}
		if err := getJSON(txn, userKeyPrefix+id, &user); err != nil {
			return err
		}
		email := user.Email
		if err := fn(&user); err != nil {
			return err
		}
		user.ID = id
		user.Email = email
		user.UpdatedAt = time.Now().UTC()
		return setJSON(txn, userKeyPrefix+id, &user)
	})
	if err != nil {
		return nil, err
	}
	s.cacheUser(&user)
	return &user, nil
}

// ListUsers returns every user ordered by full name, skipping excludeID.
func (s *Store) ListUsers(ctx context.Context, excludeID string) ([]models.User, error) {
	var users []models.User
	err := s.view("list_users", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var u models.User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				return err
			}
			if u.ID != excludeID {
				users = append(users, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].FullName != users[j].FullName {
			return users[i].FullName < users[j].FullName
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// GetUsers returns the users with the given ids keyed by id. Unknown ids are skipped.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	err := s.view("get_users", func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := out[id]; ok {
				continue
			}
			var u models.User
			err := getJSON(txn, userKeyPrefix+id, &u)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = &u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

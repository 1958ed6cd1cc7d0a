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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/parley/internal/models"
)

func memberKey(userID, groupID string) string {
	return memberKeyPrefix + userID + ":" + groupID
}

// CreateGroup stores a new group and indexes every member. An empty ID is assigned.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = NewID()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = group.CreatedAt

	return s.update("create_group", func(txn *badger.Txn) error {
		if err := setJSON(txn, groupKeyPrefix+group.ID, group); err != nil {
			return err
		}
		for _, m := range group.Members {
			if err := txn.Set([]byte(memberKey(m.UserID, group.ID)), nil); err != nil {
				return fmt.Errorf("set member index: %w", err)
			}
		}
		return nil
	})
}

// GetGroup returns the group with id.
func (s *Store) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := s.view("get_group", func(txn *badger.Txn) error {
		return getJSON(txn, groupKeyPrefix+id, &group)
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdateGroup applies fn to the stored group in one transaction and keeps the
// member index in step with the new member list. An error from fn aborts the
// write and is returned unchanged.
func (s *Store) UpdateGroup(ctx context.Context, id string, fn func(*models.Group) error) (*models.Group, error) {
	var group models.Group
	err := s.update("update_group", func(txn *badger.Txn) error {
		group = models.Group{}
		if err := getJSON(txn, groupKeyPrefix+id, &group); err != nil {
			return err
		}
		before := group.MemberIDs()
		if err := fn(&group); err != nil {
			return err
		}
		group.ID = id
		group.UpdatedAt = time.Now().UTC()
		if err := setJSON(txn, groupKeyPrefix+id, &group); err != nil {
			return err
		}

		after := make(map[string]bool, len(group.Members))
		for _, m := range group.Members {
			after[m.UserID] = true
			if err := txn.Set([]byte(memberKey(m.UserID, id)), nil); err != nil {
				return fmt.Errorf("set member index: %w", err)
			}
		}
		for _, userID := range before {
			if !after[userID] {
				if err := deleteKey(txn, memberKey(userID, id)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteGroup removes a group and its member index. Messages are untouched.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return s.update("delete_group", func(txn *badger.Txn) error {
		var group models.Group
		if err := getJSON(txn, groupKeyPrefix+id, &group); err != nil {
			return err
		}
		for _, userID := range group.MemberIDs() {
			if err := deleteKey(txn, memberKey(userID, id)); err != nil {
				return err
			}
		}
		return deleteKey(txn, groupKeyPrefix+id)
	})
}

// ListGroupsForUser returns the groups userID belongs to, most recently
// updated first.
func (s *Store) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	err := s.view("list_groups_for_user", func(txn *badger.Txn) error {
		for _, groupID := range scanSuffixes(txn, memberKeyPrefix+userID+":") {
			var g models.Group
			err := getJSON(txn, groupKeyPrefix+groupID, &g)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
	})
	return groups, nil
}

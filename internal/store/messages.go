// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/parley/internal/models"
)

// conversationPrefix returns the index prefix shared by both directions of a
// direct conversation.
func conversationPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return convKeyPrefix + a + ":" + b + ":"
}

func groupMessagesPrefix(groupID string) string {
	return groupMsgKeyPrefix + groupID + ":"
}

func indexPrefix(m *models.Message) string {
	if m.IsGroup() {
		return groupMessagesPrefix(m.GroupID)
	}
	return conversationPrefix(m.SenderID, m.ReceiverID)
}

// CreateMessage stores a new direct or group message and indexes it under its
// conversation. An empty ID is assigned a time-ordered id.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.GroupID == "" && msg.ReceiverID == "" {
		return errors.New("message needs a receiver or a group")
	}
	if msg.ID == "" {
		msg.ID = NewID()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = msg.CreatedAt
	if msg.Reactions == nil {
		msg.Reactions = []models.Reaction{}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []models.ReadReceipt{}
	}

	return s.update("create_message", func(txn *badger.Txn) error {
		if err := setJSON(txn, messageKeyPrefix+msg.ID, msg); err != nil {
			return err
		}
		if err := txn.Set([]byte(indexPrefix(msg)+msg.ID), nil); err != nil {
			return fmt.Errorf("set message index: %w", err)
		}
		return nil
	})
}

// GetMessage returns the message with id.
func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.view("get_message", func(txn *badger.Txn) error {
		return getJSON(txn, messageKeyPrefix+id, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage applies fn to the stored message inside a single transaction.
// An error from fn aborts the write and is returned unchanged.
func (s *Store) UpdateMessage(ctx context.Context, id string, fn func(*models.Message) error) (*models.Message, error) {
	var msg models.Message
	err := s.update("update_message", func(txn *badger.Txn) error {
		msg = models.Message{}
		if err := getJSON(txn, messageKeyPrefix+id, &msg); err != nil {
			return err
		}
		if err := fn(&msg); err != nil {
			return err
		}
		msg.ID = id
		msg.UpdatedAt = time.Now().UTC()
		return setJSON(txn, messageKeyPrefix+id, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListConversation returns up to limit non-deleted messages between a and b
// older than cursor (a message id), oldest first. An empty cursor starts at
// the newest message.
func (s *Store) ListConversation(ctx context.Context, a, b, cursor string, limit int) ([]models.Message, error) {
	return s.listIndexed("list_conversation", conversationPrefix(a, b), cursor, limit)
}

// ListGroupMessages is ListConversation for a group.
func (s *Store) ListGroupMessages(ctx context.Context, groupID, cursor string, limit int) ([]models.Message, error) {
	return s.listIndexed("list_group_messages", groupMessagesPrefix(groupID), cursor, limit)
}

// LastConversationMessage returns the newest non-deleted message between a and b.
func (s *Store) LastConversationMessage(ctx context.Context, a, b string) (*models.Message, error) {
	return s.last("last_conversation_message", conversationPrefix(a, b))
}

// LastGroupMessage returns the newest non-deleted message of a group.
func (s *Store) LastGroupMessage(ctx context.Context, groupID string) (*models.Message, error) {
	return s.last("last_group_message", groupMessagesPrefix(groupID))
}

func (s *Store) last(op, prefix string) (*models.Message, error) {
	msgs, err := s.listIndexed(op, prefix, "", 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

// listIndexed walks an index newest-first and returns the page in
// chronological order.
func (s *Store) listIndexed(op, prefix, cursor string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}

	msgs := make([]models.Message, 0, limit)
	err := s.view(op, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		var seek []byte
		if cursor != "" {
			seek = []byte(prefix + cursor)
		} else {
			seek = append([]byte(prefix), 0xFF)
		}

		for it.Seek(seek); it.ValidForPrefix(p) && len(msgs) < limit; it.Next() {
			id := string(it.Item().Key()[len(p):])
			if id == cursor {
				continue
			}
			var m models.Message
			err := getJSON(txn, messageKeyPrefix+id, &m)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if m.IsDeleted {
				continue
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkConversationRead adds a read receipt for reader to every unread,
// non-deleted message sender sent to reader. It returns the number of
// messages changed.
func (s *Store) MarkConversationRead(ctx context.Context, reader, sender string, at time.Time) (int, error) {
	return s.rewriteIndexed("mark_read", conversationPrefix(reader, sender), func(m *models.Message) bool {
		if m.SenderID != sender || m.ReceiverID != reader || m.IsDeleted || m.ReadByUser(reader) {
			return false
		}
		m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: reader, ReadAt: at})
		return true
	})
}

// SoftDeleteGroupMessages flags every message of a group as deleted and
// returns the number of messages changed.
func (s *Store) SoftDeleteGroupMessages(ctx context.Context, groupID string, at time.Time) (int, error) {
	return s.rewriteIndexed("soft_delete_group_messages", groupMessagesPrefix(groupID), func(m *models.Message) bool {
		if m.IsDeleted {
			return false
		}
		m.IsDeleted = true
		deletedAt := at
		m.DeletedAt = &deletedAt
		return true
	})
}

// rewriteIndexed applies change to every message under prefix, writing those
// for which change reports true. Writes are committed in batches so large
// conversations stay under badger's transaction size limit.
func (s *Store) rewriteIndexed(op, prefix string, change func(*models.Message) bool) (int, error) {
	var ids []string
	if err := s.view(op, func(txn *badger.Txn) error {
		ids = scanSuffixes(txn, prefix)
		return nil
	}); err != nil {
		return 0, err
	}

	changed := 0
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		n := 0
		err := s.update(op, func(txn *badger.Txn) error {
			n = 0
			now := time.Now().UTC()
			for _, id := range batch {
				var m models.Message
				err := getJSON(txn, messageKeyPrefix+id, &m)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if !change(&m) {
					continue
				}
				m.UpdatedAt = now
				if err := setJSON(txn, messageKeyPrefix+id, &m); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
		changed += n
	}
	return changed, nil
}

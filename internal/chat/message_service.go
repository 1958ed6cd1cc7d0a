// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/parley/internal/authz"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/store"
	"github.com/tomtom215/parley/internal/websocket"
)

// Notifier pushes committed changes to connected users. It is satisfied by
// *delivery.Notifier.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, event string, payload any) bool
	NotifyGroup(ctx context.Context, groupID, event string, payload any, excludeUserID string) int
}

// SendInput is the body of a direct or group send. At least one of text and
// image must be present.
type SendInput struct {
	Text  string `json:"text" validate:"max=2000"`
	Image string `json:"image" validate:"omitempty,imageref"`
}

// EditInput is the body of a message edit.
type EditInput struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

// ReactionInput is the body of a reaction add or remove.
type ReactionInput struct {
	Emoji string `json:"emoji" validate:"required,emoji"`
}

// PageRequest selects a page of history. A zero Limit uses the default page size.
type PageRequest struct {
	Cursor string
	Limit  int
}

// MessageService implements messaging on top of the store and pushes the
// result of every write through the Notifier.
type MessageService struct {
	store    *store.Store
	notifier Notifier
	enforcer *authz.Enforcer
	limits   config.LimitsConfig
	now      func() time.Time
}

// NewMessageService creates a MessageService.
func NewMessageService(s *store.Store, notifier Notifier, enforcer *authz.Enforcer, limits config.LimitsConfig) *MessageService {
	return &MessageService{
		store:    s,
		notifier: notifier,
		enforcer: enforcer,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sidebar lists every other user with the last message exchanged with them,
// followed by the user's groups with their last message, most recent
// activity first.
func (m *MessageService) Sidebar(ctx context.Context, userID string) ([]models.SidebarEntry, error) {
	users, err := m.store.ListUsers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	groups, err := m.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	entries := make([]models.SidebarEntry, 0, len(users)+len(groups))
	for i := range users {
		u := &users[i]
		entry := models.SidebarEntry{
			Type:       "user",
			ID:         u.ID,
			FullName:   u.FullName,
			Email:      u.Email,
			ProfilePic: u.ProfilePic,
		}
		last, err := m.store.LastConversationMessage(ctx, userID, u.ID)
		switch {
		case err == nil:
			read := last.ReadByUser(userID)
			entry.LastMessage = &models.LastMessage{Text: last.Text, IsRead: &read, CreatedAt: last.CreatedAt}
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("last message with %s: %w", u.ID, err)
		}
		entries = append(entries, entry)
	}

	senders := make(map[string]string)
	for i := range groups {
		g := &groups[i]
		entry := models.SidebarEntry{
			Type:        "group",
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
			Avatar:      g.Avatar,
			Members:     g.Members,
		}
		last, err := m.store.LastGroupMessage(ctx, g.ID)
		switch {
		case err == nil:
			entry.LastMessage = &models.LastMessage{
				Text:       last.Text,
				SenderName: m.senderName(ctx, senders, last.SenderID),
				CreatedAt:  last.CreatedAt,
			}
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("last message of group %s: %w", g.ID, err)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastActivity().After(entries[j].LastActivity())
	})
	return entries, nil
}

func (m *MessageService) senderName(ctx context.Context, cache map[string]string, userID string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := ""
	if u, err := m.store.GetUser(ctx, userID); err == nil {
		name = u.FullName
	}
	cache[userID] = name
	return name
}

// History returns a page of the conversation between userID and otherID,
// oldest first. The cursor is the id of the oldest message already seen.
func (m *MessageService) History(ctx context.Context, userID, otherID string, page PageRequest) (*models.MessagePage, error) {
	limit := m.pageLimit(page.Limit)
	msgs, err := m.store.ListConversation(ctx, userID, otherID, page.Cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return newPage(msgs, limit), nil
}

// GroupHistory returns a page of group messages with sender details. Only
// members may read it.
func (m *MessageService) GroupHistory(ctx context.Context, userID, groupID string, page PageRequest) (*models.MessagePage, error) {
	group, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group", "get group")
	}
	if !m.enforcer.CanGroup(group, userID, authz.ActionRead) {
		return nil, errForbidden("You are not a member of this group")
	}

	limit := m.pageLimit(page.Limit)
	msgs, err := m.store.ListGroupMessages(ctx, groupID, page.Cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	if err := m.attachSenders(ctx, msgs); err != nil {
		return nil, err
	}
	return newPage(msgs, limit), nil
}

func (m *MessageService) pageLimit(limit int) int {
	if limit <= 0 {
		limit = m.limits.DefaultPageSize
	}
	if m.limits.MaxPageSize > 0 && limit > m.limits.MaxPageSize {
		limit = m.limits.MaxPageSize
	}
	return limit
}

func newPage(msgs []models.Message, limit int) *models.MessagePage {
	page := &models.MessagePage{
		Messages:   msgs,
		Pagination: models.PaginationInfo{Limit: limit, HasMore: len(msgs) == limit && limit > 0},
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	if page.Pagination.HasMore {
		oldest := msgs[0].ID
		page.Pagination.NextCursor = &oldest
	}
	return page
}

func (m *MessageService) attachSenders(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	for i := range msgs {
		ids = append(ids, msgs[i].SenderID)
	}
	users, err := m.store.GetUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("load senders: %w", err)
	}
	for i := range msgs {
		if u, ok := users[msgs[i].SenderID]; ok {
			msgs[i].Sender = &models.Sender{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
		}
	}
	return nil
}

// prepareContent validates and sanitizes the body of a send.
func (m *MessageService) prepareContent(in *SendInput) (text, image string, err error) {
	if err := validate(in); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return "", "", errValidation("Message must have text or image")
	}
	if in.Text != "" {
		text, err = SanitizeMessage(in.Text, m.limits.MaxMessageLength)
		if err != nil {
			return "", "", err
		}
	}
	if text == "" && in.Image == "" {
		return "", "", errValidation("Message must have text or image")
	}
	return text, in.Image, nil
}

// SendDirect stores a message from senderID to receiverID and pushes it to
// the receiver as newMessage.
func (m *MessageService) SendDirect(ctx context.Context, senderID, receiverID string, in SendInput) (*models.Message, error) {
	if receiverID == senderID {
		return nil, errValidation("Cannot send a message to yourself")
	}
	text, image, err := m.prepareContent(&in)
	if err != nil {
		return nil, err
	}
	if _, err := m.store.GetUser(ctx, receiverID); err != nil {
		return nil, notFoundOr(err, "User", "get receiver")
	}

	msg := &models.Message{SenderID: senderID, ReceiverID: receiverID, Text: text, Image: image}
	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	delivered := m.notifier.NotifyUser(ctx, receiverID, websocket.EventNewMessage, msg)
	logging.Ctx(ctx).Info().
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Bool("delivered", delivered).
		Msg("Message sent")
	return msg, nil
}

// SendGroup stores a message in groupID and broadcasts it to the group room
// as newGroupMessage, skipping the sender's connection.
func (m *MessageService) SendGroup(ctx context.Context, senderID, groupID string, in SendInput) (*models.Message, error) {
	group, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group", "get group")
	}
	if !m.enforcer.CanGroup(group, senderID, authz.ActionSend) {
		return nil, errForbidden("You are not a member of this group")
	}
	text, image, err := m.prepareContent(&in)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{SenderID: senderID, GroupID: groupID, Text: text, Image: image}
	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if sender, err := m.store.GetUser(ctx, senderID); err == nil {
		msg.Sender = &models.Sender{ID: sender.ID, FullName: sender.FullName, ProfilePic: sender.ProfilePic}
	}

	reached := m.notifier.NotifyGroup(ctx, groupID, websocket.EventNewGroupMessage, msg, senderID)
	logging.Ctx(ctx).Info().
		Str("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("group_id", groupID).
		Int("reached", reached).
		Msg("Group message sent")
	return msg, nil
}

// Edit replaces the text of the caller's own message within the edit window.
func (m *MessageService) Edit(ctx context.Context, userID, messageID string, in EditInput) (*models.Message, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	text, err := SanitizeMessage(in.Text, m.limits.MaxMessageLength)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errValidation("Message cannot be empty")
	}

	now := m.now()
	msg, err := m.store.UpdateMessage(ctx, messageID, func(msg *models.Message) error {
		if !m.enforcer.CanMessage(msg, userID, authz.ActionEdit) {
			return errForbidden("You can only edit your own messages")
		}
		if msg.IsDeleted {
			return errValidation("Cannot edit deleted message")
		}
		if window := m.limits.EditWindow; window > 0 && now.Sub(msg.CreatedAt) > window {
			return errValidation("Cannot edit messages older than %d minutes", int(math.Round(window.Minutes())))
		}
		msg.Text = text
		msg.IsEdited = true
		msg.EditedAt = &now
		return nil
	})
	if err != nil {
		return nil, m.updateError(err)
	}

	m.notifyMessage(ctx, msg, userID, websocket.EventMessageEdited, models.MessageEditedEvent{
		MessageID: msg.ID,
		Text:      msg.Text,
		EditedAt:  now,
	})
	logging.Ctx(ctx).Info().Str("message_id", messageID).Str("user_id", userID).Msg("Message edited")
	return msg, nil
}

// Delete soft-deletes the caller's own message.
func (m *MessageService) Delete(ctx context.Context, userID, messageID string) error {
	now := m.now()
	msg, err := m.store.UpdateMessage(ctx, messageID, func(msg *models.Message) error {
		if !m.enforcer.CanMessage(msg, userID, authz.ActionDelete) {
			return errForbidden("You can only delete your own messages")
		}
		if msg.IsDeleted {
			return errValidation("Message already deleted")
		}
		msg.IsDeleted = true
		msg.DeletedAt = &now
		return nil
	})
	if err != nil {
		return m.updateError(err)
	}

	m.notifyMessage(ctx, msg, userID, websocket.EventMessageDeleted, models.MessageDeletedEvent{
		MessageID: msg.ID,
		DeletedAt: now,
	})
	logging.Ctx(ctx).Info().Str("message_id", messageID).Str("user_id", userID).Msg("Message deleted")
	return nil
}

// AddReaction records userID reacting to a message with emoji and returns
// the message's reactions.
func (m *MessageService) AddReaction(ctx context.Context, userID, messageID string, in ReactionInput) ([]models.Reaction, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	if err := m.checkParticipant(ctx, userID, messageID); err != nil {
		return nil, err
	}

	now := m.now()
	msg, err := m.store.UpdateMessage(ctx, messageID, func(msg *models.Message) error {
		if msg.IsDeleted {
			return errValidation("Cannot react to deleted message")
		}
		for _, r := range msg.Reactions {
			if r.UserID == userID && r.Emoji == in.Emoji {
				return errValidation("You already reacted with this emoji")
			}
		}
		msg.Reactions = append(msg.Reactions, models.Reaction{UserID: userID, Emoji: in.Emoji, CreatedAt: now})
		return nil
	})
	if err != nil {
		return nil, m.updateError(err)
	}

	m.notifyMessage(ctx, msg, userID, websocket.EventMessageReaction, models.MessageReactionEvent{
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     in.Emoji,
		Action:    models.ReactionAdd,
	})
	return msg.Reactions, nil
}

// RemoveReaction removes userID's emoji reaction from a message. Removing a
// reaction that does not exist is not an error.
func (m *MessageService) RemoveReaction(ctx context.Context, userID, messageID string, in ReactionInput) ([]models.Reaction, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	if err := m.checkParticipant(ctx, userID, messageID); err != nil {
		return nil, err
	}

	msg, err := m.store.UpdateMessage(ctx, messageID, func(msg *models.Message) error {
		kept := msg.Reactions[:0]
		for _, r := range msg.Reactions {
			if r.UserID != userID || r.Emoji != in.Emoji {
				kept = append(kept, r)
			}
		}
		msg.Reactions = kept
		return nil
	})
	if err != nil {
		return nil, m.updateError(err)
	}

	m.notifyMessage(ctx, msg, userID, websocket.EventMessageReaction, models.MessageReactionEvent{
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     in.Emoji,
		Action:    models.ReactionRemove,
	})
	return msg.Reactions, nil
}

// checkParticipant allows the sender and receiver of a direct message and
// the members of a group message's group.
func (m *MessageService) checkParticipant(ctx context.Context, userID, messageID string) error {
	msg, err := m.store.GetMessage(ctx, messageID)
	if err != nil {
		return notFoundOr(err, "Message", "get message")
	}
	if !msg.IsGroup() {
		if msg.SenderID != userID && msg.ReceiverID != userID {
			return errForbidden("You are not part of this conversation")
		}
		return nil
	}
	group, err := m.store.GetGroup(ctx, msg.GroupID)
	if err != nil {
		return notFoundOr(err, "Group", "get group")
	}
	if !m.enforcer.CanGroup(group, userID, authz.ActionRead) {
		return errForbidden("You are not a member of this group")
	}
	return nil
}

// MarkRead marks every unread message from senderID to readerID as read and
// tells the sender when anything changed. It returns the number of messages
// marked.
func (m *MessageService) MarkRead(ctx context.Context, readerID, senderID string) (int, error) {
	now := m.now()
	count, err := m.store.MarkConversationRead(ctx, readerID, senderID, now)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if count > 0 {
		m.notifier.NotifyUser(ctx, senderID, websocket.EventMessagesRead, models.MessagesReadEvent{
			ReadBy: readerID,
			ReadAt: now,
		})
	}
	return count, nil
}

// notifyMessage sends a change of msg to the other side of a direct
// conversation, or to the group room without the actor.
func (m *MessageService) notifyMessage(ctx context.Context, msg *models.Message, actorID, event string, payload any) {
	if msg.IsGroup() {
		m.notifier.NotifyGroup(ctx, msg.GroupID, event, payload, actorID)
		return
	}
	recipient := msg.ReceiverID
	if actorID == msg.ReceiverID {
		recipient = msg.SenderID
	}
	m.notifier.NotifyUser(ctx, recipient, event, payload)
}

func (m *MessageService) updateError(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return notFoundOr(err, "Message", "update message")
}

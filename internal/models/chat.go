// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package models

import (
	"time"
)

// Group member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a registered account. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	ProfilePic   string    `json:"profilePic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns the user without credentials.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

// PublicUser is the client-facing view of a user.
type PublicUser struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadReceipt records when a user read a message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is a direct message (ReceiverID set) or a group message (GroupID set).
type Message struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId,omitempty"`
	GroupID    string        `json:"groupId,omitempty"`
	Text       string        `json:"text,omitempty"`
	Image      string        `json:"image,omitempty"`
	Reactions  []Reaction    `json:"reactions"`
	ReadBy     []ReadReceipt `json:"readBy"`
	IsEdited   bool          `json:"isEdited"`
	EditedAt   *time.Time    `json:"editedAt,omitempty"`
	IsDeleted  bool          `json:"isDeleted"`
	DeletedAt  *time.Time    `json:"deletedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`

	// Sender is populated on group messages returned to clients.
	Sender *Sender `json:"sender,omitempty"`
}

// Sender is the author summary attached to group messages.
type Sender struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// IsGroup reports whether the message belongs to a group conversation.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// ReadByUser reports whether userID has a read receipt on the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// GroupMember is one membership entry of a group.
type GroupMember struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Group is a named conversation with an explicit member list.
type Group struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Avatar      string        `json:"avatar"`
	Members     []GroupMember `json:"members"`
	CreatedBy   string        `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Member returns the membership entry of userID.
func (g *Group) Member(userID string) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMember{}, false
}

// MemberIDs returns the user ids of all members in membership order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.UserID
	}
	return ids
}

// MessagePage is one page of conversation history in chronological order.
type MessagePage struct {
	Messages   []Message      `json:"messages"`
	Pagination PaginationInfo `json:"pagination"`
}

// LastMessage summarizes the newest message of a conversation.
type LastMessage struct {
	Text       string    `json:"text"`
	SenderName string    `json:"senderName,omitempty"`
	IsRead     *bool     `json:"isRead,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SidebarEntry is a user or group row of the chat list.
type SidebarEntry struct {
	Type        string        `json:"type"` // "user" or "group"
	ID          string        `json:"id"`
	FullName    string        `json:"fullName,omitempty"`
	Email       string        `json:"email,omitempty"`
	ProfilePic  string        `json:"profilePic,omitempty"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Avatar      string        `json:"avatar,omitempty"`
	Members     []GroupMember `json:"members,omitempty"`
	LastMessage *LastMessage  `json:"lastMessage"`
}

// LastActivity is the sort key of the sidebar; zero when there is no message.
func (e *SidebarEntry) LastActivity() time.Time {
	if e.LastMessage == nil {
		return time.Time{}
	}
	return e.LastMessage.CreatedAt
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/websocket"
)

func TestMessages_SendDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")

	msg := f.send(t, alice.ID, bob.ID, " <b>hi</b> & bye ")
	if msg.Text != "hi &amp; bye" {
		t.Errorf("Text = %q", msg.Text)
	}
	n := f.notes.last(t)
	if n.user != bob.ID || n.event != websocket.EventNewMessage || n.payload.(*models.Message).ID != msg.ID {
		t.Errorf("notification = %+v", n)
	}

	withImage, err := f.messages.SendDirect(ctx, alice.ID, bob.ID, SendInput{Image: "https://cdn.example.com/cat.jpg"})
	if err != nil || withImage.Image == "" || withImage.Text != "" {
		t.Errorf("image message = %+v, %v", withImage, err)
	}

	tests := []struct {
		name string
		to   string
		in   SendInput
		kind Kind
	}{
		{"empty", bob.ID, SendInput{Text: "   "}, KindValidation},
		{"markup only", bob.ID, SendInput{Text: "<p></p>"}, KindValidation},
		{"too long", bob.ID, SendInput{Text: strings.Repeat("x", 2001)}, KindValidation},
		{"bad image", bob.ID, SendInput{Image: "ftp://x"}, KindValidation},
		{"self", alice.ID, SendInput{Text: "me"}, KindValidation},
		{"unknown receiver", "ghost", SendInput{Text: "hello"}, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.notes.count()
			_, err := f.messages.SendDirect(ctx, alice.ID, tt.to, tt.in)
			wantKind(t, err, tt.kind)
			if f.notes.count() != before {
				t.Error("notification sent for a rejected message")
			}
		})
	}
}

func TestMessages_HistoryPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")

	for _, text := range []string{"m0", "m1", "m2", "m3", "m4"} {
		f.send(t, alice.ID, bob.ID, text)
	}

	var got [][]string
	cursor := ""
	for {
		page, err := f.messages.History(ctx, bob.ID, alice.ID, PageRequest{Cursor: cursor, Limit: 2})
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		var texts []string
		for _, m := range page.Messages {
			texts = append(texts, m.Text)
		}
		got = append(got, texts)
		if !page.Pagination.HasMore {
			if page.Pagination.NextCursor != nil {
				t.Error("NextCursor set on the last page")
			}
			break
		}
		if *page.Pagination.NextCursor != page.Messages[0].ID {
			t.Errorf("NextCursor = %s, want oldest id %s", *page.Pagination.NextCursor, page.Messages[0].ID)
		}
		cursor = *page.Pagination.NextCursor
	}

	want := "[[m3 m4] [m1 m2] [m0]]"
	if s := fmtPages(got); s != want {
		t.Errorf("pages = %s, want %s", s, want)
	}

	page, err := f.messages.History(ctx, alice.ID, bob.ID, PageRequest{Limit: 1000})
	if err != nil || page.Pagination.Limit != 100 || len(page.Messages) != 5 {
		t.Errorf("clamped page = %+v, %v", page.Pagination, err)
	}
}

func fmtPages(pages [][]string) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = "[" + strings.Join(p, " ") + "]"
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func TestMessages_Edit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	msg := f.send(t, alice.ID, bob.ID, "helo")

	_, err := f.messages.Edit(ctx, bob.ID, msg.ID, EditInput{Text: "hijack"})
	wantKind(t, err, KindForbidden)

	edited, err := f.messages.Edit(ctx, alice.ID, msg.ID, EditInput{Text: "hello"})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Text != "hello" || !edited.IsEdited || edited.EditedAt == nil {
		t.Errorf("edited = %+v", edited)
	}
	n := f.notes.last(t)
	ev, ok := n.payload.(models.MessageEditedEvent)
	if n.user != bob.ID || n.event != websocket.EventMessageEdited || !ok || ev.Text != "hello" {
		t.Errorf("notification = %+v", n)
	}

	_, err = f.messages.Edit(ctx, alice.ID, "missing", EditInput{Text: "x"})
	wantKind(t, err, KindNotFound)

	_, err = f.messages.Edit(ctx, alice.ID, msg.ID, EditInput{Text: "  "})
	wantKind(t, err, KindValidation)

	f.messages.now = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	_, err = f.messages.Edit(ctx, alice.ID, msg.ID, EditInput{Text: "late"})
	wantKind(t, err, KindValidation)
	if !strings.Contains(err.Error(), "15 minutes") {
		t.Errorf("edit window message = %q", err.Error())
	}
}

func TestMessages_DeleteAndReactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	carol := f.signup(t, "Carol", "carol@example.com")
	msg := f.send(t, alice.ID, bob.ID, "hello")

	reactions, err := f.messages.AddReaction(ctx, bob.ID, msg.ID, ReactionInput{Emoji: "👍"})
	if err != nil || len(reactions) != 1 || reactions[0].UserID != bob.ID {
		t.Fatalf("AddReaction() = %+v, %v", reactions, err)
	}
	n := f.notes.last(t)
	if n.user != alice.ID || n.event != websocket.EventMessageReaction {
		t.Errorf("reaction by receiver should notify the sender, got %+v", n)
	}
	if ev := n.payload.(models.MessageReactionEvent); ev.Action != models.ReactionAdd || ev.Emoji != "👍" {
		t.Errorf("payload = %+v", ev)
	}

	_, err = f.messages.AddReaction(ctx, bob.ID, msg.ID, ReactionInput{Emoji: "👍"})
	wantKind(t, err, KindValidation)
	_, err = f.messages.AddReaction(ctx, bob.ID, msg.ID, ReactionInput{Emoji: "nope"})
	wantKind(t, err, KindValidation)
	_, err = f.messages.AddReaction(ctx, carol.ID, msg.ID, ReactionInput{Emoji: "😀"})
	wantKind(t, err, KindForbidden)

	reactions, err = f.messages.RemoveReaction(ctx, bob.ID, msg.ID, ReactionInput{Emoji: "👍"})
	if err != nil || len(reactions) != 0 {
		t.Fatalf("RemoveReaction() = %+v, %v", reactions, err)
	}
	if ev := f.notes.last(t).payload.(models.MessageReactionEvent); ev.Action != models.ReactionRemove {
		t.Errorf("remove payload = %+v", ev)
	}

	wantKind(t, f.messages.Delete(ctx, bob.ID, msg.ID), KindForbidden)
	if err := f.messages.Delete(ctx, alice.ID, msg.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	n = f.notes.last(t)
	if n.user != bob.ID || n.event != websocket.EventMessageDeleted {
		t.Errorf("delete notification = %+v", n)
	}
	wantKind(t, f.messages.Delete(ctx, alice.ID, msg.ID), KindValidation)

	_, err = f.messages.AddReaction(ctx, bob.ID, msg.ID, ReactionInput{Emoji: "😀"})
	wantKind(t, err, KindValidation)
	_, err = f.messages.Edit(ctx, alice.ID, msg.ID, EditInput{Text: "again"})
	wantKind(t, err, KindValidation)

	page, err := f.messages.History(ctx, alice.ID, bob.ID, PageRequest{})
	if err != nil || len(page.Messages) != 0 {
		t.Errorf("deleted message still listed: %+v, %v", page, err)
	}
}

func TestMessages_MarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	f.send(t, alice.ID, bob.ID, "one")
	f.send(t, alice.ID, bob.ID, "two")
	f.send(t, bob.ID, alice.ID, "reply")

	count, err := f.messages.MarkRead(ctx, bob.ID, alice.ID)
	if err != nil || count != 2 {
		t.Fatalf("MarkRead() = %d, %v", count, err)
	}
	n := f.notes.last(t)
	ev, ok := n.payload.(models.MessagesReadEvent)
	if n.user != alice.ID || n.event != websocket.EventMessagesRead || !ok || ev.ReadBy != bob.ID {
		t.Errorf("notification = %+v", n)
	}

	before := f.notes.count()
	count, err = f.messages.MarkRead(ctx, bob.ID, alice.ID)
	if err != nil || count != 0 {
		t.Fatalf("second MarkRead() = %d, %v", count, err)
	}
	if f.notes.count() != before {
		t.Error("messagesRead sent when nothing changed")
	}
}

func TestMessages_Group(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	carol := f.signup(t, "Carol", "carol@example.com")

	group, err := f.groups.Create(ctx, alice.ID, CreateGroupInput{Name: "Team", MemberIDs: []string{bob.ID}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.messages.SendGroup(ctx, carol.ID, group.ID, SendInput{Text: "let me in"})
	wantKind(t, err, KindForbidden)
	_, err = f.messages.SendGroup(ctx, bob.ID, "missing", SendInput{Text: "hi"})
	wantKind(t, err, KindNotFound)

	msg, err := f.messages.SendGroup(ctx, bob.ID, group.ID, SendInput{Text: "hi team"})
	if err != nil {
		t.Fatalf("SendGroup() error = %v", err)
	}
	if msg.Sender == nil || msg.Sender.FullName != "Bob" {
		t.Errorf("Sender = %+v", msg.Sender)
	}
	n := f.notes.last(t)
	if n.group != group.ID || n.exclude != bob.ID || n.event != websocket.EventNewGroupMessage {
		t.Errorf("notification = %+v", n)
	}

	if _, err := f.messages.Edit(ctx, bob.ID, msg.ID, EditInput{Text: "hi all"}); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	n = f.notes.last(t)
	if n.group != group.ID || n.exclude != bob.ID || n.event != websocket.EventMessageEdited {
		t.Errorf("group edit notification = %+v", n)
	}

	if _, err := f.messages.AddReaction(ctx, alice.ID, msg.ID, ReactionInput{Emoji: "🎉"}); err != nil {
		t.Fatalf("AddReaction() error = %v", err)
	}
	_, err = f.messages.AddReaction(ctx, carol.ID, msg.ID, ReactionInput{Emoji: "🎉"})
	wantKind(t, err, KindForbidden)

	_, err = f.messages.GroupHistory(ctx, carol.ID, group.ID, PageRequest{})
	wantKind(t, err, KindForbidden)
	page, err := f.messages.GroupHistory(ctx, alice.ID, group.ID, PageRequest{})
	if err != nil || len(page.Messages) != 1 {
		t.Fatalf("GroupHistory() = %+v, %v", page, err)
	}
	if s := page.Messages[0].Sender; s == nil || s.ID != bob.ID {
		t.Errorf("history sender = %+v", s)
	}
}

func TestMessages_Sidebar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")
	carol := f.signup(t, "Carol", "carol@example.com")

	f.send(t, bob.ID, alice.ID, "hey alice")
	time.Sleep(2 * time.Millisecond)
	group, err := f.groups.Create(ctx, alice.ID, CreateGroupInput{Name: "Team", MemberIDs: []string{carol.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.messages.SendGroup(ctx, carol.ID, group.ID, SendInput{Text: "latest"}); err != nil {
		t.Fatal(err)
	}

	entries, err := f.messages.Sidebar(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Sidebar() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	g, b, c := entries[0], entries[1], entries[2]
	if g.Type != "group" || g.ID != group.ID || g.LastMessage == nil || g.LastMessage.SenderName != "Carol" {
		t.Errorf("first entry = %+v", g)
	}
	if b.Type != "user" || b.ID != bob.ID || b.LastMessage == nil || b.LastMessage.Text != "hey alice" {
		t.Errorf("second entry = %+v", b)
	}
	if b.LastMessage.IsRead == nil || *b.LastMessage.IsRead {
		t.Errorf("unread message reported read: %+v", b.LastMessage)
	}
	if c.ID != carol.ID || c.LastMessage != nil {
		t.Errorf("third entry = %+v", c)
	}

	if _, err := f.messages.MarkRead(ctx, alice.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	entries, _ = f.messages.Sidebar(ctx, alice.ID)
	if lm := entries[1].LastMessage; lm == nil || lm.IsRead == nil || !*lm.IsRead {
		t.Errorf("read message reported unread: %+v", lm)
	}
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/models"
)

type messageResponse struct {
	Message *models.Message `json:"message"`
}

type reactionsResponse struct {
	MessageID string            `json:"messageId"`
	Reactions []models.Reaction `json:"reactions"`
}

func pageRequest(r *http.Request) chat.PageRequest {
	return chat.PageRequest{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  getIntParam(r, "limit", 0),
	}
}

// Sidebar lists every other user and the caller's groups with their latest
// message, most recent activity first.
func (h *Handler) Sidebar(w http.ResponseWriter, r *http.Request) {
	entries, err := h.messages.Sidebar(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{"conversations": entries})
}

// DirectHistory returns a page of the conversation with the user in the path.
//
// Query: cursor (message id, exclusive), limit.
func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.messages.History(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), pageRequest(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, page)
}

// GroupHistory returns a page of a group's messages. The caller must be a member.
func (h *Handler) GroupHistory(w http.ResponseWriter, r *http.Request) {
	page, err := h.messages.GroupHistory(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), pageRequest(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, page)
}

// SendDirect sends a message to the user in the path.
func (h *Handler) SendDirect(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if !decodeJSON(w, r, &in) {
		return
	}

	msg, err := h.messages.SendDirect(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, messageResponse{Message: msg})
}

// SendGroup sends a message to the group in the path.
func (h *Handler) SendGroup(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if !decodeJSON(w, r, &in) {
		return
	}

	msg, err := h.messages.SendGroup(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, messageResponse{Message: msg})
}

// EditMessage replaces the text of the caller's own message.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var in chat.EditInput
	if !decodeJSON(w, r, &in) {
		return
	}

	msg, err := h.messages.Edit(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, messageResponse{Message: msg})
}

// DeleteMessage soft-deletes the caller's own message.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.messages.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"messageId": id})
}

// AddReaction adds the caller's emoji to a message.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	var in chat.ReactionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	id := chi.URLParam(r, "id")
	reactions, err := h.messages.AddReaction(r.Context(), currentUser(r).ID, id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, reactionsResponse{MessageID: id, Reactions: reactions})
}

// RemoveReaction removes the caller's emoji from a message. The emoji comes
// from the body or, for clients that cannot send a DELETE body, the "emoji"
// query parameter.
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	var in chat.ReactionInput
	if emoji := r.URL.Query().Get("emoji"); emoji != "" {
		in.Emoji = emoji
	} else if !decodeJSON(w, r, &in) {
		return
	}

	id := chi.URLParam(r, "id")
	reactions, err := h.messages.RemoveReaction(r.Context(), currentUser(r).ID, id, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, reactionsResponse{MessageID: id, Reactions: reactions})
}

// MarkRead marks every message from the user in the path to the caller as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.messages.MarkRead(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]int{"markedCount": count})
}

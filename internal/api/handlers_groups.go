// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/parley/internal/chat"
)

type groupResponse struct {
	Group *chat.GroupView `json:"group"`
}

func respondGroup(w http.ResponseWriter, r *http.Request, status int, group *chat.GroupView, err error) {
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, status, groupResponse{Group: group})
}

// CreateGroup creates a group with the caller as creator and admin.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var in chat.CreateGroupInput
	if !decodeJSON(w, r, &in) {
		return
	}
	group, err := h.groups.Create(r.Context(), currentUser(r).ID, in)
	respondGroup(w, r, http.StatusCreated, group, err)
}

// ListGroups lists the caller's groups.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{"groups": groups})
}

// GroupDetails returns a group the caller belongs to.
func (h *Handler) GroupDetails(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Details(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	respondGroup(w, r, http.StatusOK, group, err)
}

// AddMembers adds users to a group. Admins only.
func (h *Handler) AddMembers(w http.ResponseWriter, r *http.Request) {
	var in chat.AddMembersInput
	if !decodeJSON(w, r, &in) {
		return
	}
	group, err := h.groups.AddMembers(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	respondGroup(w, r, http.StatusOK, group, err)
}

// RemoveMember removes a member from a group. Admins only.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.RemoveMember(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), chi.URLParam(r, "memberId"))
	respondGroup(w, r, http.StatusOK, group, err)
}

// PromoteMember makes a member an admin. Admins only.
func (h *Handler) PromoteMember(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Promote(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), chi.URLParam(r, "memberId"))
	respondGroup(w, r, http.StatusOK, group, err)
}

// UpdateGroup changes a group's name and/or description. Admins only.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in chat.UpdateGroupInput
	if !decodeJSON(w, r, &in) {
		return
	}
	group, err := h.groups.Update(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), in)
	respondGroup(w, r, http.StatusOK, group, err)
}

// LeaveGroup removes the caller from a group.
func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.groups.Leave(r.Context(), currentUser(r).ID, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"groupId": id})
}

// DeleteGroup deletes a group and soft-deletes its messages. Creator only.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.groups.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"groupId": id})
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"net/http"

	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/models"
)

type userResponse struct {
	User models.PublicUser `json:"user"`
}

// Signup creates an account and starts a session.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in chat.SignupInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}
	h.security.LogLoginSuccess("signup", user.ID, user.Email, r.RemoteAddr)
	respondSuccess(w, r, http.StatusCreated, userResponse{User: user.Public()})
}

// Login checks credentials and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in chat.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.security.LogLoginFailure(chat.SanitizeEmail(in.Email), r.RemoteAddr, string(chat.KindOf(err)))
		respondServiceError(w, r, err)
		return
	}

	if !h.startSession(w, r, user.ID) {
		return
	}
	h.security.LogLoginSuccess("login", user.ID, user.Email, r.RemoteAddr)
	respondSuccess(w, r, http.StatusOK, userResponse{User: user.Public()})
}

// Logout clears the session cookie. It succeeds without a session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	h.security.LogLogout("", r.RemoteAddr)
	respondSuccess(w, r, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// UpdateProfile changes the caller's name and/or profile picture.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in chat.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), currentUser(r).ID, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, userResponse{User: user.Public()})
}

// CheckAuth returns the authenticated user.
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, userResponse{User: currentUser(r).Public()})
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID string) bool {
	if _, err := h.sessions.SetSessionCookie(w, userID); err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", err)
		return false
	}
	return true
}

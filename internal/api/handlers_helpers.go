// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/chat"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/middleware"
	"github.com/tomtom215/parley/internal/models"
)

// maxBodyBytes bounds request bodies. Inline data URI images make message
// bodies larger than typical JSON.
const maxBodyBytes = 8 << 20

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func metadata(r *http.Request) models.Metadata {
	return models.Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
}

// respondSuccess wraps data in the success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: metadata(r),
	})
}

// respondError sends an error response. err is logged, never returned to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: metadata(r),
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondServiceError maps a chat service error to its HTTP status. Errors
// that are not *chat.Error are internal failures.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		requestTimedOut(w, r)
		return
	}
	var ce *chat.Error
	if !errors.As(err, &ce) {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch ce.Kind {
	case chat.KindValidation:
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case chat.KindNotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	case chat.KindForbidden:
		status, code = http.StatusForbidden, "FORBIDDEN"
	case chat.KindConflict:
		status, code = http.StatusConflict, "CONFLICT"
	case chat.KindUnauthorized:
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: metadata(r),
		Error: &models.APIError{
			Code:    code,
			Message: ce.Message,
			Details: ce.Details,
		},
	})
}

// decodeJSON decodes the request body into v. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
	case errors.Is(err, io.EOF):
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Request body is required", nil)
	default:
		respondError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
	}
	return false
}

// currentUser returns the user stored by auth.Middleware.Authenticate.
// Routes using it are always mounted behind that middleware.
func currentUser(r *http.Request) *models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

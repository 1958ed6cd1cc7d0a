// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"errors"
	"fmt"

	"github.com/tomtom215/parley/internal/store"
	"github.com/tomtom215/parley/internal/validation"
)

// Kind classifies a service error for the transport layer.
type Kind string

// Error kinds.
const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
)

// Error is a caller-facing failure. Anything that is not an *Error is an
// internal failure.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func errValidation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func errConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func errUnauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// validate runs struct validation on a request body.
func validate(input interface{}) error {
	if verr := validation.ValidateStruct(input); verr != nil {
		return &Error{Kind: KindValidation, Message: verr.Error(), Details: verr.Details()}
	}
	return nil
}

// notFoundOr maps store.ErrNotFound to a not-found error for resource and
// wraps anything else.
func notFoundOr(err error, resource, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound(resource)
	}
	return fmt.Errorf("%s: %w", op, err)
}

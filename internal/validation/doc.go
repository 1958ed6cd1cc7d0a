// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the REST handlers and the realtime
// event decoder. Field names in messages are the JSON names of the struct
// fields, so a failure on
//
//	type SignupRequest struct {
//	    FullName string `json:"fullName" validate:"required,notblank,max=50"`
//	}
//
// reads "fullName is required".
//
// # Custom Tags
//
//   - notblank: string is not empty after trimming whitespace
//   - imageref: http(s) URL, or base64 data URI of an allowed image type
//     (jpeg, png, gif, webp) no larger than 5MB
//
// # Errors
//
// ValidateStruct returns *RequestValidationError, which lists every failing
// field. Details() gives a map suitable for the API error envelope.
package validation

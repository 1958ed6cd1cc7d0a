// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Image reference limits.
const (
	MaxImageBytes = 5 * 1024 * 1024
)

// AllowedImageTypes lists the MIME types accepted in data URI image references.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z0-9+/.-]+);base64,(.+)$`)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError represents a single field validation error with structured information.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the JSON name of the field that failed validation.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError represents a collection of validation errors.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Details returns per-field messages keyed by JSON field name.
func (ve *RequestValidationError) Details() map[string]interface{} {
	if len(ve.errors) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(ve.errors))
	for _, err := range ve.errors {
		fields[err.field] = err.message
	}
	return map[string]interface{}{"fields": fields}
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names so messages match request bodies.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("imageref", validateImageRef)
		_ = validate.RegisterValidation("notblank", validateNotBlank)
		_ = validate.RegisterValidation("emoji", validateEmoji)
	})

	return validate
}

// ValidateStruct validates a struct using the singleton validator.
// Returns nil if validation passes, or *RequestValidationError if validation fails.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{
				field:   "unknown",
				tag:     "unknown",
				message: err.Error(),
			}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// CheckImageRef validates an image reference: an http(s) URL or a base64
// data URI of an allowed image type no larger than MaxImageBytes.
func CheckImageRef(ref string) error {
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		if err := GetValidator().Var(ref, "url"); err != nil {
			return fmt.Errorf("invalid image URL")
		}
		return nil
	}

	matches := dataURIPattern.FindStringSubmatch(ref)
	if matches == nil {
		return fmt.Errorf("invalid image format, expected an image URL or base64 data URI")
	}
	mimeType, data := matches[1], matches[2]

	allowed := false
	for _, t := range AllowedImageTypes {
		if t == mimeType {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("image type %q not allowed, supported types: %s", mimeType, strings.Join(AllowedImageTypes, ", "))
	}

	if size := (len(data)*3 + 3) / 4; size > MaxImageBytes {
		return fmt.Errorf("image size exceeds %dMB limit", MaxImageBytes/(1024*1024))
	}
	return nil
}

func validateImageRef(fl validator.FieldLevel) bool {
	return CheckImageRef(fl.Field().String()) == nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// emojiRanges are the code point blocks a single reaction emoji may come from.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols and pictographs
	{0x1F680, 0x1F6FF}, // transport and map
	{0x2600, 0x26FF},   // miscellaneous symbols
	{0x2700, 0x27BF},   // dingbats
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1F1E0, 0x1F1FF}, // regional indicators
}

// IsEmoji reports whether s is exactly one emoji code point.
func IsEmoji(s string) bool {
	runes := []rune(s)
	if len(runes) != 1 {
		return false
	}
	for _, r := range emojiRanges {
		if runes[0] >= r[0] && runes[0] <= r[1] {
			return true
		}
	}
	return false
}

func validateEmoji(fl validator.FieldLevel) bool {
	return IsEmoji(fl.Field().String())
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
	"email":    "%s must be a valid email address",
	"url":      "%s must be a valid URL",
	"imageref": "%s must be an image URL or a base64 image data URI up to 5MB",
	"uuid":     "%s must be a valid id",
	"dive":     "%s contains an invalid entry",
	"unique":   "%s must not contain duplicates",
	"emoji":    "%s must be a single emoji",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}
	return translateMinMax(fe, field, tag, param)
}

// translateMinMax handles min/max validation with type-specific messages.
func translateMinMax(fe validator.FieldError, field, tag, param string) string {
	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

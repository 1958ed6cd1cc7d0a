// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// SanitizeText strips markup, escapes HTML metacharacters and trims space.
func SanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(htmlEscaper.Replace(s))
}

// SanitizeMessage is SanitizeText plus a length check in characters.
func SanitizeMessage(s string, maxLen int) (string, error) {
	s = SanitizeText(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", errValidation("Message cannot exceed %d characters", maxLen)
	}
	return s, nil
}

// SanitizeName strips markup and the characters <>"'& from a display name,
// then truncates it to maxLen characters.
func SanitizeName(s string, maxLen int) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}

// SanitizeEmail normalizes an email address for lookup and storage.
func SanitizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

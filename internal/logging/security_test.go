// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"alice@example.com": "a***@example.com",
		"b@x.io":            "b***@x.io",
		"no-at-sign":        "[REDACTED]",
		"@leading.com":      "[REDACTED]",
	}
	for in, want := range tests {
		if got := SanitizeEmail(in); got != want {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	if got := SanitizeToken(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := SanitizeToken("short"); got != "[REDACTED]" {
		t.Errorf("expected redaction, got %q", got)
	}
	if got := SanitizeToken("eyJhbGciOiJIUzI1NiJ9.payload"); got != "eyJhbGci..." {
		t.Errorf("unexpected token mask %q", got)
	}
}

func TestSecurityLogger_LogLoginFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogLoginFailure("alice@example.com", "10.0.0.1", "invalid credentials")

	out := buf.String()
	for _, want := range []string{`"status":"failed"`, `"email":"a***@example.com"`, `"component":"auth"`, `"reason":"invalid credentials"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output, got: %s", want, out)
		}
	}
	if strings.Contains(out, "alice@") {
		t.Errorf("raw email leaked into log: %s", out)
	}
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type signupRequest struct {
	FullName string   `json:"fullName" validate:"required,notblank,max=50"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Avatar   string   `json:"avatar" validate:"omitempty,imageref"`
	Members  []string `json:"members" validate:"omitempty,max=3,unique"`
	Hidden   string   `json:"-" validate:"omitempty,max=1"`
}

func validSignup() signupRequest {
	return signupRequest{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "secret1",
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*signupRequest)
		wantField string
		wantMsg   string
	}{
		{name: "valid", mutate: func(*signupRequest) {}},
		{name: "missing name", mutate: func(r *signupRequest) { r.FullName = "" }, wantField: "fullName", wantMsg: "fullName is required"},
		{name: "blank name", mutate: func(r *signupRequest) { r.FullName = "   " }, wantField: "fullName", wantMsg: "fullName must not be blank"},
		{name: "long name", mutate: func(r *signupRequest) { r.FullName = strings.Repeat("a", 51) }, wantField: "fullName", wantMsg: "fullName must be at most 50 characters"},
		{name: "bad email", mutate: func(r *signupRequest) { r.Email = "nope" }, wantField: "email", wantMsg: "email must be a valid email address"},
		{name: "short password", mutate: func(r *signupRequest) { r.Password = "12345" }, wantField: "password", wantMsg: "password must be at least 6 characters"},
		{name: "image url", mutate: func(r *signupRequest) { r.Avatar = "https://img.example.com/a.png" }},
		{name: "image data uri", mutate: func(r *signupRequest) { r.Avatar = "data:image/png;base64,iVBORw0KGgo=" }},
		{name: "bad image", mutate: func(r *signupRequest) { r.Avatar = "ftp://x" }, wantField: "avatar"},
		{name: "too many members", mutate: func(r *signupRequest) { r.Members = []string{"a", "b", "c", "d"} }, wantField: "members", wantMsg: "members must be at most 3 items"},
		{name: "duplicate members", mutate: func(r *signupRequest) { r.Members = []string{"a", "a"} }, wantField: "members", wantMsg: "members must not contain duplicates"},
		{name: "json dash uses struct name", mutate: func(r *signupRequest) { r.Hidden = "xx" }, wantField: "Hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSignup()
			tt.mutate(&req)

			err := ValidateStruct(&req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(err.Errors()) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(err.Errors()), err)
			}
			fe := err.Errors()[0]
			if fe.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", fe.Field(), tt.wantField)
			}
			if tt.wantMsg != "" && fe.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", fe.Error(), tt.wantMsg)
			}
		})
	}
}

func TestRequestValidationError_MultipleFields(t *testing.T) {
	err := ValidateStruct(&signupRequest{})
	if err == nil {
		t.Fatal("ValidateStruct() = nil for empty request")
	}
	if len(err.Errors()) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(err.Errors()), err)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q, want joined messages", err.Error())
	}

	fields, ok := err.Details()["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("Details() = %#v", err.Details())
	}
	for _, f := range []string{"fullName", "email", "password"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("Details() missing %s", f)
		}
	}
}

func TestRequestValidationError_Empty(t *testing.T) {
	var ve RequestValidationError
	if ve.Error() != "validation failed" {
		t.Errorf("Error() = %q", ve.Error())
	}
	if ve.Details() != nil {
		t.Errorf("Details() = %v, want nil", ve.Details())
	}
}

func TestCheckImageRef(t *testing.T) {
	big := "data:image/png;base64," + strings.Repeat("A", (MaxImageBytes/3)*4+8)

	tests := []struct {
		name    string
		ref     string
		wantErr string
	}{
		{"https url", "https://cdn.example.com/pic.jpg", ""},
		{"http url", "http://localhost:9000/pic.jpg", ""},
		{"jpeg data uri", "data:image/jpeg;base64,/9j/4AAQ", ""},
		{"webp data uri", "data:image/webp;base64,UklGRg==", ""},
		{"not a reference", "hello", "invalid image format"},
		{"svg rejected", "data:image/svg+xml;base64,PHN2Zz4=", "not allowed"},
		{"too large", big, "exceeds 5MB"},
		{"broken url", "https://exa mple.com/x", "invalid image URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckImageRef(tt.ref)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckImageRef() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckImageRef() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestIsEmoji(t *testing.T) {
	tests := map[string]bool{
		"😀":  true,
		"👍":  true,
		"❤":  true,
		"🚀":  true,
		"":   false,
		"a":  false,
		"😀😀": false,
		":)": false,
	}
	for in, want := range tests {
		if got := IsEmoji(in); got != want {
			t.Errorf("IsEmoji(%q) = %v, want %v", in, got, want)
		}
	}

	type reaction struct {
		Emoji string `json:"emoji" validate:"required,emoji"`
	}
	verr := ValidateStruct(&reaction{Emoji: "x"})
	if verr == nil || verr.Errors()[0].Error() != "emoji must be a single emoji" {
		t.Errorf("ValidateStruct() = %v", verr)
	}
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/store"
	"github.com/tomtom215/parley/internal/validation"
)

const maxNameLength = 50

// SignupInput is the body of a signup request.
type SignupInput struct {
	FullName string `json:"fullName" validate:"required,notblank,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// ProfileInput is the body of a profile update. Absent fields are left alone.
type ProfileInput struct {
	FullName   *string `json:"fullName" validate:"omitempty,min=2,max=50"`
	ProfilePic *string `json:"profilePic" validate:"omitempty,imageref"`
}

// AuthService registers users and checks their credentials. Token issuance
// is left to the transport, which owns the session cookie.
type AuthService struct {
	store      *store.Store
	bcryptCost int
}

// NewAuthService creates an AuthService.
func NewAuthService(s *store.Store, bcryptCost int) *AuthService {
	return &AuthService{store: s, bcryptCost: bcryptCost}
}

// Signup creates an account. The email is normalized and must be unused.
func (a *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	name := SanitizeName(in.FullName, maxNameLength)
	if name == "" {
		return nil, errValidation("Full name is required")
	}

	hash, err := auth.HashPassword(in.Password, a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FullName:     name,
		Email:        SanitizeEmail(in.Email),
		PasswordHash: hash,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, errConflict("Email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("User registered")
	return user, nil
}

// Login returns the account matching the credentials. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (a *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	user, err := a.store.GetUserByEmail(ctx, SanitizeEmail(in.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if err := auth.CheckPassword(hash, in.Password); err != nil {
		return nil, errUnauthorized("Invalid credentials")
	}
	return user, nil
}

// UpdateProfile changes the display name and/or the profile picture.
func (a *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	if in.FullName == nil && in.ProfilePic == nil {
		return nil, errValidation("No fields to update")
	}

	var name string
	if in.FullName != nil {
		name = SanitizeName(*in.FullName, maxNameLength)
		if name == "" {
			return nil, errValidation("Full name cannot be empty")
		}
	}
	if in.ProfilePic != nil && *in.ProfilePic != "" {
		if err := validation.CheckImageRef(*in.ProfilePic); err != nil {
			return nil, errValidation("%s", err.Error())
		}
	}

	user, err := a.store.UpdateUser(ctx, userID, func(u *models.User) error {
		if in.FullName != nil {
			u.FullName = name
		}
		if in.ProfilePic != nil {
			u.ProfilePic = *in.ProfilePic
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "User", "update profile")
	}

	logging.Ctx(ctx).Info().Str("user_id", userID).Msg("Profile updated")
	return user, nil
}

// GetUser returns the account with id.
func (a *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := a.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "User", "get user")
	}
	return user, nil
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/parley/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles. RoleCreator and RoleAuthor are derived per request; admin and member
// are stored on the group.
const (
	RoleCreator = "creator"
	RoleAdmin   = models.RoleAdmin
	RoleMember  = models.RoleMember
	RoleAuthor  = "author"
	RoleNone    = ""
)

// Objects.
const (
	ObjectGroup   = "group"
	ObjectMessage = "message"
)

// Actions.
const (
	ActionRead         = "read"
	ActionSend         = "send"
	ActionLeave        = "leave"
	ActionAddMembers   = "add_members"
	ActionRemoveMember = "remove_member"
	ActionUpdate       = "update"
	ActionPromote      = "promote"
	ActionDelete       = "delete"
	ActionEdit         = "edit"
)

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath is the path to the Casbin model file.
	// If empty, uses embedded model.
	ModelPath string

	// PolicyPath is the path to the Casbin policy file.
	// If empty, uses embedded policy.
	PolicyPath string
}

// Enforcer answers role/object/action questions from the group policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer creates an enforcer. A nil config uses the embedded model and policy.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = &EnforcerConfig{}
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ptype, rule := parts[0], parts[1:]

		switch ptype {
		case "p":
			if len(rule) >= 3 {
				if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
					return fmt.Errorf("failed to add policy %v: %w", rule, err)
				}
			}
		case "g":
			if len(rule) >= 2 {
				if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
					return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
				}
			}
		}
	}
	return nil
}

// Allowed reports whether role may perform action on object. The empty role
// is never allowed anything.
func (e *Enforcer) Allowed(role, object, action string) bool {
	if role == RoleNone {
		recordDecision(role, object, action, false)
		return false
	}
	start := time.Now()
	allowed, err := e.enforcer.Enforce(role, object, action)
	observeLatency(time.Since(start))
	if err != nil {
		allowed = false
	}
	recordDecision(role, object, action, allowed)
	return allowed
}

// CanGroup reports whether userID may perform action on group.
func (e *Enforcer) CanGroup(group *models.Group, userID, action string) bool {
	return e.Allowed(GroupRole(group, userID), ObjectGroup, action)
}

// CanMessage reports whether userID may perform action on msg.
func (e *Enforcer) CanMessage(msg *models.Message, userID, action string) bool {
	role := RoleNone
	if msg.SenderID == userID {
		role = RoleAuthor
	}
	return e.Allowed(role, ObjectMessage, action)
}

// GroupRole returns the effective role of userID in group: creator for the
// creator (who is always an admin member), the stored role for other members,
// and RoleNone for non-members.
func GroupRole(group *models.Group, userID string) string {
	member, ok := group.Member(userID)
	if !ok {
		return RoleNone
	}
	if group.CreatedBy == userID {
		return RoleCreator
	}
	return member.Role
}

// GetPolicy returns all policy rules.
func (e *Enforcer) GetPolicy() [][]string {
	//nolint:errcheck // GetPolicy only fails if enforcer is nil, which is a programming error
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/parley/internal/authz"
	"github.com/tomtom215/parley/internal/config"
	"github.com/tomtom215/parley/internal/logging"
	"github.com/tomtom215/parley/internal/models"
	"github.com/tomtom215/parley/internal/store"
)

const (
	maxGroupNameLength   = 100
	maxDescriptionLength = 200
)

// CreateGroupInput is the body of a group creation.
type CreateGroupInput struct {
	Name        string   `json:"name" validate:"required,notblank,max=100"`
	Description string   `json:"description" validate:"max=500"`
	MemberIDs   []string `json:"memberIds" validate:"omitempty,dive,required,max=128"`
}

// AddMembersInput is the body of an add-members request.
type AddMembersInput struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1,dive,required,max=128"`
}

// UpdateGroupInput is the body of a group update. Absent fields are left alone.
type UpdateGroupInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// GroupView is a group with the public profiles of its members, in
// membership order.
type GroupView struct {
	models.Group
	MemberProfiles []models.PublicUser `json:"memberProfiles"`
}

// GroupService manages groups and their membership. Role checks go through
// the authz enforcer.
type GroupService struct {
	store    *store.Store
	enforcer *authz.Enforcer
	limits   config.LimitsConfig
}

// NewGroupService creates a GroupService.
func NewGroupService(s *store.Store, enforcer *authz.Enforcer, limits config.LimitsConfig) *GroupService {
	return &GroupService{store: s, enforcer: enforcer, limits: limits}
}

// Create makes a group with creatorID as its admin. Duplicate ids and the
// creator's own id are ignored in MemberIDs.
func (g *GroupService) Create(ctx context.Context, creatorID string, in CreateGroupInput) (*GroupView, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	name := SanitizeName(in.Name, maxGroupNameLength)
	if name == "" {
		return nil, errValidation("Group name cannot be empty")
	}

	now := time.Now().UTC()
	members := []models.GroupMember{{UserID: creatorID, Role: models.RoleAdmin, JoinedAt: now}}
	seen := map[string]bool{creatorID: true}
	for _, id := range in.MemberIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, models.GroupMember{UserID: id, Role: models.RoleMember, JoinedAt: now})
	}
	if err := g.checkSize(len(members)); err != nil {
		return nil, err
	}
	if err := g.checkUsersExist(ctx, members[1:]); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:        name,
		Description: SanitizeName(in.Description, maxDescriptionLength),
		Members:     members,
		CreatedBy:   creatorID,
	}
	if err := g.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("group_id", group.ID).
		Str("creator_id", creatorID).
		Int("member_count", len(members)).
		Msg("Group created")
	return g.view(ctx, group)
}

// List returns the groups userID belongs to, most recently updated first.
func (g *GroupService) List(ctx context.Context, userID string) ([]GroupView, error) {
	groups, err := g.store.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	views := make([]GroupView, 0, len(groups))
	for i := range groups {
		v, err := g.view(ctx, &groups[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Details returns a group to one of its members.
func (g *GroupService) Details(ctx context.Context, userID, groupID string) (*GroupView, error) {
	group, err := g.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.enforcer.CanGroup(group, userID, authz.ActionRead) {
		return nil, errForbidden("You are not a member of this group")
	}
	return g.view(ctx, group)
}

// AddMembers adds users to a group as members. Existing members are skipped.
func (g *GroupService) AddMembers(ctx context.Context, userID, groupID string, in AddMembersInput) (*GroupView, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	added := 0
	group, err := g.store.UpdateGroup(ctx, groupID, func(group *models.Group) error {
		if err := g.require(group, userID, authz.ActionAddMembers); err != nil {
			return err
		}
		added = 0
		now := time.Now().UTC()
		var fresh []models.GroupMember
		for _, id := range in.MemberIDs {
			if _, ok := group.Member(id); ok {
				continue
			}
			m := models.GroupMember{UserID: id, Role: models.RoleMember, JoinedAt: now}
			group.Members = append(group.Members, m)
			fresh = append(fresh, m)
			added++
		}
		if err := g.checkSize(len(group.Members)); err != nil {
			return err
		}
		return g.checkUsersExist(ctx, fresh)
	})
	if err != nil {
		return nil, groupError(err)
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Int("added", added).Str("by_user_id", userID).Msg("Members added to group")
	return g.view(ctx, group)
}

// RemoveMember removes memberID from a group. The creator cannot be removed.
func (g *GroupService) RemoveMember(ctx context.Context, userID, groupID, memberID string) (*GroupView, error) {
	group, err := g.store.UpdateGroup(ctx, groupID, func(group *models.Group) error {
		if err := g.require(group, userID, authz.ActionRemoveMember); err != nil {
			return err
		}
		if memberID == group.CreatedBy {
			return errValidation("Cannot remove group creator")
		}
		if !removeMember(group, memberID) {
			return errNotFound("Member in group")
		}
		return nil
	})
	if err != nil {
		return nil, groupError(err)
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Str("member_id", memberID).Str("by_user_id", userID).Msg("Member removed from group")
	return g.view(ctx, group)
}

// Leave removes userID from a group. The creator has to delete the group instead.
func (g *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	_, err := g.store.UpdateGroup(ctx, groupID, func(group *models.Group) error {
		if group.CreatedBy == userID {
			return errValidation("Group creator cannot leave. Delete the group instead.")
		}
		if !g.enforcer.CanGroup(group, userID, authz.ActionLeave) {
			return errForbidden("You are not a member of this group")
		}
		removeMember(group, userID)
		return nil
	})
	if err != nil {
		return groupError(err)
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Str("user_id", userID).Msg("User left group")
	return nil
}

// Delete removes a group and soft-deletes its messages. Only the creator may
// delete a group.
func (g *GroupService) Delete(ctx context.Context, userID, groupID string) error {
	group, err := g.load(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.enforcer.CanGroup(group, userID, authz.ActionDelete) {
		return errForbidden("Only group creator can delete the group")
	}

	count, err := g.store.SoftDeleteGroupMessages(ctx, groupID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete group messages: %w", err)
	}
	if err := g.store.DeleteGroup(ctx, groupID); err != nil {
		return notFoundOr(err, "Group", "delete group")
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Str("user_id", userID).Int("messages", count).Msg("Group deleted")
	return nil
}

// Update renames a group and/or changes its description.
func (g *GroupService) Update(ctx context.Context, userID, groupID string, in UpdateGroupInput) (*GroupView, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	if in.Name == nil && in.Description == nil {
		return nil, errValidation("No fields to update")
	}
	var name string
	if in.Name != nil {
		name = SanitizeName(*in.Name, maxGroupNameLength)
		if name == "" {
			return nil, errValidation("Group name cannot be empty")
		}
	}

	group, err := g.store.UpdateGroup(ctx, groupID, func(group *models.Group) error {
		if err := g.require(group, userID, authz.ActionUpdate); err != nil {
			return err
		}
		if in.Name != nil {
			group.Name = name
		}
		if in.Description != nil {
			group.Description = SanitizeName(*in.Description, maxDescriptionLength)
		}
		return nil
	})
	if err != nil {
		return nil, groupError(err)
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Str("by_user_id", userID).Msg("Group updated")
	return g.view(ctx, group)
}

// Promote makes memberID an admin of the group.
func (g *GroupService) Promote(ctx context.Context, userID, groupID, memberID string) (*GroupView, error) {
	group, err := g.store.UpdateGroup(ctx, groupID, func(group *models.Group) error {
		if err := g.require(group, userID, authz.ActionPromote); err != nil {
			return err
		}
		for i := range group.Members {
			if group.Members[i].UserID != memberID {
				continue
			}
			if group.Members[i].Role == models.RoleAdmin {
				return errValidation("User is already an admin")
			}
			group.Members[i].Role = models.RoleAdmin
			return nil
		}
		return errNotFound("Member in group")
	})
	if err != nil {
		return nil, groupError(err)
	}

	logging.Ctx(ctx).Info().Str("group_id", groupID).Str("member_id", memberID).Str("by_user_id", userID).Msg("Member promoted to admin")
	return g.view(ctx, group)
}

func (g *GroupService) load(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := g.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, notFoundOr(err, "Group", "get group")
	}
	return group, nil
}

// require checks an admin action.
func (g *GroupService) require(group *models.Group, userID, action string) error {
	if !g.enforcer.CanGroup(group, userID, action) {
		return errForbidden("Only admins can perform this action")
	}
	return nil
}

func (g *GroupService) checkSize(n int) error {
	if limit := g.limits.MaxGroupMembers; limit > 0 && n > limit {
		return errValidation("Group cannot have more than %d members", limit)
	}
	return nil
}

func (g *GroupService) checkUsersExist(ctx context.Context, members []models.GroupMember) error {
	if len(members) == 0 {
		return nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	users, err := g.store.GetUsers(ctx, ids)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return errValidation("Unknown member id %s", id)
		}
	}
	return nil
}

func (g *GroupService) view(ctx context.Context, group *models.Group) (*GroupView, error) {
	users, err := g.store.GetUsers(ctx, group.MemberIDs())
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	v := &GroupView{Group: *group, MemberProfiles: make([]models.PublicUser, 0, len(group.Members))}
	for _, m := range group.Members {
		if u, ok := users[m.UserID]; ok {
			v.MemberProfiles = append(v.MemberProfiles, u.Public())
		}
	}
	return v, nil
}

func removeMember(group *models.Group, userID string) bool {
	for i, m := range group.Members {
		if m.UserID == userID {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
			return true
		}
	}
	return false
}

func groupError(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return notFoundOr(err, "Group", "update group")
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package authz decides what a user may do to a group or a message using Casbin.

The subjects of the policy are roles, not users. A user's role is derived from
the group document at request time (GroupRole), so membership changes take
effect without touching the policy:

	creator  inherits admin   delete the group
	admin    inherits member  add/remove members, rename, promote
	member                    read history, send, leave
	author                    edit or delete own message

The model and policy are embedded (model.conf, policy.csv) and can be replaced
with files through EnforcerConfig.

Rules that are not about roles stay with the caller: the creator cannot leave
or be removed, and edits are limited to a time window.
*/
package authz

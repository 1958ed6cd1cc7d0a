// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package api provides the REST API on a chi router.

Routes:

	GET    /api/health                       health summary (store, presence mode, connections)
	GET    /api/health/live                  liveness
	GET    /api/health/ready                 readiness (503 when the store is down)

	POST   /api/auth/signup                  create account, set session cookie
	POST   /api/auth/login                   check credentials, set session cookie
	POST   /api/auth/logout                  clear session cookie
	PUT    /api/auth/profile                 update name / profile picture
	GET    /api/auth/check                   current user

	GET    /api/messages/users               sidebar
	GET    /api/messages/{id}                direct history with user {id}
	POST   /api/messages/send/{id}           send to user {id}
	POST   /api/messages/group/{id}          send to group {id}
	GET    /api/messages/group/{id}/messages group history
	PUT    /api/messages/{id}                edit
	DELETE /api/messages/{id}                soft delete
	POST   /api/messages/{id}/reaction       add reaction
	DELETE /api/messages/{id}/reaction       remove reaction
	POST   /api/messages/{id}/read           mark messages from user {id} as read

	POST   /api/groups                       create
	GET    /api/groups                       list mine
	GET    /api/groups/{id}                  details
	PUT    /api/groups/{id}                  rename / describe
	DELETE /api/groups/{id}                  delete
	POST   /api/groups/{id}/leave            leave
	POST   /api/groups/{id}/members          add members
	DELETE /api/groups/{id}/members/{m}      remove member
	POST   /api/groups/{id}/members/{m}/promote

	GET    /metrics                          Prometheus
	GET    /ws                               realtime gateway

Every JSON response uses the models.APIResponse envelope. Service errors
map to status codes by kind: validation 400, unauthorized 401, forbidden
403, not found 404, conflict 409; anything else is a logged 500.

Rate limits are per client IP via go-chi/httprate: a strict limit on
signup and login, a general limit on authenticated routes, and a tighter
per-minute limit on message sends.
*/
package api

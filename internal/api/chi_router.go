// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/parley/internal/auth"
	"github.com/tomtom215/parley/internal/middleware"
)

// slowRequestThreshold promotes access log lines to warn level.
const slowRequestThreshold = time.Second

// Router wires handlers, authentication and middleware into a chi router.
type Router struct {
	handler       *Handler
	sessions      *auth.Middleware
	chiMiddleware *ChiMiddleware
	gateway       http.Handler
}

// NewRouter creates a Router. gateway serves /ws and may be nil.
func NewRouter(handler *Handler, sessions *auth.Middleware, gateway http.Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		sessions:      sessions,
		chiMiddleware: NewChiMiddleware(mwConfig),
		gateway:       gateway,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route including /ws.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// The upgrade needs the raw http.Hijacker and the connection outlives any
	// request deadline, so /ws stays outside the middleware below.
	if router.gateway != nil {
		r.Get("/ws", router.gateway.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())

	// Each limiter is one budget shared by every route it guards.
	apiLimit := router.chiMiddleware.RateLimitAPI()
	authLimit := router.chiMiddleware.RateLimitAuth()
	sendLimit := router.chiMiddleware.RateLimitMessages()

	r.Group(func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.AccessLog(slowRequestThreshold))
		r.Use(router.chiMiddleware.RequestTimeout())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(APISecurityHeaders())

		r.Route("/api/health", func(r chi.Router) {
			r.Get("/", router.handler.Health)
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		r.Route("/api/auth", func(r chi.Router) {
			r.With(authLimit).Post("/signup", router.handler.Signup)
			r.With(authLimit).Post("/login", router.handler.Login)
			r.Post("/logout", router.handler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(apiLimit)
				r.Use(router.sessions.Authenticate)
				r.Put("/profile", router.handler.UpdateProfile)
				r.Put("/updateProfile", router.handler.UpdateProfile)
				r.Get("/check", router.handler.CheckAuth)
			})
		})

		r.Route("/api/messages", func(r chi.Router) {
			r.Use(apiLimit)
			r.Use(router.sessions.Authenticate)

			r.Get("/users", router.handler.Sidebar)
			r.With(sendLimit).Post("/send/{id}", router.handler.SendDirect)
			r.With(sendLimit).Post("/group/{id}", router.handler.SendGroup)
			r.Get("/group/{id}/messages", router.handler.GroupHistory)
			r.Post("/{id}/reaction", router.handler.AddReaction)
			r.Delete("/{id}/reaction", router.handler.RemoveReaction)
			r.Post("/{id}/read", router.handler.MarkRead)
			r.Get("/{id}", router.handler.DirectHistory)
			r.Put("/{id}", router.handler.EditMessage)
			r.Delete("/{id}", router.handler.DeleteMessage)
		})

		r.Route("/api/groups", func(r chi.Router) {
			r.Use(apiLimit)
			r.Use(router.sessions.Authenticate)

			r.Post("/", router.handler.CreateGroup)
			r.Get("/", router.handler.ListGroups)
			r.Get("/{id}", router.handler.GroupDetails)
			r.Put("/{id}", router.handler.UpdateGroup)
			r.Delete("/{id}", router.handler.DeleteGroup)
			r.Post("/{id}/leave", router.handler.LeaveGroup)
			r.Post("/{id}/members", router.handler.AddMembers)
			r.Delete("/{id}/members/{memberId}", router.handler.RemoveMember)
			r.Post("/{id}/members/{memberId}/promote", router.handler.PromoteMember)
		})
	})

	return r
}

// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package auth provides token issuance, password hashing and the HTTP
authentication middleware.

Key Components:

  - JWTManager: HS256 tokens whose subject is the user id (default lifetime 7 days)
  - HashPassword / CheckPassword: bcrypt
  - Middleware: reads the session cookie (jwt_T) or a bearer token, loads the
    user and stores it in the request context
  - Middleware.ResolveIdentity: the same check for websocket upgrades

The session cookie is HttpOnly with SameSite=Strict and is marked Secure in
production.

Usage Example:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(jwtManager, store, auth.CookieConfig{
	    Name:   cfg.Security.CookieName,
	    Secure: cfg.IsProduction() || cfg.Security.CookieSecure,
	})
	r.With(mw.Authenticate).Get("/api/auth/check", handler.Check)
*/
package auth

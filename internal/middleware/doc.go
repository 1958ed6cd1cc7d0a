// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

/*
Package middleware provides HTTP middleware shared by the REST API.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern
  - AccessLog: one structured log line per request, warn for slow ones

All middleware has the chi signature func(http.Handler) http.Handler. The
websocket upgrade route is mounted outside PrometheusMetrics and AccessLog
because the wrapped writer does not implement http.Hijacker.
*/
package middleware

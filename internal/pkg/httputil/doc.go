// Package httputil provides shared HTTP response helpers for the JSON API.
//
// Handlers use these instead of writing raw http.ResponseWriter calls so
// every endpoint returns the same error envelope.
package httputil

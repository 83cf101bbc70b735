// Package common defines the sentinel errors shared by the repository,
// service and transport layers, and their mapping onto HTTP status codes.
// Callers should match them with errors.Is.
package common

import (
	"errors"
	"net/http"
)

var (
	// Credential errors.
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrMalformed        = errors.New("malformed")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("token expired")
	ErrWrongCredential  = errors.New("wrong credential")

	// Authorization and validation errors.
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation error")

	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// One-time codes and bounded loops.
	ErrGone      = errors.New("already consumed")
	ErrExhausted = errors.New("attempts exhausted")

	// Upstream (federated login, scraping target) errors.
	ErrUpstream      = errors.New("upstream error")
	ErrUpstreamParse = errors.New("unexpected upstream markup")
	ErrRateLimited   = errors.New("upstream rate limited")
	ErrRiskBlocked   = errors.New("upstream risk control")
)

var statusCodes = []struct {
	err    error
	status int
}{
	{ErrUnauthenticated, http.StatusUnauthorized},
	{ErrWrongCredential, http.StatusUnauthorized},
	{ErrExpired, http.StatusUnauthorized},
	{ErrMalformed, http.StatusBadRequest},
	{ErrValidation, http.StatusBadRequest},
	{ErrInvalidSignature, http.StatusForbidden},
	{ErrForbidden, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrUpstreamParse, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrGone, http.StatusGone},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrRiskBlocked, http.StatusUnavailableForLegalReasons},
	{ErrExhausted, http.StatusLoopDetected},
}

// StatusCode returns the HTTP status for err. Errors outside the taxonomy,
// ErrUpstream included, are reported as 500.
func StatusCode(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}

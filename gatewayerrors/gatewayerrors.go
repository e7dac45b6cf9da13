// Package gatewayerrors defines the sentinel errors shared across the
// gateway's verification, routing, and forwarding components. The problem
// package maps these onto wire responses.
package gatewayerrors

import "errors"

var ErrMissingToken = errors.New("missing bearer token")

var ErrTokenMalformed = errors.New("malformed token")

var ErrTokenExpired = errors.New("token expired")

var ErrInvalidSignature = errors.New("invalid token signature")

var ErrUnknownKeyID = errors.New("unknown signing key id")

var ErrIssuerMismatch = errors.New("issuer mismatch")

var ErrAudienceMismatch = errors.New("audience mismatch")

var ErrVerificationTimeout = errors.New("key set fetch timed out")

var ErrKeySetUnavailable = errors.New("key set unavailable")

var ErrMissingActor = errors.New("missing actor claim")

var ErrWeakSecret = errors.New("signing secret shorter than 32 bytes")

var ErrRouteNotFound = errors.New("no route for path")

var ErrServiceUnavailable = errors.New("target service unavailable")

var ErrRateLimited = errors.New("rate limit exceeded")

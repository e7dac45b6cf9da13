// Package problem normalizes every gateway failure into one RFC 7807
// problem-details shape. The mapping is total: any error, known or not,
// produces a valid response and unknown errors never leak internal text.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/calcmesh/edge-gateway/gatewayerrors"
)

// Details is the wire shape of every non-2xx response.
type Details struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Status       int    `json:"status"`
	Detail       string `json:"detail"`
	Instance     string `json:"instance,omitempty"`
	ResetSeconds int    `json:"resetSeconds,omitempty"`
}

type mapping struct {
	target error
	status int
	slug   string
	title  string
}

const typePrefix = "https://calcmesh.io/problems/"

// Mapping order matters only for wrapped chains carrying more than one
// sentinel, which the gateway never produces; kept ordered anyway so the
// behavior is fixed.
var mappings = []mapping{
	{gatewayerrors.ErrMissingToken, http.StatusUnauthorized, "missing-token", "Missing bearer token"},
	{gatewayerrors.ErrTokenMalformed, http.StatusUnauthorized, "malformed-token", "Malformed token"},
	{gatewayerrors.ErrTokenExpired, http.StatusUnauthorized, "token-expired", "Token expired"},
	{gatewayerrors.ErrInvalidSignature, http.StatusUnauthorized, "invalid-signature", "Invalid token signature"},
	{gatewayerrors.ErrUnknownKeyID, http.StatusUnauthorized, "unknown-key", "Unknown signing key"},
	{gatewayerrors.ErrMissingActor, http.StatusUnauthorized, "missing-actor", "Missing actor claim"},
	{gatewayerrors.ErrIssuerMismatch, http.StatusForbidden, "issuer-mismatch", "Issuer mismatch"},
	{gatewayerrors.ErrAudienceMismatch, http.StatusForbidden, "audience-mismatch", "Audience mismatch"},
	{gatewayerrors.ErrRouteNotFound, http.StatusNotFound, "route-not-found", "Route not found"},
	{gatewayerrors.ErrRateLimited, http.StatusTooManyRequests, "rate-limited", "Rate limit exceeded"},
	{gatewayerrors.ErrVerificationTimeout, http.StatusInternalServerError, "keyset-timeout", "Key set fetch timed out"},
	{gatewayerrors.ErrKeySetUnavailable, http.StatusInternalServerError, "keyset-unavailable", "Key set unavailable"},
	{gatewayerrors.ErrWeakSecret, http.StatusInternalServerError, "weak-secret", "Gateway misconfigured"},
	{gatewayerrors.ErrServiceUnavailable, http.StatusInternalServerError, "service-unavailable", "Service unavailable"},
}

// Map converts err into Details. Sentinel errors map to their fixed status
// and title; anything unrecognized becomes a generic 500.
func Map(err error, instance string) Details {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return Details{
				Type:     typePrefix + m.slug,
				Title:    m.title,
				Status:   m.status,
				Detail:   m.target.Error(),
				Instance: instance,
			}
		}
	}

	return Details{
		Type:     typePrefix + "internal",
		Title:    "Internal error",
		Status:   http.StatusInternalServerError,
		Detail:   "an unexpected error occurred",
		Instance: instance,
	}
}

// RateLimited builds the 429 response carrying the seconds remaining until
// the caller's window resets.
func RateLimited(resetSeconds int, instance string) Details {
	details := Map(gatewayerrors.ErrRateLimited, instance)
	details.Detail = fmt.Sprintf("rate limit exceeded, retry in %d seconds", resetSeconds)
	details.ResetSeconds = resetSeconds

	return details
}

// Write serializes details as application/problem+json.
func Write(w http.ResponseWriter, details Details) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(details.Status)

	if err := json.NewEncoder(w).Encode(details); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

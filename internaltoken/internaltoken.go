// Package internaltoken mints and verifies the gateway's short-lived HS256
// trust tokens. Downstream services verify these tokens locally against a
// shared secret instead of calling back to the identity provider. Both
// operations are pure functions of their inputs plus the clock and the
// random source; they perform no I/O.
package internaltoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/calcmesh/edge-gateway/externaltoken"
	"github.com/calcmesh/edge-gateway/gatewayerrors"
)

const (
	tokenIssuer  = "gateway"
	tokenSubject = "gateway"

	// DefaultTTL bounds how long a minted token stays valid. One token
	// covers exactly one hop to one service, so the window is short.
	DefaultTTL = 90 * time.Second

	// MinSecretLength is the minimum accepted secret size in bytes.
	// Shorter secrets are a configuration defect, never padded.
	MinSecretLength = 32
)

// ActorClaim records which external identity the gateway is acting on
// behalf of, embedded in the internal token under "act".
type ActorClaim struct {
	Issuer         string   `json:"iss"`
	Subject        string   `json:"sub"`
	Role           string   `json:"role,omitempty"`
	Permissions    []string `json:"permissions"`
	OrgID          string   `json:"org_id,omitempty"`
	InternalUserID string   `json:"internal_user_id,omitempty"`
}

// Claims is the internal token payload. Audience is always the single
// target service the token was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Actor *ActorClaim `json:"act,omitempty"`
}

// DeriveActor builds the actor claim from verified external claims. The
// permission precedence is a contract downstream authorization depends on:
// namespaced permissions, then the generic permissions array, then the
// space-split scope string, then an empty list.
func DeriveActor(ext *externaltoken.Claims) *ActorClaim {
	permissions := ext.NamespacedPermissions()
	if permissions == nil {
		permissions = ext.Permissions
	}

	if permissions == nil {
		permissions = ext.ScopePermissions()
	}

	if permissions == nil {
		permissions = []string{}
	}

	return &ActorClaim{
		Issuer:         ext.Issuer,
		Subject:        ext.Subject,
		Role:           ext.Namespaced("role").String(),
		Permissions:    permissions,
		OrgID:          ext.Namespaced("org_id").String(),
		InternalUserID: ext.Namespaced("user_id").String(),
	}
}

// Mint signs an internal token for one hop to targetService. exp-iat always
// equals ttl; the jti is a fresh random id used for tracing.
func Mint(ext *externaltoken.Claims, targetService, secret string, ttl time.Duration) (string, error) {
	if len(secret) < MinSecretLength {
		return "", gatewayerrors.ErrWeakSecret
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   tokenSubject,
			Audience:  jwt.ClaimStrings{targetService},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Actor: DeriveActor(ext),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing internal token: %w", err)
	}

	return signed, nil
}

// Verify checks rawToken against currentSecret, falling back to
// previousSecret (when non-empty) only after a signature mismatch. Either
// success is valid; that is what lets a secret rotate with zero downtime.
// expectedAudience must equal the payload audience exactly — internal
// tokens are single-audience and never valid for another service.
func Verify(rawToken, currentSecret, expectedAudience, previousSecret string) (*Claims, error) {
	if len(currentSecret) < MinSecretLength {
		return nil, gatewayerrors.ErrWeakSecret
	}

	if previousSecret != "" && len(previousSecret) < MinSecretLength {
		return nil, gatewayerrors.ErrWeakSecret
	}

	claims, err := parseWithSecret(rawToken, currentSecret)
	if errors.Is(err, gatewayerrors.ErrInvalidSignature) && previousSecret != "" {
		claims, err = parseWithSecret(rawToken, previousSecret)
	}

	if err != nil {
		return nil, err
	}

	if len(claims.Audience) != 1 || claims.Audience[0] != expectedAudience {
		return nil, fmt.Errorf("token not minted for %q: %w", expectedAudience, gatewayerrors.ErrAudienceMismatch)
	}

	if claims.Actor == nil || claims.Actor.Subject == "" {
		return nil, gatewayerrors.ErrMissingActor
	}

	return claims, nil
}

func parseWithSecret(rawToken, secret string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, gatewayerrors.ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, gatewayerrors.ErrTokenExpired
		default:
			return nil, fmt.Errorf("%v: %w", err, gatewayerrors.ErrTokenMalformed)
		}
	}

	return claims, nil
}

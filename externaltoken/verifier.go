// Package externaltoken verifies identity tokens issued by the external
// identity provider: RS256 signature against the provider's published JWKS,
// plus issuer, audience, and expiry checks.
package externaltoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/gatewayerrors"
)

const externalSigningAlg = "RS256"

// Verifier validates external bearer tokens. Claim checks run before any
// network call so malformed or expired tokens never trigger a key fetch.
type Verifier struct {
	issuerURL string
	audience  string
	namespace string
	keys      *KeySetProvider
	logger    *zap.Logger
}

// NewVerifier builds a Verifier for one issuer/audience pair. issuerURL must
// carry a trailing slash (it is compared byte-for-byte against the iss
// claim). namespace prefixes the provider's custom claims.
func NewVerifier(issuerURL, audience, namespace string, httpClient *http.Client, logger *zap.Logger) *Verifier {
	return &Verifier{
		issuerURL: issuerURL,
		audience:  audience,
		namespace: namespace,
		keys:      NewKeySetProvider(issuerURL, httpClient),
		logger:    logger,
	}
}

// Verify checks rawToken and returns its claims. Every failure is one of the
// gatewayerrors sentinels; claims are never returned alongside an error.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	segments := strings.Split(rawToken, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("expected 3 segments, got %d: %w", len(segments), gatewayerrors.ErrTokenMalformed)
	}

	header, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return nil, fmt.Errorf("decoding header: %w", gatewayerrors.ErrTokenMalformed)
	}

	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", gatewayerrors.ErrTokenMalformed)
	}

	if alg := gjson.GetBytes(header, "alg").String(); alg != externalSigningAlg {
		return nil, fmt.Errorf("unexpected alg %q: %w", alg, gatewayerrors.ErrTokenMalformed)
	}

	if err := v.checkClaims(payload); err != nil {
		return nil, err
	}

	keyID := gjson.GetBytes(header, "kid").String()

	key, err := v.keys.Key(ctx, keyID)
	if err != nil {
		v.logger.Warn("Key lookup failed.", zap.String("kid", keyID), zap.Error(err))

		return nil, err
	}

	var publicKey rsa.PublicKey
	if err := key.Raw(&publicKey); err != nil {
		return nil, fmt.Errorf("materializing key %q: %w", keyID, gatewayerrors.ErrKeySetUnavailable)
	}

	claims := &Claims{}

	_, err = jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return &publicKey, nil
	}, jwt.WithValidMethods([]string{externalSigningAlg}))
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

	claims.raw = payload
	claims.namespace = v.namespace

	return claims, nil
}

// checkClaims runs the cheap claim validation that must precede the key
// fetch: issuer equality, audience membership, expiry.
func (v *Verifier) checkClaims(payload []byte) error {
	if issuer := gjson.GetBytes(payload, "iss").String(); issuer != v.issuerURL {
		return fmt.Errorf("issuer %q: %w", issuer, gatewayerrors.ErrIssuerMismatch)
	}

	if !audienceContains(gjson.GetBytes(payload, "aud"), v.audience) {
		return fmt.Errorf("audience %q not granted: %w", v.audience, gatewayerrors.ErrAudienceMismatch)
	}

	expiry := gjson.GetBytes(payload, "exp").Int()
	if expiry <= time.Now().Unix() {
		return gatewayerrors.ErrTokenExpired
	}

	return nil
}

// The aud claim may be a single string or an array of strings.
func audienceContains(aud gjson.Result, want string) bool {
	if aud.IsArray() {
		for _, entry := range aud.Array() {
			if entry.String() == want {
				return true
			}
		}

		return false
	}

	return aud.String() == want
}

package internaltoken

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/calcmesh/edge-gateway/externaltoken"
	"github.com/calcmesh/edge-gateway/gatewayerrors"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testOldSecret  = "fedcba9876543210fedcba9876543210"
	testNamespace  = "https://api.calcmesh.io/"
	shortSecret    = "too-short"
	targetDaycount = "svc-daycount"
)

func externalClaims(t *testing.T, payload string) *externaltoken.Claims {
	t.Helper()

	claims, err := externaltoken.NewClaims([]byte(payload), testNamespace)
	if err != nil {
		t.Fatalf("NewClaims failed: %v", err)
	}

	return claims
}

func TestMintVerifyRoundTrip(t *testing.T) {
	ext := externalClaims(t, `{
		"iss": "https://idp.example/",
		"sub": "user-42",
		"permissions": ["daycount:write"],
		"https://api.calcmesh.io/role": "trader",
		"https://api.calcmesh.io/org_id": "org-7",
		"https://api.calcmesh.io/user_id": "internal-99"
	}`)

	token, err := Mint(ext, targetDaycount, testSecret, 90*time.Second)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := Verify(token, testSecret, targetDaycount, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if claims.Issuer != "gateway" || claims.Subject != "gateway" {
		t.Errorf("iss/sub = %q/%q, want gateway/gateway", claims.Issuer, claims.Subject)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}

	ttl := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if ttl != 90*time.Second {
		t.Errorf("exp - iat = %v, want 90s", ttl)
	}

	want := &ActorClaim{
		Issuer:         "https://idp.example/",
		Subject:        "user-42",
		Role:           "trader",
		Permissions:    []string{"daycount:write"},
		OrgID:          "org-7",
		InternalUserID: "internal-99",
	}
	if !reflect.DeepEqual(claims.Actor, want) {
		t.Errorf("actor = %+v, want %+v", claims.Actor, want)
	}
}

func TestVerifySecretRotation(t *testing.T) {
	ext := externalClaims(t, `{"iss": "https://idp.example/", "sub": "user-42", "scope": "daycount:read"}`)

	token, err := Mint(ext, targetDaycount, testOldSecret, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	// During the rotation window the old-secret token still verifies.
	if _, err := Verify(token, testSecret, targetDaycount, testOldSecret); err != nil {
		t.Errorf("Verify with (new, old) pair failed: %v", err)
	}

	// Once the previous secret is dropped, the token stops verifying.
	if _, err := Verify(token, testSecret, targetDaycount, ""); !errors.Is(err, gatewayerrors.ErrInvalidSignature) {
		t.Errorf("Verify with new secret alone = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyAudienceMismatch(t *testing.T) {
	ext := externalClaims(t, `{"iss": "https://idp.example/", "sub": "user-42"}`)

	token, err := Mint(ext, targetDaycount, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	// Signature is correct; the audience check must still reject.
	if _, err := Verify(token, testSecret, "svc-bondpricing", ""); !errors.Is(err, gatewayerrors.ErrAudienceMismatch) {
		t.Errorf("Verify = %v, want ErrAudienceMismatch", err)
	}
}

func TestWeakSecret(t *testing.T) {
	ext := externalClaims(t, `{"iss": "https://idp.example/", "sub": "user-42"}`)

	if _, err := Mint(ext, targetDaycount, shortSecret, time.Minute); !errors.Is(err, gatewayerrors.ErrWeakSecret) {
		t.Errorf("Mint with short secret = %v, want ErrWeakSecret", err)
	}

	token, err := Mint(ext, targetDaycount, testSecret, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := Verify(token, shortSecret, targetDaycount, ""); !errors.Is(err, gatewayerrors.ErrWeakSecret) {
		t.Errorf("Verify with short current secret = %v, want ErrWeakSecret", err)
	}

	if _, err := Verify(token, testSecret, targetDaycount, shortSecret); !errors.Is(err, gatewayerrors.ErrWeakSecret) {
		t.Errorf("Verify with short previous secret = %v, want ErrWeakSecret", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	ext := externalClaims(t, `{"iss": "https://idp.example/", "sub": "user-42"}`)

	token, err := Mint(ext, targetDaycount, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := Verify(token, testSecret, targetDaycount, ""); !errors.Is(err, gatewayerrors.ErrTokenExpired) {
		t.Errorf("Verify = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyMissingActor(t *testing.T) {
	// A token without an actor claim is structurally a valid JWT but must
	// be rejected.
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "gateway",
		Subject:   "gateway",
		Audience:  jwt.ClaimStrings{targetDaycount},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})

	token, err := bare.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}

	if _, err := Verify(token, testSecret, targetDaycount, ""); !errors.Is(err, gatewayerrors.ErrMissingActor) {
		t.Errorf("Verify = %v, want ErrMissingActor", err)
	}
}

func TestDeriveActorPermissionPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{
			name: "namespaced permissions win over everything",
			payload: `{
				"sub": "u",
				"https://api.calcmesh.io/permissions": ["ns:perm"],
				"permissions": ["generic:perm"],
				"scope": "scoped:perm"
			}`,
			want: []string{"ns:perm"},
		},
		{
			name:    "generic permissions beat scope",
			payload: `{"sub": "u", "permissions": ["generic:perm"], "scope": "scoped:perm other:perm"}`,
			want:    []string{"generic:perm"},
		},
		{
			name:    "scope string is space-split",
			payload: `{"sub": "u", "scope": "daycount:read daycount:write"}`,
			want:    []string{"daycount:read", "daycount:write"},
		},
		{
			name:    "no permission source yields empty list",
			payload: `{"sub": "u"}`,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := externalClaims(t, tt.payload)

			actor := DeriveActor(ext)
			if !reflect.DeepEqual(actor.Permissions, tt.want) {
				t.Errorf("permissions = %v, want %v", actor.Permissions, tt.want)
			}

			// Derivation must be idempotent.
			again := DeriveActor(ext)
			if !reflect.DeepEqual(actor, again) {
				t.Errorf("second derivation differs: %+v vs %+v", actor, again)
			}
		})
	}
}

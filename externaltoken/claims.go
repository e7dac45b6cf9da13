package externaltoken

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// Claims is the decoded payload of an external identity token. It is never
// trusted until Verifier.Verify has checked the signature and every
// registered claim. The identity provider may attach role, organization, and
// permission information under namespaced custom claims; those are looked up
// lazily from the raw payload so the shape stays provider-agnostic.
type Claims struct {
	jwt.RegisteredClaims
	Scope       string   `json:"scope,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	raw       []byte
	namespace string
}

// NewClaims decodes payload JSON into Claims and binds the custom-claim
// namespace used for provider-specific fields.
func NewClaims(payload []byte, namespace string) (*Claims, error) {
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("decoding token payload: %w", err)
	}

	claims.raw = payload
	claims.namespace = namespace

	return claims, nil
}

// Namespaced returns the value of a provider-specific custom claim, e.g.
// Namespaced("role") reads "{namespace}role" from the payload.
func (c *Claims) Namespaced(field string) gjson.Result {
	return gjson.GetBytes(c.raw, escapeGJSONPath(c.namespace+field))
}

// NamespacedPermissions returns the permissions list carried under the
// configured claim namespace, or nil when absent.
func (c *Claims) NamespacedPermissions() []string {
	result := c.Namespaced("permissions")
	if !result.IsArray() {
		return nil
	}

	perms := make([]string, 0, len(result.Array()))
	for _, entry := range result.Array() {
		perms = append(perms, entry.String())
	}

	return perms
}

// ScopePermissions splits the space-delimited OAuth scope string into a
// permissions list, or nil when the scope is empty.
func (c *Claims) ScopePermissions() []string {
	if strings.TrimSpace(c.Scope) == "" {
		return nil
	}

	return strings.Fields(c.Scope)
}

// Custom claim keys contain dots (they are URLs); escape them so gjson does
// not treat the key as a nested path.
func escapeGJSONPath(key string) string {
	return strings.ReplaceAll(key, ".", `\.`)
}

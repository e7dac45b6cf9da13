// Package config loads the gateway configuration from the environment.
// Configuration defects fail the process at startup: a missing variable or
// an undersized signing secret panics rather than degrading silently.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretLength = 32

type Config struct {
	Port int

	// IssuerURL is the external identity provider's issuer, normalized to
	// a trailing slash. The JWKS endpoint is derived from it.
	IssuerURL string
	// Audience is the audience the external token must be granted.
	Audience string
	// ClaimNamespace prefixes the provider's custom claims (role, org_id,
	// user_id, permissions). Optional.
	ClaimNamespace string

	InternalSigningSecret string
	// PreviousSigningSecret stays valid for one rotation cycle so tokens
	// minted before a rotation keep verifying. Empty outside rotations.
	PreviousSigningSecret string
	InternalTokenTTL      time.Duration

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	// TargetURLs maps target service identities to their base URLs.
	TargetURLs map[string]string

	AllowedOrigins []string
}

func GetAppConfig() *Config {
	cfg := &Config{
		Port:                  getEnvAsIntOr("PORT", 8080),
		IssuerURL:             normalizeIssuerURL(getEnv("ISSUER_URL")),
		Audience:              getEnv("AUDIENCE"),
		ClaimNamespace:        getOptionalEnv("CLAIM_NAMESPACE"),
		InternalSigningSecret: getEnv("INTERNAL_SIGNING_SECRET"),
		PreviousSigningSecret: getOptionalEnv("PREVIOUS_SIGNING_SECRET"),
		InternalTokenTTL:      time.Duration(getEnvAsIntOr("INTERNAL_TOKEN_TTL_SECONDS", 90)) * time.Second,
		RateLimitWindow:       time.Duration(getEnvAsIntOr("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		RateLimitMaxRequests:  getEnvAsIntOr("RATE_LIMIT_MAX_REQUESTS", 100),
		TargetURLs: map[string]string{
			"svc-daycount":    getEnv("DAYCOUNT_URL"),
			"svc-bondpricing": getEnv("BONDPRICING_URL"),
			"svc-riskmetrics": getEnv("RISKMETRICS_URL"),
		},
		AllowedOrigins: splitList(getOptionalEnv("ALLOWED_ORIGINS")),
	}

	if len(cfg.InternalSigningSecret) < minSecretLength {
		panic(fmt.Sprintf("INTERNAL_SIGNING_SECRET must be at least %d bytes", minSecretLength))
	}

	if cfg.PreviousSigningSecret != "" && len(cfg.PreviousSigningSecret) < minSecretLength {
		panic(fmt.Sprintf("PREVIOUS_SIGNING_SECRET must be at least %d bytes", minSecretLength))
	}

	return cfg
}

func normalizeIssuerURL(issuer string) string {
	if !strings.HasSuffix(issuer, "/") {
		return issuer + "/"
	}

	return issuer
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}

func getEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		panic(fmt.Sprintf("%s environment variable not set", key))
	}

	return value
}

func getOptionalEnv(key string) string {
	return os.Getenv(key)
}

func getEnvAsIntOr(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(fmt.Sprintf("Error converting %s to integer: %v", key, err))
	}

	return valueInt
}

package externaltoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwk"

	"github.com/calcmesh/edge-gateway/gatewayerrors"
)

const (
	jwksEndpoint = ".well-known/jwks.json"

	defaultFetchTimeout = 5 * time.Second
	defaultKeySetTTL    = 5 * time.Minute
)

// KeySetProvider caches the identity provider's published JWKS and resolves
// verification keys by key id. A key id missing from a fresh set is a hard
// verification failure, not a retry.
type KeySetProvider struct {
	jwksURL      string
	httpClient   *http.Client
	fetchTimeout time.Duration
	ttl          time.Duration

	mu        sync.RWMutex
	keySet    jwk.Set
	fetchedAt time.Time
}

// NewKeySetProvider derives the JWKS endpoint from the issuer URL. The
// issuer URL must end with a trailing slash.
func NewKeySetProvider(issuerURL string, httpClient *http.Client) *KeySetProvider {
	return &KeySetProvider{
		jwksURL:      issuerURL + jwksEndpoint,
		httpClient:   httpClient,
		fetchTimeout: defaultFetchTimeout,
		ttl:          defaultKeySetTTL,
	}
}

// Key returns the verification key for keyID, fetching the key set when the
// cache is stale or the key id is unknown.
func (p *KeySetProvider) Key(ctx context.Context, keyID string) (jwk.Key, error) {
	p.mu.RLock()
	if p.keySet != nil && time.Since(p.fetchedAt) < p.ttl {
		if key, found := p.keySet.LookupKeyID(keyID); found {
			p.mu.RUnlock()
			return key, nil
		}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.keySet != nil && time.Since(p.fetchedAt) < p.ttl {
		if key, found := p.keySet.LookupKeyID(keyID); found {
			return key, nil
		}
	}

	if err := p.fetchAndUpdateKeys(ctx); err != nil {
		return nil, err
	}

	if key, found := p.keySet.LookupKeyID(keyID); found {
		return key, nil
	}

	return nil, gatewayerrors.ErrUnknownKeyID
}

func (p *KeySetProvider) fetchAndUpdateKeys(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	set, err := jwk.Fetch(fetchCtx, p.jwksURL, jwk.WithHTTPClient(p.httpClient))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("fetching %s: %w", p.jwksURL, gatewayerrors.ErrVerificationTimeout)
		}

		return fmt.Errorf("fetching %s: %w", p.jwksURL, gatewayerrors.ErrKeySetUnavailable)
	}

	p.keySet = set
	p.fetchedAt = time.Now()

	return nil
}

// Package service orchestrates the gateway's per-request pipeline: verify
// the external token, resolve the route, mint the internal token.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/externaltoken"
	"github.com/calcmesh/edge-gateway/gatewayerrors"
	"github.com/calcmesh/edge-gateway/internaltoken"
	"github.com/calcmesh/edge-gateway/routes"
)

type Service struct {
	verifier *externaltoken.Verifier
	table    *routes.Table
	secret   string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(verifier *externaltoken.Verifier, table *routes.Table, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		verifier: verifier,
		table:    table,
		secret:   secret,
		ttl:      ttl,
		logger:   logger,
	}
}

// Authenticate verifies the external bearer token. A failed verification is
// never retried with the same token.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*externaltoken.Claims, error) {
	return s.verifier.Verify(ctx, rawToken)
}

// Resolve maps the request path onto a target service.
func (s *Service) Resolve(path string) (routes.Route, error) {
	route, found := s.table.Resolve(path)
	if !found {
		return routes.Route{}, gatewayerrors.ErrRouteNotFound
	}

	return route, nil
}

// MintInternal issues the one-hop trust token for the resolved target.
func (s *Service) MintInternal(ext *externaltoken.Claims, targetService string) (string, error) {
	return internaltoken.Mint(ext, targetService, s.secret, s.ttl)
}

// Package forwarder rewrites authenticated requests and relays them to the
// resolved target service through a per-target reverse proxy.
package forwarder

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/gatewayerrors"
	"github.com/calcmesh/edge-gateway/problem"
	"github.com/calcmesh/edge-gateway/routes"
)

const (
	headerForwardedBy  = "X-Forwarded-By"
	headerOriginalPath = "X-Original-Path"

	forwarderIdentity = "calcmesh-gateway"
)

// Forwarder holds one reverse proxy per configured target service.
type Forwarder struct {
	proxies map[string]*httputil.ReverseProxy
	logger  *zap.Logger
}

// New builds proxies from a target-identity → base-URL map. The gateway does
// not retry failed forwards; retry policy belongs to callers or downstream
// services.
func New(targets map[string]string, logger *zap.Logger) (*Forwarder, error) {
	proxies := make(map[string]*httputil.ReverseProxy, len(targets))

	for target, rawURL := range targets {
		targetURL, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q for target %q: %w", rawURL, target, err)
		}

		proxy := httputil.NewSingleHostReverseProxy(targetURL)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Forwarding failed.", zap.String("target", target), zap.Error(err))
			problem.Write(w, problem.Map(gatewayerrors.ErrServiceUnavailable, r.URL.Path))
		}

		proxies[target] = proxy
	}

	return &Forwarder{proxies: proxies, logger: logger}, nil
}

// Forward rewrites r and relays it to route's target: the matched prefix is
// stripped when the route asks for it, the authorization header is replaced
// with the minted internal token, and the gateway marker plus original-path
// headers are added. Method, remaining headers, and the body stream pass
// through untouched. An unconfigured target fails with ErrServiceUnavailable
// before anything is written to w.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, route routes.Route, internalToken string) error {
	proxy, ok := f.proxies[route.Target]
	if !ok {
		return fmt.Errorf("no transport for target %q: %w", route.Target, gatewayerrors.ErrServiceUnavailable)
	}

	originalPath := r.URL.RequestURI()

	r.URL.Path = route.StrippedPath(r.URL.Path)
	r.Header.Set("Authorization", "Bearer "+internalToken)
	r.Header.Set(headerForwardedBy, forwarderIdentity)
	r.Header.Set(headerOriginalPath, originalPath)

	proxy.ServeHTTP(w, r)

	return nil
}

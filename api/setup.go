// Package api assembles the gateway's router and HTTP server.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/api/handler"
	"github.com/calcmesh/edge-gateway/gatewayerrors"
	"github.com/calcmesh/edge-gateway/middleware"
	"github.com/calcmesh/edge-gateway/problem"
	"github.com/calcmesh/edge-gateway/ratelimit"
)

type API struct {
	Port           int
	Handlers       *handler.Handlers
	Limiter        ratelimit.Limiter
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Router builds the middleware chain and routes. /health and /metrics sit
// outside authentication and rate limiting; everything under /api/ is rate
// limited and then authenticated and forwarded by the proxy handler.
func (api *API) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.Metrics(),
		middleware.Logging(api.Logger),
		middleware.CORS(api.AllowedOrigins),
	)

	router.HandleFunc("/health", api.Handlers.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/").Subrouter()
	apiRouter.Use(middleware.RateLimit(api.Limiter, api.Logger))
	apiRouter.PathPrefix("/").HandlerFunc(api.Handlers.ProxyHandler)

	router.NotFoundHandler = notFoundHandler()

	return router
}

func (api *API) Run() error {
	srv := &http.Server{
		Handler:      api.Router(),
		Addr:         fmt.Sprintf("0.0.0.0:%d", api.Port),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	api.Logger.Info("Starting HTTP server...", zap.Int("port", api.Port))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		api.Logger.Error("Failed to start the http server", zap.Error(err))

		return fmt.Errorf("failed to start the http server: %w", err)
	}

	return nil
}

// Paths outside /api/, /health, and /metrics get the same problem shape as
// an unmatched route.
func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, problem.Map(gatewayerrors.ErrRouteNotFound, r.URL.Path))
	})
}

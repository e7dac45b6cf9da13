// Package handler holds the gateway's HTTP handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/api/service"
	"github.com/calcmesh/edge-gateway/forwarder"
	"github.com/calcmesh/edge-gateway/metrics"
	"github.com/calcmesh/edge-gateway/middleware"
	"github.com/calcmesh/edge-gateway/problem"
)

type Handlers struct {
	service   *service.Service
	forwarder *forwarder.Forwarder
	version   string
	logger    *zap.Logger
}

func NewHandlers(svc *service.Service, fwd *forwarder.Forwarder, version string, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:   svc,
		forwarder: fwd,
		version:   version,
		logger:    logger,
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// HealthHandler reports liveness. No authentication.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Service: "gateway",
		Version: h.version,
	}); err != nil {
		h.logger.Error("Failed to write health response.", zap.Error(err))
	}
}

// ProxyHandler runs the authenticated pipeline: external verify → route
// resolve → internal mint → forward. Steps are strictly sequential and any
// failure short-circuits into one problem response; nothing is forwarded
// after a failure.
func (h *Handlers) ProxyHandler(w http.ResponseWriter, r *http.Request) {
	rawToken, err := middleware.BearerToken(r)
	if err != nil {
		problem.Write(w, problem.Map(err, r.URL.Path))
		return
	}

	claims, err := h.service.Authenticate(r.Context(), rawToken)
	if err != nil {
		h.logger.Warn("External token rejected.",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		problem.Write(w, problem.Map(err, r.URL.Path))

		return
	}

	route, err := h.service.Resolve(r.URL.Path)
	if err != nil {
		problem.Write(w, problem.Map(err, r.URL.Path))
		return
	}

	internalToken, err := h.service.MintInternal(claims, route.Target)
	if err != nil {
		h.logger.Error("Failed to mint internal token.", zap.String("target", route.Target), zap.Error(err))
		problem.Write(w, problem.Map(err, r.URL.Path))

		return
	}

	if err := h.forwarder.Forward(w, r.WithContext(middleware.WithSubject(r.Context(), claims.Subject)), route, internalToken); err != nil {
		h.logger.Error("Forwarding refused.", zap.String("target", route.Target), zap.Error(err))
		problem.Write(w, problem.Map(err, r.URL.Path))

		return
	}

	metrics.ForwardedTotal.WithLabelValues(route.Target).Inc()
}

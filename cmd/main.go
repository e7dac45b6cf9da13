package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/api"
	"github.com/calcmesh/edge-gateway/api/handler"
	"github.com/calcmesh/edge-gateway/api/service"
	"github.com/calcmesh/edge-gateway/config"
	"github.com/calcmesh/edge-gateway/externaltoken"
	"github.com/calcmesh/edge-gateway/forwarder"
	"github.com/calcmesh/edge-gateway/ratelimit"
	"github.com/calcmesh/edge-gateway/routes"
)

const version = "1.2.0"

const limiterSweepInterval = time.Minute

// routeTable is fixed at build time; target URLs come from the environment.
var routeTable = []routes.Route{
	{Prefix: "/api/daycount", Target: "svc-daycount", StripPrefix: true},
	{Prefix: "/api/bonds", Target: "svc-bondpricing", StripPrefix: true},
	{Prefix: "/api/risk", Target: "svc-riskmetrics", StripPrefix: true},
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Cannot initialize Zap logger: %v.", err)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Error syncing logger: %v", err)
		}
	}()

	appConfig := config.GetAppConfig()

	httpClient := &http.Client{}

	verifier := externaltoken.NewVerifier(
		appConfig.IssuerURL,
		appConfig.Audience,
		appConfig.ClaimNamespace,
		httpClient,
		logger,
	)

	fwd, err := forwarder.New(appConfig.TargetURLs, logger)
	if err != nil {
		logger.Fatal("Error building forwarder:", zap.Error(err))
	}

	limiter := ratelimit.NewMemoryLimiter(appConfig.RateLimitWindow, appConfig.RateLimitMaxRequests)
	limiter.Start(context.Background(), limiterSweepInterval)

	appService := service.NewService(
		verifier,
		routes.NewTable(routeTable),
		appConfig.InternalSigningSecret,
		appConfig.InternalTokenTTL,
		logger,
	)

	app := &api.API{
		Port:           appConfig.Port,
		Handlers:       handler.NewHandlers(appService, fwd, version, logger),
		Limiter:        limiter,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	}

	log.Fatal(app.Run())
}

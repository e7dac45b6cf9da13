package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/calcmesh/edge-gateway/gatewayerrors"
	"github.com/calcmesh/edge-gateway/internaltoken"
	"github.com/calcmesh/edge-gateway/problem"
)

// InternalAuth verifies the gateway-minted internal token. Downstream
// services mount this in front of their handlers with audience set to their
// own service identity; they never contact the identity provider. The
// previous secret may be empty outside a rotation window.
func InternalAuth(currentSecret, previousSecret, audience string, logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := BearerToken(r)
			if err != nil {
				problem.Write(w, problem.Map(err, r.URL.Path))
				return
			}

			claims, err := internaltoken.Verify(rawToken, currentSecret, audience, previousSecret)
			if err != nil {
				logger.Warn("Internal token rejected.", zap.Error(err))
				problem.Write(w, problem.Map(err, r.URL.Path))

				return
			}

			ctx := WithSubject(r.Context(), claims.Actor.Subject)
			ctx = context.WithValue(ctx, actorKey, claims.Actor)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor claim set by InternalAuth, or nil.
func ActorFromContext(ctx context.Context) *internaltoken.ActorClaim {
	actor, _ := ctx.Value(actorKey).(*internaltoken.ActorClaim)
	return actor
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", gatewayerrors.ErrMissingToken
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", gatewayerrors.ErrMissingToken
	}

	return token, nil
}

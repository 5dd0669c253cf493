package middleware

import (
	"net/http"

	"github.com/angelmondragon/licensehub-wallet/api/responses"
	pkgAuth "github.com/angelmondragon/licensehub-wallet/pkg/auth"
	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

// Auth verifies the identity service's bearer token. The wallet owner is
// always taken from the token, never from the request body.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			caller := Identity{TenantID: claims.TenantID.String(), UserID: claims.UserID.String(), Role: string(claims.Role)}
			ctx = WithIdentity(ctx, caller.TenantID, caller.UserID, caller.Role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(logg.WithTenantID(ctx, caller.TenantID), caller.UserID), caller.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

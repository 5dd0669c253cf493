package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/licensehub-wallet/api/responses"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

// RequireRole admits callers holding any of roles. Unauthenticated requests
// get 401 rather than 403.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := IdentityFromContext(r.Context())
			switch {
			case !ok:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(allowed, caller.Role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"allowed_roles": allowed}))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

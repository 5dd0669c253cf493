package wallet

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/licensehub-wallet/api/middleware"
	"github.com/angelmondragon/licensehub-wallet/api/validators"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/pagination"
)

type caller struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// callerFromRequest resolves the authenticated tenant and user.
func callerFromRequest(r *http.Request) (caller, error) {
	tenantID, err := uuid.Parse(middleware.TenantIDFromContext(r.Context()))
	if err != nil {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing")
	}
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return caller{TenantID: tenantID, UserID: userID}, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param).
			WithDetails(map[string]any{"field": param})
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: validators.QueryString(r, "cursor", maxCursorLength),
	}, nil
}

func description(value string) string {
	return validators.SanitizeString(value, maxDescriptionLength)
}

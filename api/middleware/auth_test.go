package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensehub-wallet/pkg/auth"
	"github.com/angelmondragon/licensehub-wallet/pkg/config"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "ledger-secret", Issuer: "licensehub-identity", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, cfg config.JWTConfig, role enums.ActorRole, tenantID, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		JTI:      uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	foreign := testJWT
	foreign.Secret = "someone-else"
	otherIssuer := testJWT
	otherIssuer.Issuer = "storefront"

	cases := map[string]string{
		"missing header":    "",
		"not bearer":        "Basic dXNlcjpwYXNz",
		"garbage token":     "Bearer not-a-jwt",
		"foreign signature": "Bearer " + mintTestToken(t, foreign, enums.ActorRoleUser, uuid.New(), uuid.New()),
		"foreign issuer":    "Bearer " + mintTestToken(t, otherIssuer, enums.ActorRoleUser, uuid.New(), uuid.New()),
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	tenantID, userID := uuid.New(), uuid.New()
	token := mintTestToken(t, testJWT, enums.ActorRoleAdmin, tenantID, userID)

	var got Identity
	var seen bool
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, seen)
	assert.Equal(t, Identity{TenantID: tenantID.String(), UserID: userID.String(), Role: "admin"}, got)
}

func TestIdentityAccessorsOnBareContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := IdentityFromContext(req.Context())
	assert.False(t, ok)
	assert.Empty(t, UserIDFromContext(req.Context()))
	assert.Empty(t, TenantIDFromContext(req.Context()))
	assert.Empty(t, RoleFromContext(req.Context()))
	assert.Empty(t, RequestIDFromContext(req.Context()))
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.ActorRoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name     string
		identity bool
		role     string
		want     int
	}{
		{"admin", true, string(enums.ActorRoleAdmin), http.StatusNoContent},
		{"user", true, string(enums.ActorRoleUser), http.StatusForbidden},
		{"blank role", true, "", http.StatusForbidden},
		{"anonymous", false, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/wallets/u/deposits", nil)
			if tc.identity {
				req = req.WithContext(WithIdentity(req.Context(), uuid.NewString(), uuid.NewString(), tc.role))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRoleAcceptsAnyListedRole(t *testing.T) {
	handler := RequireRole(nil, enums.ActorRoleAdmin, enums.ActorRoleUser)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "t", "u", string(enums.ActorRoleUser)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

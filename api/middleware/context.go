package middleware

import "context"

// Identity is the authenticated caller as carried in the bearer token.
type Identity struct {
	TenantID string
	UserID   string
	Role     string
}

type identityKey struct{}

type requestIDKey struct{}

// WithIdentity stores the caller on ctx. Auth calls it after verifying the
// token; tests call it directly.
func WithIdentity(ctx context.Context, tenantID, userID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, Identity{TenantID: tenantID, UserID: userID, Role: role})
}

// IdentityFromContext returns the caller, or false on unauthenticated routes.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func TenantIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.TenantID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	return reqID
}

func withRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, reqID)
}

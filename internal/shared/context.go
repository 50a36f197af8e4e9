package shared

import "context"

type userContextKey struct{}

type roleContextKey struct{}

// ContextWithUserID stores the authenticated user id in context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated user id from context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userContextKey{}).(int64)
	return id, ok && id > 0
}

// ContextWithRole stores the staff role resolved at session start.
func ContextWithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext returns the staff role, RoleCustomer when absent.
func RoleFromContext(ctx context.Context) Role {
	role, ok := ctx.Value(roleContextKey{}).(Role)
	if !ok {
		return RoleCustomer
	}
	return role
}

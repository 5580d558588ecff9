package models

import "context"

// UserContext carries the authenticated user's identity through a request.
type UserContext struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

type userContextKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the authenticated user, or nil when the request
// is unauthenticated. Absence is a valid, handled state: callers no-op or
// fail gracefully rather than panic.
func UserFromContext(ctx context.Context) *UserContext {
	if user, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return user
	}
	return nil
}

// RolesFromContext returns the authenticated user's roles, defaulting to
// guest for unauthenticated requests.
func RolesFromContext(ctx context.Context) []string {
	if user := UserFromContext(ctx); user != nil && len(user.Roles) > 0 {
		return user.Roles
	}
	return []string{"guest"}
}

package auth

import "context"

type (
	userContextKey    struct{}
	sessionContextKey struct{}
)

// ContextWithSession stores the authenticated user and session in ctx.
func ContextWithSession(ctx context.Context, data *SessionData) context.Context {
	user := data.User.Public()
	ctx = context.WithValue(ctx, userContextKey{}, &user)
	return context.WithValue(ctx, sessionContextKey{}, &data.Session)
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) *PublicUser {
	user, _ := ctx.Value(userContextKey{}).(*PublicUser)
	return user
}

// SessionFromContext returns the session attached by RequireAuth.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

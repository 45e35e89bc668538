// Package identity carries the authenticated caller through a request context.
package identity

import "context"

type Identity struct {
	UserID   string `json:"sub"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type ctxKey struct{}

func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the caller set by the bearer middleware.
func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

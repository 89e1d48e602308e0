package auth

import "context"

type ctxKey int

const (
	principalKey ctxKey = iota
	bearerKey
)

// ContextWithPrincipal returns a copy of ctx carrying the guard's principal.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext reports the principal set by the guard, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext returns the id of the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID() == "" {
		return "", false
	}
	return p.UserID(), true
}

// ContextWithToken keeps the verified access token next to the principal.
// An empty token leaves ctx untouched.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tok, _ := ctx.Value(bearerKey).(string)
	return tok, tok != ""
}

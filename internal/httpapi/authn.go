package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"flowhq.dev/internal/audit"
	"flowhq.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// protect runs the access guard for req before next. Public routes pass
// through untouched.
func (a *API) protect(req auth.Requirement, next http.HandlerFunc) http.Handler {
	if req.Public {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A malformed header leaves token empty and fails authentication.
		token, _ := extractBearerToken(r.Header.Get(authHeader))

		principal, err := a.guard.Check(r.Context(), token, req)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthenticated):
				unauthorized(w, r)
			case errors.Is(err, auth.ErrForbidden):
				_ = audit.LogEvent(r.Context(), audit.EventAccessDenied, map[string]any{
					"path":        r.URL.Path,
					"subject":     principal.UserID(),
					"roles":       req.Roles,
					"permissions": req.Permissions,
				})
				writeError(w, r, http.StatusForbidden, "forbidden")
			default:
				handleAuthError(w, r, err)
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

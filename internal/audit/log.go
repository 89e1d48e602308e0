package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"flowhq.dev/internal/auth"
	"flowhq.dev/internal/obs"
)

// Event names a security-relevant action.
type Event string

const (
	EventRegister        Event = "auth.register"
	EventLoginSucceeded  Event = "auth.login.succeeded"
	EventLoginFailed     Event = "auth.login.failed"
	EventRefreshed       Event = "auth.refresh.succeeded"
	EventRefreshRejected Event = "auth.refresh.rejected"
	EventLogout          Event = "auth.logout"
	EventLogoutAll       Event = "auth.logout_all"
	EventPasswordChanged Event = "auth.password.changed"
	EventAccessDenied    Event = "auth.access.denied"
)

var errEventRequired = errors.New("audit: event name is required")

type requestIDKey struct{}

// WithRequestID tags ctx so later audit entries can be joined with the
// access log line of the same request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// LogEvent writes one audit line. The request id and the authenticated
// subject are taken from ctx. Never pass passwords or raw tokens in fields.
func LogEvent(ctx context.Context, event Event, fields map[string]any) error {
	name := strings.TrimSpace(string(event))
	if name == "" {
		return errEventRequired
	}
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  name,
		"fields": details,
	}
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
			entry["request_id"] = rid
		}
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			entry["user_id"] = userID
		}
	}
	obs.Emit(entry)
	return nil
}

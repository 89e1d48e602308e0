package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"flowhq.dev/internal/auth"
	"flowhq.dev/internal/obs"
)

const serviceName = "flowhq-api"

const maxBodyBytes = 1 << 20

// ReadyProbe is a simple readiness check (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Options wires the HTTP layer to the auth core.
type Options struct {
	Service     *auth.Service
	Guard       *auth.Guard
	ReadyProbe  readinessChecker
	Version     string
	FrontendURL string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	guard      *auth.Guard
	readyProbe readinessChecker
	version    string
	origin     string
}

func New(opts Options) (*API, error) {
	if opts.Service == nil {
		return nil, errors.New("httpapi: auth service is required")
	}
	if opts.Guard == nil {
		return nil, errors.New("httpapi: guard is required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		svc:        opts.Service,
		guard:      opts.Guard,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		origin:     opts.FrontendURL,
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}

	public := auth.Requirement{Public: true}
	signedIn := auth.Requirement{}

	// health/ready/info
	a.route("/healthz", public, a.Healthz)
	a.route("/readyz", public, a.Ready)
	a.route("/v1/info", public, a.Info)
	a.mux.Handle("/metrics", obs.Handler())
	obs.RegisterRoute("/metrics")

	a.route("/api/auth/register", public, a.handleRegister)
	a.route("/api/auth/login", public, a.handleLogin)
	a.route("/api/auth/refresh", public, a.handleRefresh)
	a.route("/api/auth/logout", public, a.handleLogout)
	a.route("/api/auth/logout-all", signedIn, a.handleLogoutAll)
	a.route("/api/auth/change-password", signedIn, a.handleChangePassword)
	a.route("/api/auth/me", signedIn, a.handleMe)

	a.route("/api/roles", auth.Requirement{Permissions: []string{auth.PermReadRole}}, a.handleRoles)
	a.route("/api/permissions", auth.Requirement{Roles: []string{auth.RoleAdmin, auth.RoleEditor}}, a.handlePermissions)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a, nil
}

// route registers h behind the guard for req and makes path a known metrics label.
func (a *API) route(path string, req auth.Requirement, h http.HandlerFunc) {
	a.mux.Handle(path, a.protect(req, h))
	obs.RegisterRoute(path)
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h, a.origin)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

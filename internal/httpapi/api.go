package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fpolysms.io/internal/acl"
	"fpolysms.io/internal/auth"
	"fpolysms.io/internal/config"
	"fpolysms.io/internal/idp"
	"fpolysms.io/internal/obs"
	"fpolysms.io/internal/subject"
	"fpolysms.io/internal/token"
)

// ReadyProbe checks downstream readiness (a database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps bundles the domain services the HTTP layer dispatches into.
type Deps struct {
	Auth     *auth.Service
	ACL      *acl.Service
	Subjects *subject.Service
	Tokens   *token.Service
	Google   idp.Verifier
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	cfg        config.Config

	auth     *auth.Service
	acl      *acl.Service
	subjects *subject.Service
	tokens   *token.Service
	google   idp.Verifier
}

func New(cfg config.Config, rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		cfg:        cfg,
		auth:       deps.Auth,
		acl:        deps.ACL,
		subjects:   deps.Subjects,
		tokens:     deps.Tokens,
		google:     deps.Google,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /api/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// session lifecycle
	a.mux.HandleFunc("POST /api/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("POST /api/v1/auth/sign-in", a.handleSignIn)
	a.mux.HandleFunc("POST /api/v1/auth/sign-in-google", a.handleSignInGoogle)
	a.mux.HandleFunc("DELETE /api/v1/auth/sign-out", a.handleSignOut)
	a.mux.HandleFunc("POST /api/v1/auth/refresh-token", a.handleRefreshToken)
	a.mux.HandleFunc("PUT /api/v1/auth/connect-google", a.handleConnectGoogle)
	a.mux.HandleFunc("PUT /api/v1/auth/disconnect-google", a.handleDisconnectGoogle)
	a.mux.HandleFunc("PATCH /api/v1/auth/enable-tfa", a.handleEnableTFA)
	a.mux.HandleFunc("PATCH /api/v1/auth/verify-tfa", a.handleVerifyTFA)
	a.mux.HandleFunc("PATCH /api/v1/auth/disable-tfa", a.handleDisableTFA)
	a.mux.HandleFunc("PATCH /api/v1/auth/verify-tfa-sign-in", a.handleVerifyTFASignIn)
	a.mux.HandleFunc("PATCH /api/v1/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("PATCH /api/v1/auth/reset-password", a.handleResetPassword)

	// user administration
	a.mux.HandleFunc("POST /api/v1/user", a.handleCreateUser)
	a.mux.HandleFunc("GET /api/v1/user/one/{id}", a.handleGetUser)
	a.mux.HandleFunc("GET /api/v1/user/all", a.handleListUsers)
	a.mux.HandleFunc("PATCH /api/v1/user/{id}", a.handleUpdateUser)
	a.mux.HandleFunc("DELETE /api/v1/user/{id}", a.handleDeleteUser)

	// subjects
	a.mux.HandleFunc("POST /api/v1/subjects", a.handleCreateSubject)
	a.mux.HandleFunc("GET /api/v1/subjects", a.handleListSubjects)
	a.mux.HandleFunc("GET /api/v1/subjects/{id}", a.handleGetSubject)
	a.mux.HandleFunc("PATCH /api/v1/subjects/{id}", a.handleUpdateSubject)
	a.mux.HandleFunc("DELETE /api/v1/subjects/{id}", a.handleDeleteSubject)

	// access control administration
	a.mux.HandleFunc("POST /api/v1/acl/permission-groups", a.handleCreateGroup)
	a.mux.HandleFunc("GET /api/v1/acl/permission-groups", a.handleListGroups)
	a.mux.HandleFunc("GET /api/v1/acl/permission-groups/{id}", a.handleGroupResources)
	a.mux.HandleFunc("PATCH /api/v1/acl/permission-groups/{id}", a.handleUpdateGroup)
	a.mux.HandleFunc("DELETE /api/v1/acl/permission-groups/{id}", a.handleDeleteGroup)
	a.mux.HandleFunc("POST /api/v1/acl/resources", a.handleCreateResource)
	a.mux.HandleFunc("GET /api/v1/acl/resources", a.handleListResources)
	a.mux.HandleFunc("GET /api/v1/acl/resources/{id}", a.handleGetResource)
	a.mux.HandleFunc("PATCH /api/v1/acl/resources/{id}", a.handleUpdateResource)
	a.mux.HandleFunc("DELETE /api/v1/acl/resources/{id}", a.handleDeleteResource)
	a.mux.HandleFunc("PATCH /api/v1/acl/assign-resource", a.handleAssignResource)
	a.mux.HandleFunc("PATCH /api/v1/acl/remove-resource", a.handleRemoveResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.requireACL(h)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.cfg.HTTP.MaxBodyBytes)
	h = RateLimit(h, a.cfg.HTTP.RateBurst, a.cfg.HTTP.RatePerSecond)
	h = a.cors(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": a.cfg.App.Name,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    a.cfg.App.Name,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

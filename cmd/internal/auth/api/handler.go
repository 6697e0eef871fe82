package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/authn"
	"github.com/abdihakim148/beekeeper/cmd/security/token"
	"github.com/abdihakim148/beekeeper/cmd/storage"
)

// PrincipalReader loads a principal by ID.
type PrincipalReader interface {
	Read(ctx context.Context, id identity.ID) (identity.Principal, error)
}

// Handler wires HTTP endpoints to the authenticator and the membership store.
type Handler struct {
	log *slog.Logger
	cfg Config

	auth       *authn.Authenticator
	principals PrincipalReader
	members    *storage.Members
	ipThrottle *authn.Throttle
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, auth *authn.Authenticator, principals PrincipalReader, members *storage.Members) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if auth == nil || principals == nil || members == nil {
		return nil, errors.New("authapi: authenticator, principals and members are required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	return &Handler{
		log:        log,
		cfg:        cfg,
		auth:       auth,
		principals: principals,
		members:    members,
		ipThrottle: authn.NewThrottle(authn.ThrottleConfig{
			Every: cfg.LoginIPEvery,
			Burst: cfg.LoginIPBurst,
		}, token.NewFingerprinter(nil)),
	}, nil
}

// Register wires the routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /me", h.handleMe)

	mux.HandleFunc("POST /tenants/{tenant}/members", h.withAuth(h.handleMemberCreate))
	mux.HandleFunc("GET /tenants/{tenant}/members", h.withAuth(h.handleMemberList))
	mux.HandleFunc("GET /tenants/{tenant}/members/{principal}", h.withAuth(h.handleMemberGet))
	mux.HandleFunc("PUT /tenants/{tenant}/members/{principal}", h.withAuth(h.handleMemberUpdate))
	mux.HandleFunc("PATCH /tenants/{tenant}/members/{principal}", h.withAuth(h.handleMemberPatch))
	mux.HandleFunc("DELETE /tenants/{tenant}/members/{principal}", h.withAuth(h.handleMemberDelete))
	mux.HandleFunc("GET /principals/{principal}/tenants", h.withAuth(h.handlePrincipalTenants))
}

// ---- auth ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	issued, err := h.auth.Register(r.Context(), req.input())
	if err != nil {
		h.audit(r, "auth.register.failed", "reason", fault.KindName(err))
		writeFault(w, h.log, "auth.register", err)
		return
	}
	h.audit(r, "auth.register.success", "principal_id", issued.Principal.ID)
	writeJSON(w, http.StatusCreated, toAuthResponse(issued))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	if !h.allowLoginFrom(clientIP(r, h.cfg.TrustProxy)) {
		h.audit(r, "auth.login.rate_limited")
		writeRateLimited(w, h.cfg.LoginIPEvery)
		return
	}

	issued, err := h.auth.Authenticate(r.Context(), identifier, req.Password)
	if err != nil {
		// Unknown account and wrong password look the same from outside.
		if fault.IsNotFound(err) || fault.IsUnauthorized(err) {
			h.audit(r, "auth.login.failed", "reason", fault.KindName(err))
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		writeFault(w, h.log, "auth.login", err)
		return
	}
	h.audit(r, "auth.login.success", "principal_id", issued.Principal.ID)
	writeJSON(w, http.StatusOK, toAuthResponse(issued))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	p, err := h.principals.Read(r.Context(), id)
	if err != nil {
		if fault.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "principal no longer exists")
			return
		}
		writeFault(w, h.log, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Principal: p.WithoutSecret()})
}

// ---- bearer auth ----

type principalCtxKey struct{}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (identity.ID, bool) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	id, err := h.auth.Authorize(r.Context(), raw)
	if err != nil {
		if fault.IsExpiredToken(err) {
			writeError(w, http.StatusUnauthorized, "expired_token", "token expired")
			return "", false
		}
		if fault.IsInvalidToken(err) {
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
			return "", false
		}
		writeFault(w, h.log, "auth.authorize", err)
		return "", false
	}
	return id, true
}

func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.requireAuth(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalCtxKey{}, id)))
	}
}

// CallerFromContext returns the authenticated principal of a request routed through
// an authenticated endpoint.
func CallerFromContext(ctx context.Context) (identity.ID, bool) {
	id, ok := ctx.Value(principalCtxKey{}).(identity.ID)
	return id, ok
}

func bearerToken(r *http.Request) string {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func parseForwardedIP(raw string) net.IP {
	for p := range strings.SplitSeq(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

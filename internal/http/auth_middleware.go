package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/auth"
)

type authContextKey string

const contextKeyAuth authContextKey = "sistema-admin-principal"

type contextSetter interface {
	SetContext(context.Context)
}

// requireAuth ensures the request has a valid bearer token before invoking the handler.
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, _, ok := r.ensureAuth(w, req)
		if !ok {
			return
		}
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// requireAdmin restricts the handler to the administrator.
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		principal, _ := principalFromContext(req.Context())
		if !principal.IsAdmin() {
			writeKind(w, http.StatusForbidden, "forbidden", "administrator only")
			return
		}
		next(w, req)
	})
}

// ensureAuth validates the Authorization header and enriches the context.
// Streaming endpoints may pass the token in the token query parameter.
func (r *Router) ensureAuth(w http.ResponseWriter, req *http.Request) (context.Context, auth.Principal, bool) {
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		if query := strings.TrimSpace(req.URL.Query().Get("token")); query != "" && isStream(req.URL.Path) {
			token, err = query, nil
		}
	}
	if err != nil {
		r.logger.Warn("authorization header invalid", "error", err, "path", req.URL.Path)
		writeKind(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return req.Context(), auth.Principal{}, false
	}
	principal, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		r.logger.Warn("token validation failed", "error", err, "path", req.URL.Path)
		writeFailure(w, err)
		return req.Context(), auth.Principal{}, false
	}
	ctx := context.WithValue(req.Context(), contextKeyAuth, principal)
	return ctx, principal, true
}

// allow checks a capability and, when environmentID is set, the caller's
// environment scope. It writes the 403 itself.
func (r *Router) allow(w http.ResponseWriter, req *http.Request, capability domain.Capability, environmentID string) (auth.Principal, bool) {
	principal, ok := principalFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return auth.Principal{}, false
	}
	if capability != "" && !principal.Can(capability) {
		writeKind(w, http.StatusForbidden, "forbidden", "missing capability "+string(capability))
		return principal, false
	}
	if environmentID != "" && !principal.CanAccessEnvironment(environmentID) {
		writeKind(w, http.StatusForbidden, "forbidden", "environment outside login scope")
		return principal, false
	}
	return principal, true
}

// principalFromContext extracts the caller from context.
func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

func isStream(path string) bool {
	return strings.HasPrefix(path, "/ws/") || strings.HasPrefix(path, "/sse/")
}

package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/auth"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeData wraps payload in the success envelope.
func writeData(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"success": true, "data": payload})
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeKind sends an error with an explicit kind.
func writeKind(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg, "kind": kind})
}

// writeFailure maps a service error to its status and machine-checkable kind.
func writeFailure(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeKind(w, status, kind, err.Error())
}

func classify(err error) (int, string) {
	if kind := store.AuthKind(err); kind != "" {
		if errors.Is(err, store.ErrLoginNotFound) || errors.Is(err, store.ErrWrongPassword) {
			return http.StatusUnauthorized, kind
		}
		return http.StatusForbidden, kind
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	}
	kind := repository.Kind(err)
	switch kind {
	case "not_found":
		return http.StatusNotFound, kind
	case "conflict":
		return http.StatusConflict, kind
	case "forbidden":
		return http.StatusForbidden, kind
	case "validation":
		return http.StatusBadRequest, kind
	case "verification_failed":
		return http.StatusUnprocessableEntity, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

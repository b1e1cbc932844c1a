package httpx

import (
	"net/http"
	"strings"
)

type credentialsPayload struct {
	Username string `json:"usuario"`
	Password string `json:"senha"`
}

func (r *Router) handleAdminLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	session, err := r.auth.LoginAdmin(req.Context(), payload.Username, payload.Password)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload credentialsPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		writeKind(w, http.StatusBadRequest, "validation", "usuario and senha are required")
		return
	}
	session, err := r.auth.Login(req.Context(), payload.Username, payload.Password)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	principal, ok := r.allow(w, req, "", "")
	if !ok {
		return
	}
	writeData(w, http.StatusOK, principal)
}

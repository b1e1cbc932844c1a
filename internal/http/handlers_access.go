package httpx

import (
	"net/http"
	"strings"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
)

type profilePayload struct {
	Name         *string              `json:"nome"`
	Description  *string              `json:"descricao"`
	Capabilities *domain.Capabilities `json:"permissoes"`
	Active       *bool                `json:"ativo"`
}

type loginPayload struct {
	Username      *string `json:"usuario"`
	Password      *string `json:"senha"`
	EnvironmentID *string `json:"ambienteId"`
	ProfileID     *string `json:"perfilId"`
	Active        *bool   `json:"ativo"`
}

func (r *Router) handleProfiles(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.allow(w, req, domain.CapCreateProfiles, ""); !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		profiles, err := r.access.ListProfiles(req.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, profiles)
	case http.MethodPost:
		var payload profilePayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		input := store.NewProfile{Name: deref(payload.Name), Description: deref(payload.Description), Active: payload.Active}
		if payload.Capabilities != nil {
			input.Capabilities = *payload.Capabilities
		}
		profile, err := r.access.CreateProfile(req.Context(), input)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusCreated, profile)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	parts := pathSegments(req.URL.Path, "/perfis/")
	if len(parts) != 1 {
		r.notFound(w)
		return
	}
	id := parts[0]
	if _, ok := r.allow(w, req, domain.CapCreateProfiles, ""); !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		profile, err := r.access.GetProfile(req.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, profile)
	case http.MethodPatch, http.MethodPut:
		var payload profilePayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		profile, err := r.access.UpdateProfile(req.Context(), id, store.ProfilePatch{
			Name:         payload.Name,
			Description:  payload.Description,
			Capabilities: payload.Capabilities,
			Active:       payload.Active,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, profile)
	case http.MethodDelete:
		if err := r.access.DeleteProfile(req.Context(), id); err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleLogins(w http.ResponseWriter, req *http.Request) {
	principal, ok := r.allow(w, req, domain.CapManageEnvironments, "")
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		environmentID := strings.TrimSpace(req.URL.Query().Get("ambienteId"))
		if !principal.IsAdmin() {
			environmentID = principal.EnvironmentID
		}
		logins, err := r.access.ListLogins(req.Context(), environmentID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, logins)
	case http.MethodPost:
		var payload loginPayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		environmentID := deref(payload.EnvironmentID)
		if _, ok := r.allow(w, req, "", environmentID); !ok {
			return
		}
		login, err := r.access.CreateLogin(req.Context(), store.NewLogin{
			Username:      deref(payload.Username),
			Password:      deref(payload.Password),
			EnvironmentID: environmentID,
			ProfileID:     payload.ProfileID,
			Active:        payload.Active,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusCreated, login)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleLoginItem(w http.ResponseWriter, req *http.Request) {
	parts := pathSegments(req.URL.Path, "/logins/")
	if len(parts) != 1 {
		r.notFound(w)
		return
	}
	if _, ok := r.allow(w, req, domain.CapManageEnvironments, ""); !ok {
		return
	}
	login, err := r.access.GetLogin(req.Context(), parts[0])
	if err != nil {
		writeFailure(w, err)
		return
	}
	if _, ok := r.allow(w, req, "", login.EnvironmentID); !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		writeData(w, http.StatusOK, login)
	case http.MethodPatch, http.MethodPut:
		var payload loginPayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		if payload.EnvironmentID != nil {
			if _, ok := r.allow(w, req, "", *payload.EnvironmentID); !ok {
				return
			}
		}
		updated, err := r.access.UpdateLogin(req.Context(), login.ID, store.LoginPatch{
			Username:      payload.Username,
			Password:      payload.Password,
			EnvironmentID: payload.EnvironmentID,
			ProfileID:     payload.ProfileID,
			Active:        payload.Active,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.access.DeleteLogin(req.Context(), login.ID); err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": login.ID})
	default:
		r.methodNotAllowed(w)
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

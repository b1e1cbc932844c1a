package httpx

import (
	"net/http"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/envfile"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/environment"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/store"
)

type provisionPayload struct {
	Name          string   `json:"nome"`
	Port          int      `json:"porta"`
	OwnerUser     string   `json:"usuario"`
	OwnerPassword string   `json:"senha"`
	Integrations  []string `json:"bancos"`
	PipelineID    *string  `json:"pipelineId"`
}

type environmentPatchPayload struct {
	Name       *string `json:"nome"`
	PipelineID *string `json:"pipelineId"`
	Active     *bool   `json:"ativo"`
}

type credentialPayload struct {
	Login    *string `json:"login"`
	Password *string `json:"senha"`
	Verify   bool    `json:"verificar"`
}

func (r *Router) handleEnvironments(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		principal, ok := r.allow(w, req, domain.CapViewEnvironments, "")
		if !ok {
			return
		}
		envs, err := r.environments.List(req.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		if !principal.IsAdmin() {
			scoped := envs[:0]
			for _, env := range envs {
				if env.ID == principal.EnvironmentID {
					scoped = append(scoped, env)
				}
			}
			envs = scoped
		}
		writeData(w, http.StatusOK, envs)
	case http.MethodPost:
		principal, ok := r.allow(w, req, domain.CapManageEnvironments, "")
		if !ok {
			return
		}
		if !principal.IsAdmin() {
			writeKind(w, http.StatusForbidden, "forbidden", "administrator only")
			return
		}
		var payload provisionPayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		result, err := r.environments.Provision(req.Context(), environment.ProvisionInput{
			Name:          payload.Name,
			Port:          payload.Port,
			OwnerUser:     payload.OwnerUser,
			OwnerPassword: payload.OwnerPassword,
			Integrations:  payload.Integrations,
			PipelineID:    payload.PipelineID,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusCreated, result)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEnvironmentSubroutes(w http.ResponseWriter, req *http.Request) {
	parts := pathSegments(req.URL.Path, "/ambientes/")
	if len(parts) == 0 {
		r.notFound(w)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		r.handleEnvironment(w, req, id)
		return
	}
	switch {
	case parts[1] == "bancos" && len(parts) == 2:
		r.handleEnvironmentIntegrations(w, req, id)
	case parts[1] == "sync" && len(parts) == 2:
		r.handleEnvironmentSync(w, req, id, "")
	case parts[1] == "sync" && len(parts) == 3:
		r.handleEnvironmentSync(w, req, id, parts[2])
	case parts[1] == "credenciais" && len(parts) == 3:
		r.handleEnvironmentCredential(w, req, id, parts[2])
	case parts[1] == "processo" && len(parts) == 2:
		r.handleEnvironmentProcess(w, req, id, "")
	case parts[1] == "processo" && len(parts) == 3:
		r.handleEnvironmentProcess(w, req, id, parts[2])
	default:
		r.notFound(w)
	}
}

func (r *Router) handleEnvironment(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		if _, ok := r.allow(w, req, domain.CapViewEnvironments, id); !ok {
			return
		}
		env, err := r.environments.Get(req.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, env)
	case http.MethodPatch, http.MethodPut:
		if _, ok := r.allow(w, req, domain.CapManageEnvironments, id); !ok {
			return
		}
		var payload environmentPatchPayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		env, err := r.environments.Update(req.Context(), id, store.EnvironmentPatch{
			Name:       payload.Name,
			PipelineID: payload.PipelineID,
			Active:     payload.Active,
		})
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, env)
	case http.MethodDelete:
		principal, ok := r.allow(w, req, domain.CapManageEnvironments, id)
		if !ok {
			return
		}
		if !principal.IsAdmin() {
			writeKind(w, http.StatusForbidden, "forbidden", "administrator only")
			return
		}
		result, err := r.environments.Delete(req.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, result)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEnvironmentIntegrations(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		if _, ok := r.allow(w, req, domain.CapViewEnvironments, id); !ok {
			return
		}
		env, err := r.environments.Get(req.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ambienteId": env.ID, "bancos": env.Integrations})
	case http.MethodPut:
		if _, ok := r.allow(w, req, domain.CapManageEnvironments, id); !ok {
			return
		}
		var payload struct {
			Integrations []string `json:"bancos"`
		}
		if !decodeJSON(w, req, &payload) {
			return
		}
		env, err := r.environments.UpdateIntegrations(req.Context(), id, payload.Integrations)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, env)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEnvironmentSync(w http.ResponseWriter, req *http.Request, id, integrationID string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if _, ok := r.allow(w, req, domain.CapReconcile, id); !ok {
		return
	}
	if integrationID == "" {
		report, err := r.environments.SyncEnvironment(req.Context(), id)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, report)
		return
	}
	result, err := r.environments.SyncOne(req.Context(), id, integrationID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (r *Router) handleEnvironmentCredential(w http.ResponseWriter, req *http.Request, id, integrationID string) {
	switch req.Method {
	case http.MethodGet:
		if _, ok := r.allow(w, req, domain.CapManageCredentials, id); !ok {
			return
		}
		cred, err := r.environments.GetCredential(req.Context(), id, integrationID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		login := ""
		if cred.Login != nil {
			login = *cred.Login
		}
		writeData(w, http.StatusOK, map[string]any{
			"banco":         integrationID,
			"login":         login,
			"senhaDefinida": cred.Password != nil && *cred.Password != "",
		})
	case http.MethodPut:
		principal, ok := r.allow(w, req, domain.CapManageCredentials, id)
		if !ok {
			return
		}
		var payload credentialPayload
		if !decodeJSON(w, req, &payload) {
			return
		}
		if payload.Verify && !principal.Can(domain.CapTestAPIs) {
			writeKind(w, http.StatusForbidden, "forbidden", "missing capability "+string(domain.CapTestAPIs))
			return
		}
		result, err := r.environments.UpdateCredential(req.Context(), id, integrationID, envfile.Credential{
			Login:    payload.Login,
			Password: payload.Password,
		}, payload.Verify)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, result)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEnvironmentProcess(w http.ResponseWriter, req *http.Request, id, action string) {
	capability := domain.CapRestart
	switch {
	case action == "" && req.Method == http.MethodGet:
		capability = domain.CapViewEnvironments
	case action != "" && req.Method == http.MethodPost:
	default:
		r.methodNotAllowed(w)
		return
	}
	if _, ok := r.allow(w, req, capability, id); !ok {
		return
	}
	if r.supervisor == nil {
		writeKind(w, http.StatusServiceUnavailable, "unavailable", "process supervisor disabled")
		return
	}
	env, err := r.environments.Get(req.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if action == "" {
		status, err := r.supervisor.Status(req.Context(), env.Port)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeData(w, http.StatusOK, status)
		return
	}
	status, err := r.supervisor.Do(req.Context(), env.Port, action)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

func (r *Router) handleSyncAll(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	report, err := r.environments.SyncAllActive(req.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (r *Router) handleReconcile(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	report, err := r.environments.Reconcile(req.Context(), r.detector)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (r *Router) handleDetected(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeData(w, http.StatusOK, r.detector.Detect(req.Context()))
}

func (r *Router) handleIntegrations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if _, ok := r.allow(w, req, "", ""); !ok {
		return
	}
	integrations, err := r.environments.Integrations(req.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"bancos":      integrations,
		"disponiveis": r.detector.Available(req.Context(), r.templatePort),
	})
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/ws"
)

type lookupPayload struct {
	EnvironmentID string           `json:"ambienteId"`
	Integrations  []string         `json:"bancos"`
	Subject       domain.Subject   `json:"entrada"`
	Subjects      []domain.Subject `json:"registros"`
}

// lookupScope resolves the target environment and integration list. Logins
// default to their own environment and every integration it permits.
func (r *Router) lookupScope(w http.ResponseWriter, req *http.Request, capability domain.Capability, payload *lookupPayload) bool {
	principal, ok := r.allow(w, req, capability, "")
	if !ok {
		return false
	}
	payload.EnvironmentID = strings.TrimSpace(payload.EnvironmentID)
	if payload.EnvironmentID == "" {
		payload.EnvironmentID = principal.EnvironmentID
	}
	if _, ok := r.allow(w, req, "", payload.EnvironmentID); !ok {
		return false
	}
	if len(payload.Integrations) == 0 && payload.EnvironmentID != "" {
		env, err := r.environments.Get(req.Context(), payload.EnvironmentID)
		if err != nil {
			writeFailure(w, err)
			return false
		}
		payload.Integrations = env.Integrations
	}
	return true
}

func (r *Router) handleSingleLookup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload lookupPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	if !r.lookupScope(w, req, domain.CapSingleLookup, &payload) {
		return
	}
	result, err := r.batch.Lookup(req.Context(), payload.EnvironmentID, payload.Integrations, payload.Subject)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (r *Router) handleBatches(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload lookupPayload
	if !decodeJSON(w, req, &payload) {
		return
	}
	if !r.lookupScope(w, req, domain.CapBatchLookup, &payload) {
		return
	}
	job, err := r.batch.Start(req.Context(), payload.EnvironmentID, payload.Integrations, payload.Subjects)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, http.StatusAccepted, job)
}

// authorizedJob loads the job and checks the caller may observe it.
func (r *Router) authorizedJob(w http.ResponseWriter, req *http.Request, prefix string) (domain.BatchJob, bool) {
	parts := pathSegments(req.URL.Path, prefix)
	if len(parts) != 1 {
		r.notFound(w)
		return domain.BatchJob{}, false
	}
	if _, ok := r.allow(w, req, domain.CapBatchLookup, ""); !ok {
		return domain.BatchJob{}, false
	}
	job, err := r.batch.Get(req.Context(), parts[0])
	if err != nil {
		writeFailure(w, err)
		return domain.BatchJob{}, false
	}
	if _, ok := r.allow(w, req, "", job.EnvironmentID); !ok {
		return domain.BatchJob{}, false
	}
	return job, true
}

func (r *Router) handleBatch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	job, ok := r.authorizedJob(w, req, "/clt/lotes/")
	if !ok {
		return
	}
	writeData(w, http.StatusOK, job)
}

func (r *Router) handleBatchWS(w http.ResponseWriter, req *http.Request) {
	job, ok := r.authorizedJob(w, req, "/ws/lotes/")
	if !ok {
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	snapshot, _ := json.Marshal(job)
	if err := client.Send(snapshot); err != nil || job.Status == domain.BatchDone {
		client.Close()
		return
	}
	r.hub.Register(job.ID, client)
	if r.finishedSince(req.Context(), job.ID, client) {
		r.hub.Unregister(job.ID, client)
		client.Close()
		return
	}
	go func() {
		defer func() {
			r.hub.Unregister(job.ID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleBatchSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	job, ok := r.authorizedJob(w, req, "/sse/lotes/")
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	client := ws.NewSSEClient(w, flusher, r.logger)
	snapshot, _ := json.Marshal(job)
	if err := client.Send(snapshot); err != nil || job.Status == domain.BatchDone {
		return
	}
	r.hub.Register(job.ID, client)
	defer r.hub.Unregister(job.ID, client)
	if r.finishedSince(req.Context(), job.ID, client) {
		return
	}
	r.streamUntilDone(req.Context(), client)
}

// finishedSince covers a job that completed between the snapshot and the
// subscription; the final state is sent directly.
func (r *Router) finishedSince(ctx context.Context, jobID string, client ws.Subscriber) bool {
	latest, err := r.batch.Get(ctx, jobID)
	if err != nil || latest.Status != domain.BatchDone {
		return false
	}
	if payload, err := json.Marshal(latest); err == nil {
		_ = client.Send(payload)
	}
	return true
}

func (r *Router) streamUntilDone(ctx context.Context, client *ws.SSEClient) {
	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			client.Close()
			return
		case <-client.Done():
			return
		case now := <-ticker.C:
			if now.Sub(client.LastActivity()) < sseHeartbeat/2 {
				continue
			}
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

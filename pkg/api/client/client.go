package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the administration API for operator tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:3000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if e.Kind != "" {
		return fmt.Sprintf("api request failed (%d %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return APIError{Status: resp.StatusCode, Kind: env.Kind, Message: strings.TrimSpace(env.Error)}
	}
	if v == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Session captures the token issued by the API.
type Session struct {
	Token     string        `json:"token"`
	ExpiresIn time.Duration `json:"expiraEm"`
	Principal Principal     `json:"principal"`
}

// Principal reflects the authenticated caller.
type Principal struct {
	Role          string `json:"papel"`
	Username      string `json:"usuario"`
	EnvironmentID string `json:"ambienteId"`
}

// LoginAdmin exchanges the administrator credentials for a token.
func (c *Client) LoginAdmin(ctx context.Context, username, password string) (Session, error) {
	return c.login(ctx, "/auth/admin", username, password)
}

// Login exchanges environment login credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	return c.login(ctx, "/auth/login", username, password)
}

func (c *Client) login(ctx context.Context, path, username, password string) (Session, error) {
	body := map[string]string{
		"usuario": username,
		"senha":   password,
	}
	var resp Session
	if err := c.do(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return Session{}, err
	}
	return resp, nil
}

// Environment describes a provisioned environment.
type Environment struct {
	ID           string    `json:"id"`
	Name         string    `json:"nome"`
	Port         int       `json:"porta"`
	Directory    string    `json:"diretorio"`
	Integrations []string  `json:"bancosPermitidos"`
	Active       bool      `json:"ativo"`
	CreatedAt    time.Time `json:"criadoEm"`
}

// ListEnvironments returns the environments visible to the caller.
func (c *Client) ListEnvironments(ctx context.Context, token string) ([]Environment, error) {
	var envs []Environment
	if err := c.do(ctx, http.MethodGet, "/ambientes", nil, token, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// ProvisionInput captures the payload for environment creation.
type ProvisionInput struct {
	Name          string   `json:"nome"`
	Port          int      `json:"porta"`
	OwnerUser     string   `json:"usuario"`
	OwnerPassword string   `json:"senha"`
	Integrations  []string `json:"bancos"`
}

// UnitResult is the outcome of one synchronized directory.
type UnitResult struct {
	Name    string `json:"nome"`
	Kind    string `json:"tipo"`
	Success bool   `json:"sucesso"`
	Skipped bool   `json:"ignorado"`
	Files   int    `json:"arquivos"`
	Error   string `json:"erro"`
}

// SyncReport aggregates unit results of one environment.
type SyncReport struct {
	EnvironmentID string       `json:"ambienteId"`
	Port          int          `json:"porta"`
	Results       []UnitResult `json:"resultados"`
}

// ProvisionResult is the created environment and its materialization.
type ProvisionResult struct {
	Environment     Environment `json:"ambiente"`
	Materialization SyncReport  `json:"materializacao"`
}

// Provision creates an environment and materializes its directory.
func (c *Client) Provision(ctx context.Context, token string, input ProvisionInput) (ProvisionResult, error) {
	var result ProvisionResult
	if err := c.do(ctx, http.MethodPost, "/ambientes", input, token, &result); err != nil {
		return ProvisionResult{}, err
	}
	return result, nil
}

// DeleteEnvironment removes an environment and returns any directory warning.
func (c *Client) DeleteEnvironment(ctx context.Context, token, id string) (string, error) {
	var result struct {
		Warning string `json:"aviso"`
	}
	path := fmt.Sprintf("/ambientes/%s", url.PathEscape(id))
	if err := c.do(ctx, http.MethodDelete, path, nil, token, &result); err != nil {
		return "", err
	}
	return result.Warning, nil
}

// SyncEnvironment overwrites every permitted integration of one environment.
func (c *Client) SyncEnvironment(ctx context.Context, token, id string) (SyncReport, error) {
	path := fmt.Sprintf("/ambientes/%s/sync", url.PathEscape(id))
	var report SyncReport
	if err := c.do(ctx, http.MethodPost, path, nil, token, &report); err != nil {
		return SyncReport{}, err
	}
	return report, nil
}

// SyncIntegration overwrites a single integration of one environment.
func (c *Client) SyncIntegration(ctx context.Context, token, id, integration string) (UnitResult, error) {
	path := fmt.Sprintf("/ambientes/%s/sync/%s", url.PathEscape(id), url.PathEscape(integration))
	var result UnitResult
	if err := c.do(ctx, http.MethodPost, path, nil, token, &result); err != nil {
		return UnitResult{}, err
	}
	return result, nil
}

// BulkSyncReport aggregates the reports of every active environment.
type BulkSyncReport struct {
	SyncedAt     time.Time    `json:"sincronizadoEm"`
	Environments []SyncReport `json:"ambientes"`
}

// SyncAll synchronizes every active environment.
func (c *Client) SyncAll(ctx context.Context, token string) (BulkSyncReport, error) {
	var report BulkSyncReport
	if err := c.do(ctx, http.MethodPost, "/ambientes/sync", nil, token, &report); err != nil {
		return BulkSyncReport{}, err
	}
	return report, nil
}

// ReconcileReport summarizes a reconcile pass.
type ReconcileReport struct {
	Detected    int           `json:"detectados"`
	Created     []Environment `json:"criados"`
	Updated     []string      `json:"atualizados"`
	Deactivated []string      `json:"desativados"`
	SyncedAt    time.Time     `json:"sincronizadoEm"`
}

// Reconcile aligns the registry with the directories on disk.
func (c *Client) Reconcile(ctx context.Context, token string) (ReconcileReport, error) {
	var report ReconcileReport
	if err := c.do(ctx, http.MethodPost, "/reconcile", nil, token, &report); err != nil {
		return ReconcileReport{}, err
	}
	return report, nil
}

// ProcessStatus reflects the supervised process of an environment.
type ProcessStatus struct {
	Port    int  `json:"porta"`
	Running bool `json:"emExecucao"`
}

// Process runs start, stop or restart; an empty action reads the status.
func (c *Client) Process(ctx context.Context, token, id, action string) (ProcessStatus, error) {
	path := fmt.Sprintf("/ambientes/%s/processo", url.PathEscape(id))
	method := http.MethodGet
	if strings.TrimSpace(action) != "" {
		path += "/" + url.PathEscape(action)
		method = http.MethodPost
	}
	var status ProcessStatus
	if err := c.do(ctx, method, path, nil, token, &status); err != nil {
		return ProcessStatus{}, err
	}
	return status, nil
}

// Package partner talks to the partner bank APIs.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/catalog"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/domain"
)

// ErrNotConfigured is returned when an integration has no base URL.
var ErrNotConfigured = errors.New("partner base url not configured")

// Credential authenticates against a partner API.
type Credential struct {
	Login    string
	Password string
}

// VerifyResult reports whether a partner accepted a credential.
type VerifyResult struct {
	Success bool   `json:"sucesso"`
	Details string `json:"detalhes,omitempty"`
}

// Client calls partner APIs. Base URLs are keyed by integration id.
type Client struct {
	baseURLs   map[string]string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client.
func New(baseURLs map[string]string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	urls := make(map[string]string, len(baseURLs))
	for id, base := range baseURLs {
		urls[id] = strings.TrimRight(strings.TrimSpace(base), "/")
	}
	c := &Client{
		baseURLs:   urls,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "partner"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx partner response.
type APIError struct {
	Integration string
	Status      int
	Message     string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s responded with status %d", e.Integration, e.Status)
	}
	return fmt.Sprintf("%s responded with status %d: %s", e.Integration, e.Status, e.Message)
}

// Verify checks a credential by logging into the partner. Rejections come
// back as an unsuccessful result; transport failures as errors. An
// "<PREFIX>API_URL" entry in envVars overrides the configured base URL.
func (c *Client) Verify(ctx context.Context, integrationID, login, password string, envVars map[string]string) (VerifyResult, error) {
	base, err := c.baseURL(integrationID, envVars)
	if err != nil {
		return VerifyResult{}, err
	}
	_, err = c.authenticate(ctx, base, integrationID, Credential{Login: login, Password: password})
	var apiErr APIError
	switch {
	case err == nil:
		return VerifyResult{Success: true, Details: "credenciais aceitas"}, nil
	case errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden):
		return VerifyResult{Success: false, Details: apiErr.Error()}, nil
	default:
		return VerifyResult{}, err
	}
}

// Simulate runs a CLT simulation for subject with the given credential.
func (c *Client) Simulate(ctx context.Context, integrationID string, cred Credential, subject domain.Subject) (domain.LookupOutcome, error) {
	outcome := domain.LookupOutcome{Integration: integrationID}
	base, err := c.baseURL(integrationID, nil)
	if err != nil {
		return outcome, err
	}
	token, err := c.authenticate(ctx, base, integrationID, cred)
	if err != nil {
		return outcome, err
	}
	var data json.RawMessage
	if err := c.do(ctx, integrationID, http.MethodPost, base+"/clt/simulacao", subject, token, &data); err != nil {
		return outcome, err
	}
	outcome.Success = true
	outcome.Data = data
	return outcome, nil
}

func (c *Client) authenticate(ctx context.Context, base, integrationID string, cred Credential) (string, error) {
	body := map[string]string{"login": cred.Login, "senha": cred.Password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, integrationID, http.MethodPost, base+"/auth/login", body, "", &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) baseURL(integrationID string, envVars map[string]string) (string, error) {
	entry, ok := catalog.Lookup(integrationID)
	if !ok {
		return "", fmt.Errorf("unknown integration %q", integrationID)
	}
	if len(entry.KeepPrefixes) > 0 {
		if override := strings.TrimSpace(envVars[entry.KeepPrefixes[0]+"API_URL"]); override != "" {
			return strings.TrimRight(override, "/"), nil
		}
	}
	base := c.baseURLs[integrationID]
	if base == "" {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, integrationID)
	}
	return base, nil
}

func (c *Client) do(ctx context.Context, integrationID, method, endpoint string, body any, token string, v any) error {
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
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "partner request failed", "integration", integrationID, "endpoint", endpoint, "error", err)
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	c.logger.DebugContext(ctx, "partner request", "integration", integrationID, "endpoint", endpoint, "status", resp.StatusCode, "duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Integration: integrationID, Status: resp.StatusCode, Message: extractError(resp.Body)}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Erro    string `json:"erro"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	for _, msg := range []string{payload.Error, payload.Erro, payload.Message} {
		if strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

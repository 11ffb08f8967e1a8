package orchestrator

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to a single Portainer instance's REST API. Authentication
// is either a static API key (PORTAINER_API_KEY) or a username/password
// pair exchanged for a JWT on first use and cached for the client's
// lifetime (spec §4.C / §6).
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client

	mu  sync.Mutex
	jwt string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates every request with the given Portainer API key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithBasicLogin authenticates by exchanging username/password for a JWT
// on first request.
func WithBasicLogin(username, password string) Option {
	return func(c *Client) { c.username, c.password = username, password }
}

// WithInsecureTLS disables TLS certificate verification, for Portainer
// instances behind a self-signed certificate.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // operator opt-in via PORTAINER_INSECURE_TLS
		}
	}
}

// NewClient constructs a Client for the Portainer instance at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TestConnection verifies the configured credentials by listing endpoints.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ListEndpoints(ctx)
	return err
}

func (c *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := c.get(ctx, "/api/endpoints", &endpoints); err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	return endpoints, nil
}

func (c *Client) ListContainers(ctx context.Context, endpointID int) ([]Container, error) {
	var containers []Container
	path := fmt.Sprintf("/api/endpoints/%d/docker/containers/json?all=1", endpointID)
	if err := c.get(ctx, path, &containers); err != nil {
		return nil, fmt.Errorf("list containers (endpoint %d): %w", endpointID, err)
	}
	return containers, nil
}

func (c *Client) ListStacks(ctx context.Context) ([]Stack, error) {
	var stacks []Stack
	if err := c.get(ctx, "/api/stacks", &stacks); err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	return stacks, nil
}

// GetManifest fetches the compose file content backing a stack. Returns
// ErrManifestNotFound if Portainer has no file content recorded (a
// common state for Swarm stacks created outside Portainer).
func (c *Client) GetManifest(ctx context.Context, stackID int) (string, error) {
	var resp manifestResponse
	path := fmt.Sprintf("/api/stacks/%d/file", stackID)
	if err := c.get(ctx, path, &resp); err != nil {
		if errors404(err) {
			return "", ErrManifestNotFound
		}
		return "", fmt.Errorf("get manifest: %w", err)
	}
	if resp.StackFileContent == "" {
		return "", ErrManifestNotFound
	}
	return resp.StackFileContent, nil
}

// GetStackEnv returns the environment variables Portainer has recorded
// for a stack, used to resolve ${VAR:-default} substitutions when
// parsing its manifest.
func (c *Client) GetStackEnv(ctx context.Context, stackID int) ([]EnvVar, error) {
	stacks, err := c.ListStacks(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range stacks {
		if st.ID == stackID {
			return st.Env, nil
		}
	}
	return nil, fmt.Errorf("stack %d not found", stackID)
}

// RedeployStack triggers a stack redeploy with fresh image pulls and
// pruning of now-unreferenced resources (spec §4.E.2).
func (c *Client) RedeployStack(ctx context.Context, stackID, endpointID int, env []EnvVar) error {
	body := StackRedeploy{Env: env, PullImage: true, Prune: true}
	path := fmt.Sprintf("/api/stacks/%d?endpointId=%d", stackID, endpointID)
	return c.put(ctx, path, body)
}

// authHeader returns either the static API key or a lazily-fetched JWT.
func (c *Client) authHeader(ctx context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
		return nil
	}
	token, err := c.ensureJWT(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) ensureJWT(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jwt != "" {
		return c.jwt, nil
	}

	b, err := json.Marshal(authRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("portainer login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("portainer login failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("portainer login: decode response: %w", err)
	}
	c.jwt = auth.JWT
	return c.jwt, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if err := c.authHeader(ctx, req); err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, path string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	if err := c.authHeader(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("portainer API error %d: %s", e.status, e.body)
}

func errors404(err error) bool {
	var hs *httpStatusError
	return err != nil && asHTTPStatusError(err, &hs) && hs.status == http.StatusNotFound
}

func asHTTPStatusError(err error, target **httpStatusError) bool {
	if hs, ok := err.(*httpStatusError); ok {
		*target = hs
		return true
	}
	return false
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

package lescommuns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

const responseBodyReadLimit int64 = 1 << 20

var errAPIURLRequired = errors.New("lescommuns api url is required")

// Client is the authenticated HTTP client for the partner-registry API.
// Auth reuses the portal's bearer-token transport; a configured static API
// key seeds the token and skips the password flow.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, used by tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a registry client from the relay configuration.
func NewClient(cfg config.LesCommunsConfig, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if trimmed == "" {
		return nil, errAPIURLRequired
	}

	client := &Client{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: recoco.NewBearerAuth(trimmed, cfg.Username, cfg.Password, cfg.APIKey),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// ListProjects fetches every registry project.
func (c *Client) ListProjects(ctx context.Context) ([]map[string]any, error) {
	var projects []map[string]any
	if err := c.request(ctx, http.MethodGet, "/projets/", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one registry project by its registry id.
func (c *Client) GetProject(ctx context.Context, remoteID string) (map[string]any, error) {
	var project map[string]any
	if err := c.request(ctx, http.MethodGet, "/projets/"+remoteID+"/", nil, &project); err != nil {
		return nil, err
	}
	return project, nil
}

// CreateProject creates a registry project and returns its registry id.
func (c *Client) CreateProject(ctx context.Context, payload Projet) (string, error) {
	var created struct {
		ID json.Number `json:"id"`
	}
	if err := c.request(ctx, http.MethodPost, "/projets/", payload, &created); err != nil {
		return "", err
	}
	if created.ID.String() == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "registry create response carries no id")
	}
	return created.ID.String(), nil
}

// UpdateProject patches an existing registry project.
func (c *Client) UpdateProject(ctx context.Context, remoteID string, payload Projet) error {
	return c.request(ctx, http.MethodPatch, "/projets/"+remoteID+"/", payload, nil)
}

// GetProjectServices fetches the services attached to a registry project.
// An empty list means the registry has not provisioned them yet.
func (c *Client) GetProjectServices(ctx context.Context, remoteID string) ([]map[string]any, error) {
	var services []map[string]any
	if err := c.request(ctx, http.MethodGet, "/projets/"+remoteID+"/services/", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal registry request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build registry request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute registry request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"registry request failed",
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode registry response")
	}
	return nil
}

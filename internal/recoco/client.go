package recoco

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

	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/pkg/config"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

const responseBodyReadLimit int64 = 1 << 20

var errAPIURLRequired = errors.New("recoco api url is required")

// Client is the authenticated HTTP client for the upstream portal API. One
// client per webhook source, since each source has its own base URL.
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

// NewClient builds a portal client for the given base URL, authenticating
// with the configured credentials.
func NewClient(apiURL string, cfg config.RecocoConfig, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if trimmed == "" {
		return nil, errAPIURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := &Client{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewBearerAuth(trimmed, cfg.Username, cfg.Password, ""),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// SessionList is the paginated survey-sessions response.
type SessionList struct {
	Count   int `json:"count"`
	Results []struct {
		ID int64 `json:"id"`
	} `json:"results"`
}

// AnswerList is the paginated survey-answers response.
type AnswerList struct {
	Count   int              `json:"count"`
	Results []mapping.Answer `json:"results"`
}

// QuestionList is the paginated questions response.
type QuestionList struct {
	Count   int                `json:"count"`
	Results []mapping.Question `json:"results"`
}

// ResourceAddonList is the paginated resource-addons response.
type ResourceAddonList struct {
	Count   int              `json:"count"`
	Results []map[string]any `json:"results"`
}

// GetProject fetches one project payload by id.
func (c *Client) GetProject(ctx context.Context, projectID int64) (map[string]any, error) {
	var project map[string]any
	if err := c.get(ctx, fmt.Sprintf("/projects/%d/", projectID), &project); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProjects fetches every project payload.
func (c *Client) GetProjects(ctx context.Context) ([]map[string]any, error) {
	var projects []map[string]any
	if err := c.get(ctx, "/projects/", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetSurveySessions fetches the survey sessions of a project.
func (c *Client) GetSurveySessions(ctx context.Context, projectID int64) (SessionList, error) {
	var sessions SessionList
	if err := c.get(ctx, fmt.Sprintf("/survey/sessions/?project_id=%d", projectID), &sessions); err != nil {
		return SessionList{}, err
	}
	return sessions, nil
}

// GetSurveySessionAnswers fetches the answers of a survey session.
func (c *Client) GetSurveySessionAnswers(ctx context.Context, sessionID int64) (AnswerList, error) {
	var answers AnswerList
	if err := c.get(ctx, fmt.Sprintf("/survey/sessions/%d/answers/", sessionID), &answers); err != nil {
		return AnswerList{}, err
	}
	return answers, nil
}

// GetQuestions fetches the survey questions of the portal.
func (c *Client) GetQuestions(ctx context.Context) (QuestionList, error) {
	var questions QuestionList
	if err := c.get(ctx, "/survey/questions/?limit=500", &questions); err != nil {
		return QuestionList{}, err
	}
	return questions, nil
}

// GetResourceAddons fetches the addons of a recommendation for a given nature.
func (c *Client) GetResourceAddons(ctx context.Context, recommendationID int64, nature string) (ResourceAddonList, error) {
	var addons ResourceAddonList
	path := fmt.Sprintf("/api/resource-addons/?recommendation=%d&nature=%s", recommendationID, nature)
	if err := c.get(ctx, path, &addons); err != nil {
		return ResourceAddonList{}, err
	}
	return addons, nil
}

// CreateResourceAddon creates a resource addon on the portal.
func (c *Client) CreateResourceAddon(ctx context.Context, payload map[string]any) (map[string]any, error) {
	var created map[string]any
	if err := c.post(ctx, "/api/resource-addons/", payload, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateResourceAddon updates an existing resource addon on the portal.
func (c *Client) UpdateResourceAddon(ctx context.Context, addonID int64, payload map[string]any) error {
	return c.patch(ctx, fmt.Sprintf("/api/resource-addons/%d/", addonID), payload, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recoco request")
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal recoco request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recoco request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) patch(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal recoco request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build recoco request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute recoco request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"recoco request failed",
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recoco response")
	}
	return nil
}

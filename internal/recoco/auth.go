package recoco

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

const tokenBodyReadLimit int64 = 4096

// BearerAuth is an http.RoundTripper that authenticates against the portal's
// token endpoints and transparently refreshes the access token on a 401.
// The same flow is used by the partner-registry client against its own base
// URL.
type BearerAuth struct {
	base     http.RoundTripper
	baseURL  string
	username string
	password string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewBearerAuth builds the authenticating transport. A non-empty staticToken
// seeds the access token, for APIs authenticated by a fixed key.
func NewBearerAuth(baseURL, username, password, staticToken string) *BearerAuth {
	return &BearerAuth{
		base:        http.DefaultTransport,
		baseURL:     strings.TrimRight(baseURL, "/"),
		username:    username,
		password:    password,
		accessToken: staticToken,
	}
}

func (a *BearerAuth) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := a.token(req.Context())
	if err != nil {
		return nil, err
	}

	resp, err := a.base.RoundTrip(a.withToken(req, token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	token, err = a.refresh(req.Context())
	if err != nil {
		return nil, err
	}
	return a.base.RoundTrip(a.withToken(req, token))
}

func (a *BearerAuth) withToken(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone
}

func (a *BearerAuth) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" {
		return a.accessToken, nil
	}
	return a.fetchTokenLocked(ctx, a.baseURL+"/token/", url.Values{
		"username": {a.username},
		"password": {a.password},
	})
}

func (a *BearerAuth) refresh(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refreshToken == "" {
		a.accessToken = ""
		return a.fetchTokenLocked(ctx, a.baseURL+"/token/", url.Values{
			"username": {a.username},
			"password": {a.password},
		})
	}
	return a.fetchTokenLocked(ctx, a.baseURL+"/token/refresh/", url.Values{
		"refresh": {a.refreshToken},
	})
}

func (a *BearerAuth) fetchTokenLocked(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.base.RoundTrip(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, tokenBodyReadLimit))
		return "", pkgerrors.Wrap(
			pkgerrors.CodeUnauthorized,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"token request failed",
		)
	}

	var payload struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, tokenBodyReadLimit)).Decode(&payload); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode token response")
	}

	a.accessToken = payload.Access
	if payload.Refresh != "" {
		a.refreshToken = payload.Refresh
	}
	return a.accessToken, nil
}

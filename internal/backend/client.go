// Package backend implements the HTTP client for the SANAA360 auth backend.
// It covers the four identity endpoints (code exchange, status check, token
// refresh, revoke) and classifies every failure into the error taxonomy the
// session store and callback controller act on. The backend session cookie is
// persisted alongside the auth snapshot so a new process keeps its session.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sanaa360/creator-cli/internal/config"
	"github.com/sanaa360/creator-cli/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Profile is the authenticated creator's TikTok profile as reported by the backend.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	Scope          ScopeList `json:"scope,omitempty"`
}

// ScopeList is the set of granted permission strings. The backend sends it
// either as a JSON array or as a single comma/space separated string.
type ScopeList []string

// UnmarshalJSON accepts both array and string encodings of the scope set.
func (s *ScopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("scope: unsupported encoding: %w", err)
	}
	joined = strings.ReplaceAll(joined, ",", " ")
	*s = nil
	for _, part := range strings.Fields(joined) {
		*s = append(*s, part)
	}
	return nil
}

// Has reports whether the scope set contains the given permission.
func (s ScopeList) Has(scope string) bool {
	for _, granted := range s {
		if granted == scope {
			return true
		}
	}
	return false
}

// ExchangeResult is the consumed portion of a successful code exchange response.
type ExchangeResult struct {
	User        *Profile
	TokenExpiry *time.Time
}

// StatusResult is the consumed portion of a status check response.
type StatusResult struct {
	Authenticated bool
	User          *Profile
	TokenExpired  bool
	TokenExpiry   *time.Time
}

// RefreshResult is the consumed portion of a token refresh response.
type RefreshResult struct {
	Success     bool
	User        *Profile
	TokenExpiry *time.Time
}

// Client talks to the SANAA360 auth backend. All calls carry the session
// cookie, honor the configured per-request timeout, and classify failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cookies    *cookieFile
}

// New constructs a backend client from the configuration. The session cookie
// jar is rehydrated from the auth directory when a previous process saved one.
func New(cfg *config.Config) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("backend: create cookie jar failed: %w", err)
	}
	base, err := url.Parse(cfg.BackendBaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", cfg.BackendBaseURL, err)
	}

	httpClient := util.SetProxy(cfg.ProxyURL, &http.Client{
		Jar:     jar,
		Timeout: cfg.RequestTimeout(),
	})

	cookies := newCookieFile(cfg.AuthDir, base)
	cookies.restore(jar)

	return &Client{
		baseURL:    strings.TrimRight(cfg.BackendBaseURL, "/"),
		httpClient: httpClient,
		cookies:    cookies,
	}, nil
}

// LoginURL builds the backend login entry URL that starts the OAuth redirect
// dance, carrying the local callback address and the anti-CSRF state value.
func (c *Client) LoginURL(redirectURI, state string) string {
	params := url.Values{
		"redirect_uri": {redirectURI},
		"state":        {state},
	}
	return fmt.Sprintf("%s/auth/tiktok/login?%s", c.baseURL, params.Encode())
}

// ProcessCallback exchanges the one-time authorization code for a backend
// session. The code is forwarded byte-for-byte in the JSON body; it is never
// placed in a URL where re-encoding could corrupt it.
func (c *Client) ProcessCallback(ctx context.Context, code, state string) (*ExchangeResult, *Error) {
	payload := map[string]string{"code": code}
	if state != "" {
		payload["state"] = state
	}

	body, status, netErr := c.DoJSON(ctx, http.MethodPost, "/auth/tiktok/process-callback", payload)
	if netErr != nil {
		return nil, netErr
	}
	if status < 200 || status > 299 {
		return nil, c.classifyExchange(status, body)
	}

	var resp struct {
		User        *Profile `json:"user"`
		TokenExpiry string   `json:"tokenExpiry"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.User == nil {
		return nil, &Error{
			Kind:         KindServer,
			Message:      "backend returned an unreadable exchange response",
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return &ExchangeResult{
		User:        resp.User,
		TokenExpiry: parseExpiry(resp.TokenExpiry, 0),
	}, nil
}

// Status queries the backend for the current authentication state.
func (c *Client) Status(ctx context.Context) (*StatusResult, *Error) {
	body, status, netErr := c.DoJSON(ctx, http.MethodGet, "/auth/tiktok/status", nil)
	if netErr != nil {
		return nil, netErr
	}
	if status == http.StatusUnauthorized {
		return nil, &Error{
			Kind:         KindSessionExpired,
			Message:      messageFromBody(body, "session expired, please log in again"),
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	if status < 200 || status > 299 {
		return nil, c.classifyGeneric(status, body)
	}

	var resp struct {
		Authenticated bool     `json:"authenticated"`
		User          *Profile `json:"user"`
		TokenExpired  bool     `json:"tokenExpired"`
		TokenExpiry   string   `json:"tokenExpiry"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{
			Kind:         KindServer,
			Message:      "backend returned an unreadable status response",
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return &StatusResult{
		Authenticated: resp.Authenticated,
		User:          resp.User,
		TokenExpired:  resp.TokenExpired,
		TokenExpiry:   parseExpiry(resp.TokenExpiry, 0),
	}, nil
}

// RefreshToken requests a new access token using the refresh credential the
// backend session holds. A reauth signal in the response marks the refresh
// token itself invalid, which the store treats as a hard session loss.
func (c *Client) RefreshToken(ctx context.Context) (*RefreshResult, *Error) {
	body, status, netErr := c.DoJSON(ctx, http.MethodGet, "/auth/tiktok/refresh-token", nil)
	if netErr != nil {
		return nil, netErr
	}
	if status < 200 || status > 299 {
		if gjson.GetBytes(body, "reauth").Bool() {
			return nil, &Error{
				Kind:         KindRefreshInvalid,
				Message:      messageFromBody(body, "refresh token invalid, please reconnect your TikTok account"),
				HTTPStatus:   status,
				ResponseBody: string(body),
			}
		}
		return nil, c.classifyGeneric(status, body)
	}

	var resp struct {
		Success     bool     `json:"success"`
		User        *Profile `json:"user"`
		ExpiresIn   int64    `json:"expiresIn"`
		TokenExpiry string   `json:"tokenExpiry"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{
			Kind:         KindServer,
			Message:      "backend returned an unreadable refresh response",
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return &RefreshResult{
		Success:     resp.Success,
		User:        resp.User,
		TokenExpiry: parseExpiry(resp.TokenExpiry, resp.ExpiresIn),
	}, nil
}

// RevokeAccess asks the backend to revoke the upstream grant and drop the
// session. The caller clears local state regardless of the outcome.
func (c *Client) RevokeAccess(ctx context.Context) *Error {
	body, status, netErr := c.DoJSON(ctx, http.MethodPost, "/auth/tiktok/revoke-access", nil)
	if netErr != nil {
		return netErr
	}
	if status < 200 || status > 299 {
		return c.classifyGeneric(status, body)
	}
	return nil
}

// Transport exposes the configured round tripper so sibling clients (direct
// file uploads) share the proxy settings without the cookie jar or timeout.
func (c *Client) Transport() http.RoundTripper {
	return c.httpClient.Transport
}

// DoJSON performs one request against the backend, returning the raw body and
// status, or a classified network error when the backend was unreachable.
func (c *Client) DoJSON(ctx context.Context, method, path string, payload any) ([]byte, int, *Error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, &Error{Kind: KindServer, Message: fmt.Sprintf("encode request failed: %v", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, &Error{Kind: KindServer, Message: fmt.Sprintf("create request failed: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debugf("backend request %s %s failed: %v", method, path, err)
		return nil, 0, &Error{
			Kind:           KindNetwork,
			Message:        "could not reach the SANAA360 server",
			IsNetworkError: true,
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{
			Kind:           KindNetwork,
			Message:        "connection lost while reading the server response",
			IsNetworkError: true,
		}
	}

	c.cookies.persist(c.httpClient.Jar)
	return body, resp.StatusCode, nil
}

// classifyExchange maps a failed code exchange response onto the taxonomy.
// Scope hints outrank the status code: a declined consent must surface as a
// distinct, actionable failure instead of a generic invalid-code message.
func (c *Client) classifyExchange(status int, body []byte) *Error {
	if scopeDenied(body) {
		return &Error{
			Kind:         KindInsufficientScope,
			Message:      messageFromBody(body, "required TikTok permissions were not granted"),
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return &Error{
			Kind:         KindInvalidCode,
			Message:      messageFromBody(body, "authorization code is invalid or has expired"),
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return c.classifyGeneric(status, body)
}

func (c *Client) classifyGeneric(status int, body []byte) *Error {
	return ClassifyAPIError(status, body)
}

// ClassifyAPIError maps a non-2xx API response that carries no more specific
// signal onto the generic server-error kind, lifting the backend's own
// message when the body has one.
func ClassifyAPIError(status int, body []byte) *Error {
	if status == http.StatusUnauthorized {
		return &Error{
			Kind:         KindSessionExpired,
			Message:      messageFromBody(body, "session expired, please log in again"),
			HTTPStatus:   status,
			ResponseBody: string(body),
		}
	}
	return &Error{
		Kind:         KindServer,
		Message:      messageFromBody(body, fmt.Sprintf("server error (status %d)", status)),
		HTTPStatus:   status,
		ResponseBody: string(body),
	}
}

// parseExpiry converts either an ISO timestamp or a relative expiresIn (in
// seconds) into an absolute expiry time. Returns nil when neither is usable.
func parseExpiry(iso string, expiresIn int64) *time.Time {
	iso = strings.TrimSpace(iso)
	if iso != "" {
		if ts, err := time.Parse(time.RFC3339, iso); err == nil {
			return &ts
		}
		log.Warnf("backend sent unparseable tokenExpiry %q", iso)
	}
	if expiresIn > 0 {
		ts := time.Now().Add(time.Duration(expiresIn) * time.Second)
		return &ts
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/formward/formward/iox"
)

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the HQ instance root, e.g. https://www.commcarehq.org.
	BaseURL string
	// Domain scopes requests under /a/{domain}/. Optional.
	Domain string
	// Username and APIKey authenticate requests (ApiKey header scheme).
	Username string
	APIKey   string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// Client is a CommCare HQ API client.
type Client struct {
	baseURL  string
	domain   string
	username string
	apiKey   string
	http     *http.Client
}

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s returned status %d", e.Path, e.Code)
}

// UserNotFoundError reports a username with no match in the domain.
type UserNotFoundError struct {
	Username string
	Domain   string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found in domain %q", e.Username, e.Domain)
}

// App is the application detail subset the runner needs.
type App struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// User is the mobile worker subset the runner needs.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// New creates a client. The base URL's trailing slash is normalized away.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		domain:   cfg.Domain,
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// WithDomain returns a copy of the client scoped to a different domain.
func (c *Client) WithDomain(domain string) *Client {
	copied := *c
	copied.domain = domain
	return &copied
}

// buildPath prepends the domain scope unless the path is already
// absolute or global.
func (c *Client) buildPath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "api/global/") {
		return "/" + p
	}
	if c.domain != "" {
		return "/a/" + c.domain + "/" + p
	}
	return "/" + p
}

// get performs an authenticated GET and returns status code and body.
// Non-2xx responses are returned to the caller, not converted to errors,
// so fallback chains can branch on status.
func (c *Client) get(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	u := c.baseURL + c.buildPath(path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("api: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.username+":"+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("api: %s: %w", path, err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("api: read %s: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

// GetJSON performs a GET and decodes a 2xx JSON response into v.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) error {
	status, body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{Code: status, Path: path}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

// List fetches one page from a list endpoint with limit/offset.
func (c *Client) List(ctx context.Context, path string, params url.Values, limit, offset int) (map[string]any, error) {
	p := url.Values{}
	for k, vs := range params {
		p[k] = vs
	}
	if limit > 0 {
		p.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		p.Set("offset", strconv.Itoa(offset))
	}

	var page map[string]any
	if err := c.GetJSON(ctx, path, p, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// ListAll walks a paginated endpoint and returns all objects, handling
// both Tastypie (objects / meta.next) and DRF (results / next) shapes.
// maxResults of zero means no cap.
func (c *Client) ListAll(ctx context.Context, path string, params url.Values, pageSize, maxResults int) ([]map[string]any, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	var all []map[string]any
	offset := 0
	for {
		page, err := c.List(ctx, path, params, pageSize, offset)
		if err != nil {
			return nil, err
		}

		objects, hasNext := pageObjects(page)
		if len(objects) == 0 {
			break
		}
		all = append(all, objects...)

		if maxResults > 0 && len(all) >= maxResults {
			return all[:maxResults], nil
		}
		if !hasNext {
			break
		}
		offset += pageSize
	}
	return all, nil
}

// pageObjects extracts one page's objects and whether another page exists.
func pageObjects(page map[string]any) ([]map[string]any, bool) {
	var raw []any
	var hasNext bool

	switch {
	case page["objects"] != nil:
		raw, _ = page["objects"].([]any)
		if meta, ok := page["meta"].(map[string]any); ok {
			hasNext = meta["next"] != nil && meta["next"] != ""
		}
	case page["results"] != nil:
		raw, _ = page["results"].([]any)
		hasNext = page["next"] != nil && page["next"] != ""
	default:
		return nil, false
	}

	objects := make([]map[string]any, 0, len(raw))
	for _, o := range raw {
		if m, ok := o.(map[string]any); ok {
			objects = append(objects, m)
		}
	}
	return objects, hasNext
}

// AppDetail fetches app metadata.
func (c *Client) AppDetail(ctx context.Context, appID string) (*App, error) {
	var app App
	if err := c.GetJSON(ctx, fmt.Sprintf(AppDetail, appID), nil, &app); err != nil {
		return nil, err
	}
	if app.ID == "" {
		app.ID = appID
	}
	return &app, nil
}

// FetchAppCCZ downloads the app package, preferring the latest release,
// then the latest build, then the latest save, mirroring how HQ
// publishes packages at different lifecycle stages.
func (c *Client) FetchAppCCZ(ctx context.Context, appID string) ([]byte, *App, error) {
	app, err := c.AppDetail(ctx, appID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch app info: %w", err)
	}

	for _, latest := range []string{"release", "build", "save"} {
		params := url.Values{}
		params.Set("app_id", appID)
		params.Set("latest", latest)

		status, body, err := c.get(ctx, AppCCZDownload, params)
		if err != nil {
			return nil, nil, fmt.Errorf("download app package: %w", err)
		}
		if status == http.StatusNotFound {
			continue
		}
		if status < 200 || status >= 300 {
			return nil, nil, &StatusError{Code: status, Path: AppCCZDownload}
		}
		return body, app, nil
	}
	return nil, nil, fmt.Errorf("no package published for app %s (tried release, build, save)", appID)
}

// LookupUser resolves a mobile worker by username.
func (c *Client) LookupUser(ctx context.Context, username string) (*User, error) {
	params := url.Values{}
	params.Set("username", username)

	page, err := c.List(ctx, UserList, params, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	objects, _ := pageObjects(page)
	if len(objects) == 0 {
		return nil, &UserNotFoundError{Username: username, Domain: c.domain}
	}

	user := &User{Username: username}
	if id, ok := objects[0]["id"].(string); ok {
		user.ID = id
	}
	if full, ok := objects[0]["username"].(string); ok && full != "" {
		user.Username = full
	}
	return user, nil
}

// FetchRestore downloads a device-state restore for the given mobile
// worker via the login-as mechanism.
func (c *Client) FetchRestore(ctx context.Context, asUsername string) ([]byte, error) {
	params := url.Values{}
	params.Set("version", "2.0")
	params.Set("as", asUsername)

	status, body, err := c.get(ctx, Restore, params)
	if err != nil {
		return nil, fmt.Errorf("download restore: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Code: status, Path: Restore}
	}
	return body, nil
}

// GetIdentity returns the authenticated user's identity document.
func (c *Client) GetIdentity(ctx context.Context) (map[string]any, error) {
	var identity map[string]any
	if err := c.GetJSON(ctx, Identity, nil, &identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// ListDomains returns the domains the authenticated user can access.
// The endpoint has served both a bare array and a paginated envelope
// across HQ versions; both shapes are handled.
func (c *Client) ListDomains(ctx context.Context) ([]map[string]any, error) {
	var raw any
	if err := c.GetJSON(ctx, UserDomains, nil, &raw); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []any:
		objects := make([]map[string]any, 0, len(v))
		for _, o := range v {
			if m, ok := o.(map[string]any); ok {
				objects = append(objects, m)
			}
		}
		return objects, nil
	case map[string]any:
		objects, _ := pageObjects(v)
		return objects, nil
	default:
		return nil, nil
	}
}

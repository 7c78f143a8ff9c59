// Package pngx is a client for the Paperless-ngx style document management
// API: tags (hierarchical, with matching rules), document types, and the
// document lifecycle (upload, search, patch, delete, trash).
//
// The client keeps run-scoped by-name caches for tags and document types to
// avoid redundant lookups. The caches live for one process invocation at most
// and are cleared whenever a tag is mutated, so a renamed tag can never serve
// a stale identity.
package pngx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/caostack/pngx-cao/internal/tagid"
)

// Options configures a Client. BaseURL is required, as is either Token or
// Username/Password.
type Options struct {
	BaseURL  string
	Token    string
	Username string
	Password string

	// GlobalRead creates items without an owner so every user can see them,
	// and enables the post-upload permission pass.
	GlobalRead bool

	// APIVersion is sent in the Accept header. Defaults to 9.
	APIVersion int

	// SkipSSLVerify disables TLS certificate verification. Insecure.
	SkipSSLVerify bool

	// HTTPClient overrides the default client (20s timeout). Mainly for tests.
	HTTPClient *http.Client

	// PermissionRetryDelay and PermissionMaxAttempts bound the polling loop
	// that waits for asynchronously consumed uploads. Defaults: 10s, 5.
	PermissionRetryDelay  time.Duration
	PermissionMaxAttempts int
}

// Client talks to one document service instance. It is safe for concurrent
// use; the internal caches are mutex-guarded.
type Client struct {
	baseURL    string
	token      string
	username   string
	password   string
	globalRead bool
	apiVersion int
	httpClient *http.Client

	permissionRetryDelay  time.Duration
	permissionMaxAttempts int

	mu           sync.Mutex
	tagCache     map[string]int
	docTypeCache map[string]int
}

// NewClient validates the options and returns a configured client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if opts.Token == "" && (opts.Username == "" || opts.Password == "") {
		return nil, fmt.Errorf("either token or username/password must be provided")
	}

	apiVersion := opts.APIVersion
	if apiVersion == 0 {
		apiVersion = 9
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.SkipSSLVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit opt-in
		httpClient = &http.Client{Timeout: httpClient.Timeout, Transport: transport}
	}

	retryDelay := opts.PermissionRetryDelay
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}
	maxAttempts := opts.PermissionMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &Client{
		baseURL:               baseURL,
		token:                 opts.Token,
		username:              opts.Username,
		password:              opts.Password,
		globalRead:            opts.GlobalRead,
		apiVersion:            apiVersion,
		httpClient:            httpClient,
		permissionRetryDelay:  retryDelay,
		permissionMaxAttempts: maxAttempts,
		tagCache:              make(map[string]int),
		docTypeCache:          make(map[string]int),
	}, nil
}

// BaseURL returns the configured service URL, for display.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GlobalRead reports whether items are created without an owner.
func (c *Client) GlobalRead() bool {
	return c.globalRead
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/api/" + strings.TrimLeft(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string, out any) error {
	u := c.endpoint(path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", fmt.Sprintf("application/json; version=%d", c.apiVersion))
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	} else {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", out)
}

func (c *Client) patchJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, nil, bytes.NewReader(data), "application/json", out)
}

// Ping issues a minimal tag listing to verify connectivity and credentials.
func (c *Client) Ping(ctx context.Context) (int, error) {
	var page tagPage
	params := url.Values{"page_size": {"1"}}
	if err := c.get(ctx, "tags/", params, &page); err != nil {
		return 0, err
	}
	return page.Count, nil
}

// GetTagByID retrieves a tag by ID. Returns (nil, nil) when no such tag
// exists.
func (c *Client) GetTagByID(ctx context.Context, id int) (*Tag, error) {
	var tag Tag
	if err := c.get(ctx, fmt.Sprintf("tags/%d/", id), nil, &tag); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// GetTagByName searches for a tag by exact, case-insensitive name. When
// annotationAware is true and no exact match exists, it falls back to
// comparing annotation-stripped names across the full tag list, so a request
// for "HYPER BASALISK" resolves against a stored "HYPER BASALISK (inactive)".
// Returns (nil, nil) when no tag matches.
//
// annotationAware must only be used for actor tags. Countries, industries,
// motivations and group parents can legitimately contain parentheses.
func (c *Client) GetTagByName(ctx context.Context, name string, annotationAware bool) (*Tag, error) {
	var page tagPage
	params := url.Values{"name__iexact": {name}}
	if err := c.get(ctx, "tags/", params, &page); err != nil {
		return nil, err
	}
	if page.Count > 0 {
		return &page.Results[0], nil
	}

	if !annotationAware {
		return nil, nil
	}

	var all tagPage
	params = url.Values{"page_size": {"1000"}}
	if err := c.get(ctx, "tags/", params, &all); err != nil {
		return nil, err
	}

	names := make([]string, len(all.Results))
	for i, t := range all.Results {
		names[i] = t.Name
	}
	if i := tagid.MatchIndex(name, names, true); i >= 0 {
		return &all.Results[i], nil
	}
	return nil, nil
}

// ListAllTags pages through every tag on the server and returns an index of
// upper-cased name to tag record. The index is a point-in-time snapshot; it
// is meant to be built once per synchronization run, not kept across runs.
func (c *Client) ListAllTags(ctx context.Context) (map[string]Tag, error) {
	index := make(map[string]Tag)

	for page := 1; ; page++ {
		var result tagPage
		params := url.Values{
			"page":      {fmt.Sprintf("%d", page)},
			"page_size": {"100"},
		}
		if err := c.get(ctx, "tags/", params, &result); err != nil {
			return nil, fmt.Errorf("failed to fetch tags page %d: %w", page, err)
		}

		for _, tag := range result.Results {
			index[strings.ToUpper(tag.Name)] = tag
		}

		if result.Next == nil || *result.Next == "" {
			break
		}
	}

	return index, nil
}

// CreateTag creates a new tag from the given options.
func (c *Client) CreateTag(ctx context.Context, opts TagOptions) (*Tag, error) {
	color := opts.Color
	if color == "" {
		color = "#3a86ff"
	}

	payload := map[string]any{
		"name":               opts.Name,
		"color":              color,
		"is_inbox_tag":       false,
		"matching_algorithm": opts.MatchingAlgorithm,
	}
	if c.globalRead {
		payload["owner"] = nil
	}
	if opts.Parent != nil {
		payload["parent"] = *opts.Parent
	}
	if opts.Match != "" {
		payload["match"] = opts.Match
	}

	var tag Tag
	if err := c.postJSON(ctx, "tags/", payload, &tag); err != nil {
		return nil, fmt.Errorf("failed to create tag %q: %w", opts.Name, err)
	}
	return &tag, nil
}

// UpdateTag patches a tag's fields. The by-name tag cache is cleared because
// the name may have changed; serving a stale identity is worse than a few
// extra lookups.
func (c *Client) UpdateTag(ctx context.Context, id int, fields map[string]any) (*Tag, error) {
	var tag Tag
	if err := c.patchJSON(ctx, fmt.Sprintf("tags/%d/", id), fields, &tag); err != nil {
		return nil, fmt.Errorf("failed to update tag %d: %w", id, err)
	}

	c.mu.Lock()
	c.tagCache = make(map[string]int)
	c.mu.Unlock()

	return &tag, nil
}

// GetOrCreateTag returns the ID of the named tag, creating it when absent.
// Lookups for actor tags are annotation-aware; everything else requires an
// exact name match. Results are cached by requested name for the lifetime of
// the client.
func (c *Client) GetOrCreateTag(ctx context.Context, name string, opts GetOrCreateOptions) (int, error) {
	c.mu.Lock()
	if id, ok := c.tagCache[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	tag, err := c.GetTagByName(ctx, name, opts.Actor)
	if err != nil {
		return 0, err
	}
	if tag != nil {
		c.mu.Lock()
		c.tagCache[name] = tag.ID
		c.mu.Unlock()
		slog.Debug("found existing tag", "name", name, "id", tag.ID)
		return tag.ID, nil
	}

	color := opts.Color
	if color == "" {
		color = DefaultTagColor
	}

	create := TagOptions{
		Name:              name,
		Color:             color,
		MatchingAlgorithm: MatchAll,
		Parent:            opts.ParentID,
	}
	if opts.Actor {
		create.MatchingAlgorithm = MatchLiteral
		create.Match = name
	}

	created, err := c.CreateTag(ctx, create)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.tagCache[name] = created.ID
	c.mu.Unlock()
	slog.Debug("created tag", "name", name, "id", created.ID)
	return created.ID, nil
}

// GetOrCreateDocumentType returns the ID of the named document type, creating
// it when absent. Matching is case-insensitive. Results are cached by name.
func (c *Client) GetOrCreateDocumentType(ctx context.Context, name string) (int, error) {
	c.mu.Lock()
	if id, ok := c.docTypeCache[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	var page documentTypePage
	if err := c.get(ctx, "document_types/", nil, &page); err != nil {
		return 0, err
	}
	for _, dt := range page.Results {
		if strings.EqualFold(dt.Name, name) {
			c.mu.Lock()
			c.docTypeCache[name] = dt.ID
			c.mu.Unlock()
			return dt.ID, nil
		}
	}

	payload := map[string]any{"name": name}
	if c.globalRead {
		payload["owner"] = nil
	}

	var created DocumentType
	if err := c.postJSON(ctx, "document_types/", payload, &created); err != nil {
		return 0, fmt.Errorf("failed to create document type %q: %w", name, err)
	}

	c.mu.Lock()
	c.docTypeCache[name] = created.ID
	c.mu.Unlock()
	slog.Debug("created document type", "name", name, "id", created.ID)
	return created.ID, nil
}

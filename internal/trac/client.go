package trac

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultSignature is the fixed marker appended to every comment this tool
// writes, on either side, so synchronization edits are recognizable in page
// histories.
const DefaultSignature = "(Updated by wikisync)"

// Form fields never submitted back from a scraped edit form: they are the
// form's action buttons, and posting one would trigger that action instead
// of a save.
var pushExcludedFields = map[string]bool{
	"cancel":  true,
	"preview": true,
	"diff":    true,
	"merge":   true,
}

// Client is a session-authenticated scraping client for one remote Trac
// wiki. It owns exactly one cookie jar and one connection pool for its
// lifetime; Close persists the session on every exit path so later
// invocations skip re-authentication.
//
// No call retries automatically, with one exception: a 401 response forces
// one re-authentication and one replay of the original request. A second
// 401 is an authentication error, not a loop.
type Client struct {
	base       *url.URL
	username   string
	password   string
	httpClient *http.Client
	session    *Session
	logger     *slog.Logger
}

// NewClient opens (or restores) a session for baseURL and username from the
// registry and returns a ready client. The trailing slash of baseURL is
// immaterial.
func NewClient(
	baseURL, username, password string,
	registry *SessionRegistry,
	httpClient *http.Client,
	logger *slog.Logger,
) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: remote url not configured", ErrAuthFailed)
	}

	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("trac: parsing base url %q: %w", baseURL, err)
	}

	session, err := registry.Open(base, username)
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	httpClient.Jar = session.Jar()

	return &Client{
		base:       base,
		username:   username,
		password:   password,
		httpClient: httpClient,
		session:    session,
		logger:     logger,
	}, nil
}

// Close persists the session. Call it on every exit path, success or
// failure.
func (c *Client) Close() error {
	return c.session.Save()
}

// pagePath returns the request path for a wiki page, escaping each segment
// but preserving hierarchy separators.
func pagePath(name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return "/wiki/" + strings.Join(segments, "/")
}

// wikiPrefix is the path prefix identifying page links during scraping.
func (c *Client) wikiPrefix() string {
	return c.base.Path + "/wiki/"
}

// do executes one request against the remote, replaying it exactly once
// after a 401 forces re-authentication. The caller owns the response body
// on success.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) (*http.Response, error) {
	resp, err := c.doOnce(ctx, method, path, query, form)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		if err := c.login(ctx); err != nil {
			return nil, err
		}

		resp, err = c.doOnce(ctx, method, path, query, form)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s still unauthorized after login", ErrAuthFailed, path)
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()

		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        c.base.String() + path,
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	return resp, nil
}

// doOnce executes a single HTTP request (no retry). Form values are encoded
// fresh on every call so a replay never reuses a consumed body.
func (c *Client) doOnce(ctx context.Context, method, path string, query, form url.Values) (*http.Response, error) {
	u := c.base.String() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("trac: creating request: %w", err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.Debug("remote request",
		slog.String("method", method), slog.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trac: %s %s: %w", method, path, err)
	}

	return resp, nil
}

// login authenticates by visiting the login path with HTTP basic
// credentials; the remote answers with a session cookie the jar captures.
// The refreshed session is persisted immediately.
func (c *Client) login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/login", nil)
	if err != nil {
		return fmt.Errorf("trac: creating login request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)

	c.logger.Info("authenticating", slog.String("host", c.base.Host))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: login returned HTTP %d", ErrAuthFailed, resp.StatusCode)
	}

	if err := c.session.Save(); err != nil {
		return err
	}

	return nil
}

// RecentChanges fetches the RecentChanges index and returns the complete
// remote snapshot of page names and their highest versions. This is the
// canonical input for a remote reconciliation batch.
func (c *Client) RecentChanges(ctx context.Context) ([]Fact, error) {
	resp, err := c.do(ctx, http.MethodGet, "/wiki/RecentChanges", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	facts, err := ParseVersionLinks(resp.Body, AnchorID("wikipage"), c.wikiPrefix())
	if err != nil {
		return nil, fmt.Errorf("trac: RecentChanges: %w", err)
	}

	return facts, nil
}

// TimelineDocuments fetches the wiki-filtered timeline and returns the page
// facts it lists. Unlike RecentChanges this view may omit pages without
// recent activity, so it feeds single-record refreshes, never a
// full-replace batch.
func (c *Client) TimelineDocuments(ctx context.Context) ([]Fact, error) {
	query := url.Values{"wiki": {"on"}}

	resp, err := c.do(ctx, http.MethodGet, "/timeline", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	facts, err := ParseVersionLinks(resp.Body, AnchorID("content"), c.wikiPrefix())
	if err != nil {
		return nil, fmt.Errorf("trac: timeline: %w", err)
	}

	return facts, nil
}

// PageVersion fetches a single page's view and extracts its current version
// from the "last modified" marker region.
func (c *Client) PageVersion(ctx context.Context, name string) (Fact, error) {
	resp, err := c.do(ctx, http.MethodGet, pagePath(name), nil, nil)
	if err != nil {
		return Fact{}, err
	}
	defer resp.Body.Close()

	facts, err := ParseVersionLinks(resp.Body, AnchorClass("trac-modifiedby"), c.wikiPrefix())
	if err != nil {
		return Fact{}, fmt.Errorf("trac: page %s: %w", name, err)
	}

	if len(facts) != 1 {
		return Fact{}, fmt.Errorf("trac: page %s: %w", name, &ScrapeError{Missing: "version link"})
	}

	return facts[0], nil
}

// Pull fetches the raw-text rendering of a specific page version. An empty
// page yields an empty string; a missing page yields ErrNotFound; the two
// are never conflated.
func (c *Client) Pull(ctx context.Context, name string, version int) (string, error) {
	query := url.Values{"format": {"txt"}}
	if version > 0 {
		query.Set("version", strconv.Itoa(version))
	}

	resp, err := c.do(ctx, http.MethodGet, pagePath(name), query, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("trac: reading page %s: %w", name, err)
	}

	return string(text), nil
}

// Push submits new content for a page through its edit form. Every scraped
// form field is preserved (anti-forgery tokens included), with text and
// comment overwritten; the comment gains the fixed signature marker. The
// new remote version is extracted from the response page. If none can be
// extracted the push failed hard, and it is never resubmitted, because
// replaying an edit form is not idempotent.
func (c *Client) Push(ctx context.Context, name, text, comment string) (Fact, error) {
	editQuery := url.Values{"action": {"edit"}}

	editResp, err := c.do(ctx, http.MethodGet, pagePath(name), editQuery, nil)
	if err != nil {
		return Fact{}, err
	}

	fields, err := ParseFormFields(editResp.Body, "edit", pushExcludedFields)
	editResp.Body.Close()

	if err != nil {
		return Fact{}, fmt.Errorf("trac: edit form for %s: %w", name, err)
	}

	fields.Set("text", text)
	fields.Set("comment", formatComment(comment))

	postResp, err := c.do(ctx, http.MethodPost, pagePath(name), nil, fields)
	if err != nil {
		return Fact{}, err
	}
	defer postResp.Body.Close()

	facts, err := ParseVersionLinks(postResp.Body, AnchorClass("trac-modifiedby"), c.wikiPrefix())
	if err != nil {
		return Fact{}, fmt.Errorf("trac: push response for %s: %w", name, err)
	}

	if len(facts) == 0 {
		return Fact{}, fmt.Errorf("trac: push response for %s: %w", name, &ScrapeError{Missing: "version link"})
	}

	c.logger.Info("pushed page",
		slog.String("name", name), slog.Int("remote_version", facts[0].Version))

	return facts[0], nil
}

// Probe discards any cached session, authenticates from scratch, and
// fetches the wiki index. Backs the login command's credential check.
func (c *Client) Probe(ctx context.Context) error {
	if err := c.session.Discard(); err != nil {
		return err
	}

	// The jar was replaced; rearm the HTTP client with it.
	c.httpClient.Jar = c.session.Jar()

	if err := c.login(ctx); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodGet, "/wiki", nil, nil)
	if err != nil {
		return err
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	resp.Body.Close()

	return nil
}

// formatComment appends the signature marker to an operator comment.
func formatComment(comment string) string {
	if comment == "" {
		return DefaultSignature
	}

	return comment + "\n" + DefaultSignature
}

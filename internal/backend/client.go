package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/five82/chatdesk/internal/chat"
)

// ConversationFetcher is the read side the poller depends on. It is
// implemented by *Client and by the demo source.
type ConversationFetcher interface {
	FetchConversations(ctx context.Context) ([]chat.Conversation, error)
}

// Ensure Client implements ConversationFetcher at compile time.
var _ ConversationFetcher = (*Client)(nil)

// ErrActiveProfile is returned when deleting the active environment profile.
var ErrActiveProfile = errors.New("cannot delete the active profile")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
}

// Client talks to the chatbot backend HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	loc       *time.Location
}

const (
	defaultAPIURL    = "127.0.0.1:8000"
	defaultUserAgent = "chatdesk/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// Options tunes a Client. Zero values select defaults.
type Options struct {
	Timeout time.Duration
	// Location interprets naive backend timestamps.
	Location *time.Location
}

// NewClient builds a Client for the backend at apiURL (host:port or URL).
func NewClient(apiURL string, opts Options) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		loc:       loc,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchConversations retrieves the full conversation list. Entries that
// cannot be converted fail the whole fetch with ErrMalformedPayload.
func (c *Client) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload ConversationListResponse
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/facebook/conversations"}, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]chat.Conversation, 0, len(payload.Conversations))
	for _, dto := range payload.Conversations {
		conv, err := dto.ToConversation(c.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

// SendExternal delivers an operator message to an external-platform user.
func (c *Client) SendExternal(ctx context.Context, recipientID, message string) error {
	body := SendRequest{RecipientID: recipientID, Message: message}
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/facebook/send"}, body, nil)
}

// Query asks the assistant to answer a question in the given session.
func (c *Client) Query(ctx context.Context, q QueryRequest) (string, error) {
	if strings.TrimSpace(q.SessionID) == "" {
		return "", fmt.Errorf("session id required")
	}
	values := url.Values{}
	values.Set("session_id", q.SessionID)
	values.Set("question", q.Question)
	if q.Emotion != "" {
		values.Set("emotional", q.Emotion)
	}
	rel := &url.URL{Path: "/api/query", RawQuery: values.Encode()}
	var payload QueryResponse
	if err := c.doJSON(ctx, http.MethodPost, rel, nil, &payload); err != nil {
		return "", err
	}
	return payload.Response, nil
}

// StartSession binds a new assistant session to a knowledge base.
func (c *Client) StartSession(ctx context.Context, target Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	return c.postSession(ctx, "/api/start_session", target.fields(), nil)
}

// Upload sends documents to be embedded into target and returns the session
// the backend opened for them.
func (c *Client) Upload(ctx context.Context, target Target, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no files to upload")
	}
	if err := target.Validate(); err != nil {
		return "", err
	}
	return c.postSession(ctx, "/api/upload", target.fields(), paths)
}

// ToggleAutomation switches the assistant on or off on the backend.
func (c *Client) ToggleAutomation(ctx context.Context, enable bool) error {
	body := map[string]bool{"enable": enable}
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/toggle_switch"}, body, nil)
}

// TestMongo checks a MongoDB URI and returns the databases it can see.
func (c *Client) TestMongo(ctx context.Context, uri string) ([]string, error) {
	var payload struct {
		Databases []string `json:"databases"`
	}
	body := map[string]string{"uri": uri}
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/mongodb/test-connection"}, body, &payload); err != nil {
		return nil, err
	}
	return payload.Databases, nil
}

// MongoDatabases lists databases reachable through uri.
func (c *Client) MongoDatabases(ctx context.Context, uri string) ([]string, error) {
	var payload struct {
		Databases []string `json:"databases"`
	}
	body := map[string]string{"uri": uri}
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/mongodb/databases"}, body, &payload); err != nil {
		return nil, err
	}
	return payload.Databases, nil
}

// MongoCollections lists the collections of database.
func (c *Client) MongoCollections(ctx context.Context, uri, database string) ([]string, error) {
	var payload struct {
		Collections []string `json:"collections"`
	}
	body := map[string]string{"uri": uri, "database": database}
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/mongodb/collections"}, body, &payload); err != nil {
		return nil, err
	}
	return payload.Collections, nil
}

// PineconeIndexes lists the indexes visible to the given credentials.
func (c *Client) PineconeIndexes(ctx context.Context, apiKey, environment string) ([]PineconeIndex, error) {
	var payload struct {
		Indexes []PineconeIndex `json:"indexes"`
	}
	body := map[string]string{"api_key": apiKey, "environment": environment}
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/pinecone/indexes"}, body, &payload); err != nil {
		return nil, err
	}
	return payload.Indexes, nil
}

const profilesPath = "/api/environment/configurations"

// profilePath builds the profile endpoint for id. The id is one escaped
// segment, so ids holding "/" or "?" cannot reach another route.
func profilePath(id string, suffix ...string) *url.URL {
	raw := append([]string{profilesPath, url.PathEscape(id)}, suffix...)
	plain := append([]string{profilesPath, id}, suffix...)
	return &url.URL{Path: strings.Join(plain, "/"), RawPath: strings.Join(raw, "/")}
}

// ListProfiles returns every stored environment profile.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, &url.URL{Path: profilesPath}, nil, &raw); err != nil {
		return nil, err
	}
	return decodeProfiles(raw)
}

// decodeProfiles accepts a bare array or {"configurations": [...]}.
func decodeProfiles(raw json.RawMessage) ([]Profile, error) {
	raw = bytes.TrimSpace(raw)
	var list []Profile
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode profiles: %w: %w", ErrMalformedPayload, err)
		}
		return list, nil
	}
	var wrapped struct {
		Configurations []Profile `json:"configurations"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode profiles: %w: %w", ErrMalformedPayload, err)
	}
	return wrapped.Configurations, nil
}

// GetProfile returns a single profile.
func (c *Client) GetProfile(ctx context.Context, id string) (Profile, error) {
	var payload Profile
	if err := c.doJSON(ctx, http.MethodGet, profilePath(id), nil, &payload); err != nil {
		return Profile{}, err
	}
	return payload, nil
}

// CreateProfile stores a new, inactive profile.
func (c *Client) CreateProfile(ctx context.Context, in ProfileInput) (Profile, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Profile{}, fmt.Errorf("profile name required")
	}
	var payload Profile
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: profilesPath}, in, &payload); err != nil {
		return Profile{}, err
	}
	return payload, nil
}

// UpdateProfile replaces the fields set in in.
func (c *Client) UpdateProfile(ctx context.Context, id string, in ProfileInput) (Profile, error) {
	var payload Profile
	if err := c.doJSON(ctx, http.MethodPut, profilePath(id), in, &payload); err != nil {
		return Profile{}, err
	}
	return payload, nil
}

// ActivateProfile makes id the active profile; the backend deactivates the
// others and rewrites its .env.
func (c *Client) ActivateProfile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, profilePath(id, "activate"), nil, nil)
}

// DeleteProfile removes an inactive profile.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	p, err := c.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if p.IsActive {
		return fmt.Errorf("profile %s: %w", p.Name, ErrActiveProfile)
	}
	return c.doJSON(ctx, http.MethodDelete, profilePath(id), nil, nil)
}

func (c *Client) postSession(ctx context.Context, path string, fields map[string]string, files []string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, p := range files {
		if err := attachFile(mw, p); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	rel := &url.URL{Path: path}
	req, err := c.newRequest(ctx, http.MethodPost, rel, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var payload SessionResponse
	if err := c.send(req, rel, &payload); err != nil {
		return "", err
	}
	if payload.Error != "" {
		return "", &APIError{Path: rel.String(), Status: http.StatusOK, Message: payload.Error}
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("api %s returned no session_id", rel.String())
	}
	return payload.SessionID, nil
}

func attachFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, rel, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, rel, dest)
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, body io.Reader) (*http.Request, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) send(req *http.Request, rel *url.URL, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Path:    rel.Path,
			Status:  resp.StatusCode,
			Message: errorMessage(io.LimitReader(resp.Body, maxErrorBody)),
		}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w: %w", ErrMalformedPayload, err)
	}
	return nil
}

// errorMessage extracts {"error": ...} or FastAPI's {"detail": ...}.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	var payload struct {
		Error  any `json:"error"`
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	for _, v := range []any{payload.Error, payload.Detail} {
		switch msg := v.(type) {
		case nil:
		case string:
			if msg != "" {
				return msg
			}
		default:
			encoded, _ := json.Marshal(msg)
			return string(encoded)
		}
	}
	return ""
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

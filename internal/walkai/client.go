package walkai

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
)

// Client talks to the walk:ai HTTP API. Credentials ride on every request
// through the cookie jar; the client holds no other session state.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIBase    = "http://127.0.0.1:8000"
	defaultUserAgent  = "stride/0.1"
	requestTimeout    = 10 * time.Second
	sessionCookieName = "session"
)

// NewClient builds a Client for the given API base URL.
func NewClient(apiBase string) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// SessionCookie returns the current session cookie value, if any.
func (c *Client) SessionCookie() (string, bool) {
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		if ck.Name == sessionCookieName {
			return ck.Value, ck.Value != ""
		}
	}
	return "", false
}

// SetSessionCookie seeds the jar with a previously persisted session cookie.
func (c *Client) SetSessionCookie(value string) {
	c.http.Jar.SetCookies(c.baseURL, []*http.Cookie{{
		Name:  sessionCookieName,
		Value: value,
		Path:  "/",
	}})
}

// ClearSession drops every cookie the client holds.
func (c *Client) ClearSession() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	c.http.Jar = jar
}

// FetchSession probes the authenticated session. A 401 surfaces as a
// TransportError with that status; the caller decides what "unauthenticated"
// means for its screen.
func (c *Client) FetchSession(ctx context.Context) (User, error) {
	body, err := c.do(ctx, http.MethodGet, &url.URL{Path: "/me"}, nil, 0)
	if err != nil {
		return User{}, err
	}
	var wire userWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return User{}, &SchemaError{Resource: "session", Reason: "unreadable body"}
	}
	user, err := wire.toUser()
	if err != nil {
		return User{}, &SchemaError{Resource: "session", Reason: err.Error()}
	}
	return user, nil
}

// Login authenticates with email and password. The session cookie is set by
// the backend and captured by the jar.
func (c *Client) Login(ctx context.Context, email, password string) error {
	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	_, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/login"}, payload, 0)
	return err
}

// Logout ends the backend session. Callers treat failures as best-effort
// and proceed to drop the session locally regardless.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/logout"}, nil, 0)
	return err
}

// FetchJobs retrieves the submitted jobs list.
func (c *Client) FetchJobs(ctx context.Context) ([]Job, error) {
	body, err := c.do(ctx, http.MethodGet, &url.URL{Path: "/jobs/"}, nil, 0)
	if err != nil {
		return nil, err
	}
	var wires []jobWire
	if err := json.Unmarshal(body, &wires); err != nil {
		return nil, &SchemaError{Resource: "jobs", Reason: "body is not a job array"}
	}
	jobs := make([]Job, 0, len(wires))
	for _, w := range wires {
		job, err := w.toJob()
		if err != nil {
			return nil, &SchemaError{Resource: "jobs", Reason: err.Error()}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// FetchJobImages retrieves the registry image catalog.
func (c *Client) FetchJobImages(ctx context.Context) ([]RegistryImage, error) {
	body, err := c.do(ctx, http.MethodGet, &url.URL{Path: "/jobs/images"}, nil, 0)
	if err != nil {
		return nil, err
	}
	var wires []registryImageWire
	if err := json.Unmarshal(body, &wires); err != nil {
		return nil, &SchemaError{Resource: "job images", Reason: "body is not an image array"}
	}
	images := make([]RegistryImage, 0, len(wires))
	for _, w := range wires {
		img, err := w.toRegistryImage()
		if err != nil {
			return nil, &SchemaError{Resource: "job images", Reason: err.Error()}
		}
		images = append(images, img)
	}
	return images, nil
}

// CreateJob submits a new job. SecretNames is omitted from the payload when
// empty.
func (c *Client) CreateJob(ctx context.Context, sub JobSubmission) error {
	payload := jobSubmissionWire{
		Image:       sub.Image,
		GPU:         sub.GPUProfile,
		Storage:     sub.StorageGB,
		SecretNames: sub.SecretNames,
	}
	_, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/jobs/"}, payload, 0)
	return err
}

// FetchSecrets retrieves the attachable secrets list.
func (c *Client) FetchSecrets(ctx context.Context) ([]SecretSummary, error) {
	body, err := c.do(ctx, http.MethodGet, &url.URL{Path: "/secrets/"}, nil, 0)
	if err != nil {
		return nil, err
	}
	var wires []secretSummaryWire
	if err := json.Unmarshal(body, &wires); err != nil {
		return nil, &SchemaError{Resource: "secrets", Reason: "body is not a secret array"}
	}
	secrets := make([]SecretSummary, 0, len(wires))
	for _, w := range wires {
		s, err := w.toSecretSummary()
		if err != nil {
			return nil, &SchemaError{Resource: "secrets", Reason: err.Error()}
		}
		secrets = append(secrets, s)
	}
	return secrets, nil
}

// FetchSecretDetail retrieves the key names configured on one secret.
func (c *Client) FetchSecretDetail(ctx context.Context, name string) (SecretDetail, error) {
	if strings.TrimSpace(name) == "" {
		return SecretDetail{}, fmt.Errorf("secret name required")
	}
	rel := &url.URL{Path: "/secrets/" + name}
	body, err := c.do(ctx, http.MethodGet, rel, nil, 0)
	if err != nil {
		return SecretDetail{}, err
	}
	var wire secretDetailWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return SecretDetail{}, &SchemaError{Resource: "secret detail", Reason: "unreadable body"}
	}
	detail, err := wire.toSecretDetail()
	if err != nil {
		return SecretDetail{}, &SchemaError{Resource: "secret detail", Reason: err.Error()}
	}
	return detail, nil
}

// VerifyInvitation checks an invitation token and returns the invited email.
// A 400 response surfaces as TransportError{Status: 400}; the invitation
// page reads that as "expired".
func (c *Client) VerifyInvitation(ctx context.Context, token string) (string, error) {
	payload := struct {
		Token string `json:"token"`
	}{Token: token}
	body, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/invitations/verify"}, payload, 0)
	if err != nil {
		return "", err
	}
	var wire struct {
		Email *string `json:"email"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || wire.Email == nil || *wire.Email == "" {
		return "", &SchemaError{Resource: "invitation verify", Reason: "missing email"}
	}
	return *wire.Email, nil
}

// AcceptInvitation completes registration for an invited user. The backend
// answers 201 on success; 409 means the account already exists and 400 means
// the token expired, both surfaced as TransportErrors for the page to map.
func (c *Client) AcceptInvitation(ctx context.Context, token, password string) error {
	payload := struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}{Token: token, Password: password}
	_, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/invitations/accept"}, payload, http.StatusCreated)
	return err
}

// StartGitHubOAuth asks the backend for the GitHub authorize URL. flow is
// "login" or "invitation"; invitationToken is required only for "invitation".
func (c *Client) StartGitHubOAuth(ctx context.Context, flow, invitationToken string) (string, error) {
	values := url.Values{}
	values.Set("flow", flow)
	if invitationToken != "" {
		values.Set("invitation_token", invitationToken)
	}
	rel := &url.URL{Path: "/oauth/github/start", RawQuery: values.Encode()}
	body, err := c.do(ctx, http.MethodGet, rel, nil, 0)
	if err != nil {
		return "", err
	}
	var wire struct {
		AuthorizeURL *string `json:"authorize_url"`
	}
	if err := json.Unmarshal(body, &wire); err != nil || wire.AuthorizeURL == nil || *wire.AuthorizeURL == "" {
		return "", &SchemaError{Resource: "github oauth start", Reason: "missing authorize_url"}
	}
	return *wire.AuthorizeURL, nil
}

// CreateInvitation invites a new user by email (admin only). The backend
// answers 201 on success.
func (c *Client) CreateInvitation(ctx context.Context, email string) error {
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	_, err := c.do(ctx, http.MethodPost, &url.URL{Path: "/admin/invitations"}, payload, http.StatusCreated)
	return err
}

// do performs one request and returns the raw success body. A non-nil
// payload is sent as JSON. When want is non-zero the response must carry
// exactly that status; otherwise any 2xx is a success. Failures are typed:
// network problems and non-success statuses become TransportErrors with the
// backend detail extracted, never raw transport errors.
func (c *Client) do(ctx context.Context, method string, rel *url.URL, payload any, want int) ([]byte, error) {
	reqURL := c.baseURL.ResolveReference(rel)

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Detail: err.Error(), cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Detail: "unreadable response body", cause: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if want != 0 {
		ok = resp.StatusCode == want
	}
	if !ok {
		fallback := fmt.Sprintf("request failed (status %d)", resp.StatusCode)
		return nil, &TransportError{Status: resp.StatusCode, Detail: decodeDetail(body, fallback)}
	}
	return body, nil
}

// decodeDetail extracts the backend's detail message, which is either a
// plain string or a list of {msg} validation objects.
func decodeDetail(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var detail string
	if json.Unmarshal(payload.Detail, &detail) == nil && strings.TrimSpace(detail) != "" {
		return detail
	}

	var items []struct {
		Msg *string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &items) == nil {
		var msgs []string
		for _, item := range items {
			if item.Msg != nil && *item.Msg != "" {
				msgs = append(msgs, *item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "\n")
		}
	}
	return fallback
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = defaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", apiBase, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

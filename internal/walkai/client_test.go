package walkai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFetchSession(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"id": 7, "email": "ops@walk.ai"}`)
	}))

	user, err := client.FetchSession(context.Background())
	if err != nil {
		t.Fatalf("FetchSession returned error: %v", err)
	}
	if user.ID != 7 || user.Email != "ops@walk.ai" {
		t.Fatalf("user = %+v, want id 7 email ops@walk.ai", user)
	}
}

func TestFetchSessionUnauthenticated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail": "Not authenticated"}`)
	}))

	_, err := client.FetchSession(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T (%v), want TransportError", err, err)
	}
	if te.Status != http.StatusUnauthorized || te.Detail != "Not authenticated" {
		t.Fatalf("TransportError = %+v, want 401 with backend detail", te)
	}
	if got := StatusOf(err); got != 401 {
		t.Fatalf("StatusOf = %d, want 401", got)
	}
}

func TestFetchSessionMalformedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 7}`)
	}))

	_, err := client.FetchSession(context.Background())
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T (%v), want SchemaError", err, err)
	}
	if se.Resource != "session" {
		t.Fatalf("SchemaError resource = %q, want session", se.Resource)
	}
}

func TestLoginCapturesSessionCookie(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var payload struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode login payload: %v", err)
			}
			if payload.Email != "ops@walk.ai" || payload.Password != "hunter22" {
				t.Errorf("login payload = %+v", payload)
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
		case "/me":
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "abc123" {
				t.Errorf("session cookie not sent: %v", err)
			}
			_, _ = io.WriteString(w, `{"id": 1, "email": "ops@walk.ai"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if err := client.Login(context.Background(), "ops@walk.ai", "hunter22"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	value, ok := client.SessionCookie()
	if !ok || value != "abc123" {
		t.Fatalf("SessionCookie = %q ok=%v, want abc123", value, ok)
	}
	if _, err := client.FetchSession(context.Background()); err != nil {
		t.Fatalf("FetchSession after login: %v", err)
	}

	client.ClearSession()
	if _, ok := client.SessionCookie(); ok {
		t.Fatal("SessionCookie still present after ClearSession")
	}
}

func TestSetSessionCookieRestoresSession(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "restored" {
			t.Errorf("restored cookie not sent: %v", err)
		}
		_, _ = io.WriteString(w, `{"id": 1, "email": "ops@walk.ai"}`)
	}))

	client.SetSessionCookie("restored")
	if _, err := client.FetchSession(context.Background()); err != nil {
		t.Fatalf("FetchSession: %v", err)
	}
}

func TestFetchJobs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/" {
			t.Errorf("path = %s, want /jobs/", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"id": 1, "image": "walkai/train:v3", "gpu_profile": "1g.10gb",
			 "submitted_at": "2026-08-29T10:00:00Z", "created_by_id": 7, "latest_run": null},
			{"id": 2, "image": "walkai/eval:v1", "gpu_profile": "2g.20gb",
			 "submitted_at": "2026-08-29T11:00:00Z", "created_by_id": 7,
			 "latest_run": {"id": 9, "status": "running", "k8s_job_name": "job-2",
			   "k8s_pod_name": "job-2-x5k", "started_at": "2026-08-29T11:01:00Z", "finished_at": null}}
		]`)
	}))

	jobs, err := client.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs returned error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].LatestRun != nil {
		t.Fatalf("jobs[0].LatestRun = %+v, want nil", jobs[0].LatestRun)
	}
	run := jobs[1].LatestRun
	if run == nil || run.Status != "running" || run.PodName != "job-2-x5k" {
		t.Fatalf("jobs[1].LatestRun = %+v", run)
	}
	if run.FinishedAt != "" || !run.ParsedFinishedAt().IsZero() {
		t.Fatalf("null finished_at parsed as %q", run.FinishedAt)
	}
}

func TestFetchJobsRejectsMissingFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 1, "image": "walkai/train:v3"}]`)
	}))

	_, err := client.FetchJobs(context.Background())
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T (%v), want SchemaError", err, err)
	}
}

func TestCreateJobPayload(t *testing.T) {
	var got map[string]json.RawMessage
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	sub := JobSubmission{
		Image:       "walkai/train:v3",
		GPUProfile:  "2g.20gb",
		StorageGB:   20,
		SecretNames: []string{"wandb", "hf-token"},
	}
	if err := client.CreateJob(context.Background(), sub); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}

	if string(got["image"]) != `"walkai/train:v3"` {
		t.Errorf("image = %s", got["image"])
	}
	if string(got["gpu"]) != `"2g.20gb"` {
		t.Errorf("gpu = %s", got["gpu"])
	}
	if string(got["storage"]) != "20" {
		t.Errorf("storage = %s", got["storage"])
	}
	if string(got["secret_names"]) != `["wandb","hf-token"]` {
		t.Errorf("secret_names = %s", got["secret_names"])
	}
}

func TestCreateJobOmitsEmptySecretNames(t *testing.T) {
	var got map[string]json.RawMessage
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))

	sub := JobSubmission{Image: "walkai/train:v3", GPUProfile: "1g.10gb", StorageGB: 10}
	if err := client.CreateJob(context.Background(), sub); err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	if _, present := got["secret_names"]; present {
		t.Fatalf("secret_names present in payload: %s", got["secret_names"])
	}
}

func TestCreateJobValidationDetailList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail": [{"msg": "image is required"}, {"msg": "storage must be positive"}]}`)
	}))

	err := client.CreateJob(context.Background(), JobSubmission{Image: "x", GPUProfile: "1g.10gb", StorageGB: 1})
	want := "image is required\nstorage must be positive"
	if got := DetailOf(err, ""); got != want {
		t.Fatalf("DetailOf = %q, want %q", got, want)
	}
}

func TestFetchSecretDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/secrets/wandb" {
			t.Errorf("path = %s, want /secrets/wandb", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"name": "wandb", "keys": ["WANDB_API_KEY"]}`)
	}))

	detail, err := client.FetchSecretDetail(context.Background(), "wandb")
	if err != nil {
		t.Fatalf("FetchSecretDetail returned error: %v", err)
	}
	if detail.Name != "wandb" || len(detail.Keys) != 1 || detail.Keys[0] != "WANDB_API_KEY" {
		t.Fatalf("detail = %+v", detail)
	}

	if _, err := client.FetchSecretDetail(context.Background(), "  "); err == nil {
		t.Fatal("blank secret name accepted")
	}
}

func TestAcceptInvitationRequiresCreated(t *testing.T) {
	status := http.StatusOK
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	// A bare 200 is not an acceptance; the backend contract is 201.
	err := client.AcceptInvitation(context.Background(), "tok", "password123")
	var te *TransportError
	if !errors.As(err, &te) || te.Status != http.StatusOK {
		t.Fatalf("error = %v, want TransportError with status 200", err)
	}

	status = http.StatusCreated
	if err := client.AcceptInvitation(context.Background(), "tok", "password123"); err != nil {
		t.Fatalf("AcceptInvitation with 201: %v", err)
	}
}

func TestCreateInvitationRequiresCreated(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/invitations" {
			t.Errorf("path = %s, want /admin/invitations", r.URL.Path)
		}
		var payload struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Email != "new@walk.ai" {
			t.Errorf("email = %q", payload.Email)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	if err := client.CreateInvitation(context.Background(), "new@walk.ai"); err != nil {
		t.Fatalf("CreateInvitation returned error: %v", err)
	}
}

func TestVerifyInvitation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Token string `json:"token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Token != "tok-1" {
			t.Errorf("token = %q", payload.Token)
		}
		_, _ = io.WriteString(w, `{"email": "invited@walk.ai"}`)
	}))

	email, err := client.VerifyInvitation(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("VerifyInvitation returned error: %v", err)
	}
	if email != "invited@walk.ai" {
		t.Fatalf("email = %q", email)
	}
}

func TestVerifyInvitationMissingEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))

	_, err := client.VerifyInvitation(context.Background(), "tok-1")
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T (%v), want SchemaError", err, err)
	}
}

func TestStartGitHubOAuth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/github/start" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("flow") != "invitation" || q.Get("invitation_token") != "tok-1" {
			t.Errorf("query = %v", q)
		}
		_, _ = io.WriteString(w, `{"authorize_url": "https://github.com/login/oauth/authorize?state=x"}`)
	}))

	url, err := client.StartGitHubOAuth(context.Background(), "invitation", "tok-1")
	if err != nil {
		t.Fatalf("StartGitHubOAuth returned error: %v", err)
	}
	if url != "https://github.com/login/oauth/authorize?state=x" {
		t.Fatalf("url = %q", url)
	}
}

func TestStartGitHubOAuthMissingURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"authorize_url": ""}`)
	}))

	_, err := client.StartGitHubOAuth(context.Background(), "login", "")
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T (%v), want SchemaError", err, err)
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	srv.Close()

	_, err = client.FetchJobs(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T (%v), want TransportError", err, err)
	}
	if te.Status != 0 {
		t.Fatalf("network failure status = %d, want 0", te.Status)
	}
}

func TestDecodeDetailFallsBack(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`not json`, "fallback"},
		{`{}`, "fallback"},
		{`{"detail": ""}`, "fallback"},
		{`{"detail": "boom"}`, "boom"},
		{`{"detail": [{"msg": "a"}, {"other": 1}, {"msg": "b"}]}`, "a\nb"},
		{`{"detail": []}`, "fallback"},
		{`{"detail": 42}`, "fallback"},
	}
	for _, tc := range cases {
		if got := decodeDetail([]byte(tc.body), "fallback"); got != tc.want {
			t.Errorf("decodeDetail(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestParseBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "http://127.0.0.1:8000"},
		{"localhost:9000", "http://localhost:9000"},
		{"https://api.walk.ai", "https://api.walk.ai"},
		{"https://api.walk.ai/v1?x=1#frag", "https://api.walk.ai"},
	}
	for _, tc := range cases {
		u, err := parseBaseURL(tc.in)
		if err != nil {
			t.Errorf("parseBaseURL(%q) error: %v", tc.in, err)
			continue
		}
		if u.String() != tc.want {
			t.Errorf("parseBaseURL(%q) = %q, want %q", tc.in, u.String(), tc.want)
		}
	}
}

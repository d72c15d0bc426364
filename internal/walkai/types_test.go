package walkai

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/walkai/stride/internal/query"
)

func TestJobWireValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"complete", `{"id":1,"image":"a","gpu_profile":"1g.10gb","submitted_at":"2026-08-29T10:00:00Z","created_by_id":7}`, true},
		{"missing id", `{"image":"a","gpu_profile":"1g.10gb","submitted_at":"x","created_by_id":7}`, false},
		{"missing image", `{"id":1,"gpu_profile":"1g.10gb","submitted_at":"x","created_by_id":7}`, false},
		{"missing created_by", `{"id":1,"image":"a","gpu_profile":"1g.10gb","submitted_at":"x"}`, false},
		{"run missing status", `{"id":1,"image":"a","gpu_profile":"1g.10gb","submitted_at":"x","created_by_id":7,"latest_run":{"id":2,"k8s_job_name":"j","k8s_pod_name":"p"}}`, false},
	}

	for _, tc := range cases {
		var wire jobWire
		if err := json.Unmarshal([]byte(tc.body), &wire); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		_, err := wire.toJob()
		if (err == nil) != tc.ok {
			t.Errorf("%s: toJob error = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestSecretDetailWireRequiresKeys(t *testing.T) {
	var wire secretDetailWire
	if err := json.Unmarshal([]byte(`{"name":"wandb"}`), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := wire.toSecretDetail(); err == nil {
		t.Fatal("missing keys accepted")
	}

	if err := json.Unmarshal([]byte(`{"name":"wandb","keys":[]}`), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	detail, err := wire.toSecretDetail()
	if err != nil {
		t.Fatalf("empty key list rejected: %v", err)
	}
	if len(detail.Keys) != 0 {
		t.Fatalf("keys = %v, want empty", detail.Keys)
	}
}

func TestParseTime(t *testing.T) {
	if ts := parseTime("2026-08-29T10:00:00Z"); ts.IsZero() {
		t.Fatal("RFC3339 timestamp not parsed")
	}
	if ts := parseTime("2026-08-29T10:00:00.123456Z"); ts.IsZero() {
		t.Fatal("RFC3339Nano timestamp not parsed")
	}
	if ts := parseTime(""); !ts.IsZero() {
		t.Fatalf("empty timestamp parsed as %v", ts)
	}
	if ts := parseTime("yesterday"); !ts.IsZero() {
		t.Fatalf("garbage timestamp parsed as %v", ts)
	}
}

func TestJobParsedSubmittedAt(t *testing.T) {
	job := Job{SubmittedAt: "2026-08-29T10:00:00Z"}
	want := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	if got := job.ParsedSubmittedAt(); !got.Equal(want) {
		t.Fatalf("ParsedSubmittedAt = %v, want %v", got, want)
	}
}

func TestErrorTag(t *testing.T) {
	if got := ErrorTag(&TransportError{Status: 500, Detail: "boom"}); got != query.TagTransport {
		t.Fatalf("transport tag = %v", got)
	}
	if got := ErrorTag(&SchemaError{Resource: "jobs", Reason: "bad"}); got != query.TagSchema {
		t.Fatalf("schema tag = %v", got)
	}
	if got := ErrorTag(errors.New("boom")); got != query.TagUnknown {
		t.Fatalf("unknown tag = %v", got)
	}
}

func TestDetailOf(t *testing.T) {
	err := &TransportError{Status: 409, Detail: "already exists"}
	if got := DetailOf(err, "fallback"); got != "already exists" {
		t.Fatalf("DetailOf = %q", got)
	}
	if got := DetailOf(errors.New("boom"), "fallback"); got != "fallback" {
		t.Fatalf("DetailOf fallback = %q", got)
	}
	if got := DetailOf(&TransportError{Status: 500, Detail: "  "}, "fallback"); got != "fallback" {
		t.Fatalf("DetailOf blank detail = %q", got)
	}
}

package proxy

import (
	"net/http"
	"net/url"
	"testing"
)

func TestRequestFactsExtractsFields(t *testing.T) {
	req := &http.Request{
		Method: "POST",
		URL:    &url.URL{Scheme: "http", Host: "target.test", Path: "/upload/file.php"},
		Header: http.Header{"X-Token": []string{"abc"}},
	}
	facts := requestFacts(req)

	if facts.Domain != "target.test" {
		t.Fatalf("unexpected domain: %s", facts.Domain)
	}
	if facts.Method != "POST" {
		t.Fatalf("unexpected method: %s", facts.Method)
	}
	if facts.Extension != ".php" {
		t.Fatalf("unexpected extension: %s", facts.Extension)
	}
	if facts.Protocol != "http" {
		t.Fatalf("unexpected protocol: %s", facts.Protocol)
	}
	if facts.Headers["X-Token"] != "abc" {
		t.Fatalf("unexpected header passthrough: %v", facts.Headers)
	}
}

func TestRequestFactsNilRequest(t *testing.T) {
	facts := requestFacts(nil)
	if facts.Domain != "" || facts.Method != "" {
		t.Fatalf("expected zero-value facts for nil request, got %+v", facts)
	}
}

func TestFlattenHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Custom", "value")

	flat := flattenHeader(h)
	if flat["Content-Type"] != "application/json" || flat["X-Custom"] != "value" {
		t.Fatalf("unexpected flattened headers: %v", flat)
	}
}

func TestTryBindDetectsOccupiedPort(t *testing.T) {
	p, err := New("127.0.0.1:0", false, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.TryBind(); err != nil {
		t.Fatalf("expected ephemeral port to be bindable: %v", err)
	}
}

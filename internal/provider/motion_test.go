package provider

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestMotionValidFormat(t *testing.T) {
	m := NewMotionProvider(nil)

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"well formed", "mot_abc123", true},
		{"surrounding whitespace", "  mot_abc123  ", true},
		{"wrong prefix", "bad_format_123", false},
		{"prefix only", "mot_", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.ValidFormat(tt.key); got != tt.valid {
				t.Errorf("ValidFormat(%q) = %v, want %v", tt.key, got, tt.valid)
			}
		})
	}
}

func TestMotionValidateKeyRejectsBadFormatWithoutNetworkCall(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	m := NewMotionProvider(server.Client(), WithMotionURL(server.URL))

	_, err := m.ValidateKey(t.Context(), "bad_format_123")
	if err == nil {
		t.Fatal("expected error for malformed key")
	}
	if !IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected zero outbound calls, got %d", calls.Load())
	}
}

func TestMotionValidateKeyReturnsWorkspace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/workspaces" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "mot_valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"workspaces":[{"id":"ws1","name":"Personal"}]}`))
	}))
	defer server.Close()

	m := NewMotionProvider(server.Client(), WithMotionURL(server.URL))

	workspace, err := m.ValidateKey(t.Context(), "mot_valid")
	if err != nil {
		t.Fatalf("ValidateKey returned error: %v", err)
	}
	if workspace != "Personal" {
		t.Fatalf("expected workspace Personal, got %q", workspace)
	}
}

func TestMotionValidateKeyMapsUnauthorizedToProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	m := NewMotionProvider(server.Client(), WithMotionURL(server.URL))

	_, err := m.ValidateKey(t.Context(), "mot_revoked")
	if err == nil {
		t.Fatal("expected error for rejected key")
	}
	if !IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestMotionValidateKeyLeavesTransportErrorsUntyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force connection failures

	m := NewMotionProvider(nil, WithMotionURL(server.URL))

	_, err := m.ValidateKey(t.Context(), "mot_whatever")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if IsProviderError(err) {
		t.Fatalf("expected transport failure to stay untyped, got %v", err)
	}
}

func TestMotionCustomKeyPrefix(t *testing.T) {
	m := NewMotionProvider(nil, WithMotionKeyPrefix("team_"))

	if m.ValidFormat("mot_abc") {
		t.Fatal("expected default prefix to be rejected")
	}
	if !m.ValidFormat("team_abc") {
		t.Fatal("expected custom prefix to be accepted")
	}
}

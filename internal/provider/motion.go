package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultMotionURL = "https://api.usemotion.com"

// DefaultMotionKeyPrefix is the prefix a well-formed Motion API key
// must carry. Keys failing the format check are rejected before any
// network call is made.
const DefaultMotionKeyPrefix = "mot_"

// MotionProvider validates Motion API keys. Motion has no redirect
// flow; the key itself is the credential and there are no refresh
// semantics.
type MotionProvider struct {
	client    *http.Client
	baseURL   string
	keyPrefix string
}

// MotionOption configures the MotionProvider during construction.
type MotionOption func(*MotionProvider)

// WithMotionURL overrides the base URL for Motion API requests.
func WithMotionURL(baseURL string) MotionOption {
	return func(m *MotionProvider) {
		if baseURL != "" {
			m.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithMotionKeyPrefix overrides the required API key prefix.
func WithMotionKeyPrefix(prefix string) MotionOption {
	return func(m *MotionProvider) {
		if prefix != "" {
			m.keyPrefix = prefix
		}
	}
}

// NewMotionProvider constructs a MotionProvider.
func NewMotionProvider(client *http.Client, opts ...MotionOption) *MotionProvider {
	if client == nil {
		client = &http.Client{Timeout: outboundTimeout}
	}

	m := &MotionProvider{
		client:    client,
		baseURL:   defaultMotionURL,
		keyPrefix: DefaultMotionKeyPrefix,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// ValidFormat reports whether the key passes the cheap format check.
func (m *MotionProvider) ValidFormat(key string) bool {
	key = strings.TrimSpace(key)
	return strings.HasPrefix(key, m.keyPrefix) && len(key) > len(m.keyPrefix)
}

type motionWorkspacesResponse struct {
	Workspaces []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"workspaces"`
}

// ValidateKey checks the key against the Motion API and returns the
// name of the first workspace it grants access to. A malformed key is
// rejected locally; a key Motion refuses yields a typed provider error.
func (m *MotionProvider) ValidateKey(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if !m.ValidFormat(key) {
		return "", &Error{Service: ServiceMotion, Code: "invalid_format", Message: "API key format is invalid"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/workspaces", nil)
	if err != nil {
		return "", fmt.Errorf("build motion request: %w", err)
	}
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("motion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parsing
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Service: ServiceMotion, Code: "invalid_key", Message: "Motion rejected the API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("motion request: rate limited")
	default:
		return "", &Error{Service: ServiceMotion, Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: "unexpected Motion API response"}
	}

	var payload motionWorkspacesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode motion response: %w", err)
	}

	if len(payload.Workspaces) == 0 {
		return "", nil
	}
	return payload.Workspaces[0].Name, nil
}

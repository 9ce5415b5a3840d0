package hosted

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-authclient"
)

// Config configures the hosted auth gateway client.
type Config struct {
	// BaseURL is the auth service root, e.g. https://<ref>.example.co/auth/v1.
	BaseURL string

	// APIKey is the publishable key sent with every request.
	APIKey string

	// ProjectRef namespaces the persisted session marker. Optional; derived
	// from BaseURL's host when empty.
	ProjectRef string

	// Store persists the session marker between page loads / process runs.
	Store authclient.SessionStore

	// HTTPClient overrides the default client (10s overall timeout).
	HTTPClient *http.Client

	// JWKSURL is the key set endpoint for access token validation. Optional;
	// defaults to BaseURL + "/.well-known/jwks.json".
	JWKSURL string

	// Issuer and Audience pin token validation. Optional.
	Issuer   string
	Audience string

	// Logger for request diagnostics.
	Logger authclient.Logger
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("hosted: base URL is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("hosted: API key is required")
	}
	return nil
}

func (c Config) storageKey() string {
	ref := c.ProjectRef
	if ref == "" {
		ref = projectRefFromURL(c.BaseURL)
	}
	return ref + authclient.DefaultMarkerSuffix
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/.well-known/jwks.json"
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func projectRefFromURL(base string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://")
	if i := strings.IndexAny(trimmed, "./"); i > 0 {
		return trimmed[:i]
	}
	if trimmed == "" {
		return "app"
	}
	return trimmed
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider resolves the current user from the CMS session endpoint.
type HTTPProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ProviderOption configures an HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient = hc
	}
}

// NewHTTPProvider creates a provider backed by GET {baseURL}/api/auth/me.
func NewHTTPProvider(baseURL, token string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentUser implements CurrentUserProvider. A 401 response is an
// anonymous session, not an error.
func (p *HTTPProvider) CurrentUser(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("auth endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	p.logger.Debug("current user resolved", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

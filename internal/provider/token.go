package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// tokenLeeway renews the token slightly before the provider expires it so
// in-flight requests never carry a token about to lapse.
const tokenLeeway = 30 * time.Second

// TokenProvider caches an OAuth2 client-credentials token. Concurrent callers
// hitting an expired cache share a single refresh via singleflight.
type TokenProvider struct {
	loginURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       *slog.Logger

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

func NewTokenProvider(loginURL, clientID, clientSecret string, timeout time.Duration, logger *slog.Logger) *TokenProvider {
	return &TokenProvider{
		loginURL:     loginURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// GetValidToken returns the cached token or refreshes it when expired.
func (t *TokenProvider) GetValidToken(ctx context.Context) (string, error) {
	t.mu.RLock()
	token, expiresAt := t.token, t.expiresAt
	t.mu.RUnlock()

	if token != "" && time.Now().Before(expiresAt.Add(-tokenLeeway)) {
		return token, nil
	}

	result, err, _ := t.group.Do("token", func() (interface{}, error) {
		return t.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token if it is still the one that failed, so
// the next caller forces a refresh. Used on 401 responses.
func (t *TokenProvider) Invalidate(failedToken string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == failedToken {
		t.token = ""
		t.expiresAt = time.Time{}
	}
}

func (t *TokenProvider) fetchToken(ctx context.Context) (string, error) {
	payload := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     t.clientID,
		"client_secret": t.clientSecret,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.loginURL+"/authorization", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("token endpoint returned error",
			"status", resp.StatusCode,
			"response", string(respBody))
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	expiresAt := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	t.mu.Lock()
	t.token = tokenResp.AccessToken
	t.expiresAt = expiresAt
	t.mu.Unlock()

	t.logger.Info("provider token refreshed", "expires_at", expiresAt)

	return tokenResp.AccessToken, nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/frahmantamala/pix-gateway/internal"
)

// Client talks to the Transfeera transfer API. Batch and transfer creation
// carry the caller's idempotency key as integration_id, so the provider
// rejects duplicates of an already-submitted transfer.
type Client struct {
	baseURL    string
	client     *http.Client
	tokens     *TokenProvider
	logger     *slog.Logger
	maxRetries uint64
}

func NewClient(cfg internal.ProviderConfig, logger *slog.Logger) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		tokens:     NewTokenProvider(cfg.LoginURL, cfg.ClientID, cfg.ClientSecret, cfg.RequestTimeout, logger),
		logger:     logger,
		maxRetries: uint64(maxRetries),
	}
}

// CreateBatch opens a transfer batch. Safe to retry: a duplicate batch holds
// no money movement.
func (c *Client) CreateBatch(ctx context.Context, name string) (*Batch, error) {
	var batch Batch

	operation := func() error {
		return c.doJSON(ctx, http.MethodPost, "/batch", CreateBatchRequest{Name: name}, &batch)
	}

	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	c.logger.Info("transfer batch created", "batch_id", batch.ID, "name", name)
	return &batch, nil
}

// CreateTransfer issues a single transfer inside a batch. Connection errors
// and provider 5xx responses are retried because integration_id makes the
// call idempotent on the provider side; a timeout is NOT retried and is
// surfaced as ErrOutcomeUnknown because the transfer may already exist.
func (c *Client) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var transfer Transfer
	path := fmt.Sprintf("/batch/%s/transfers", req.BatchID)

	operation := func() error {
		err := c.doJSON(ctx, http.MethodPost, path, req, &transfer)
		if err != nil && isTimeout(err) {
			// Unknown outcome: stop retrying and let the caller wait for the
			// webhook or reconcile by integration_id.
			return backoff.Permanent(ErrOutcomeUnknown)
		}
		return err
	}

	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		if errors.Is(err, ErrOutcomeUnknown) {
			c.logger.Warn("transfer submission outcome unknown",
				"integration_id", req.IntegrationID)
			return nil, ErrOutcomeUnknown
		}
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	c.logger.Info("transfer created",
		"transfer_id", transfer.ID,
		"status", transfer.Status,
		"integration_id", req.IntegrationID)

	return &transfer, nil
}

// GetTransfer fetches a transfer by provider id.
func (c *Client) GetTransfer(ctx context.Context, transferID string) (*Transfer, error) {
	var transfer Transfer
	path := fmt.Sprintf("/transfer/%s", url.PathEscape(transferID))

	operation := func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &transfer)
	}

	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &transfer, nil
}

// GetTransferByIntegrationID resolves a transfer by the idempotency key it
// was submitted with. Returns nil when the provider has no such transfer,
// which means a timed-out submission never landed.
func (c *Client) GetTransferByIntegrationID(ctx context.Context, integrationID string) (*Transfer, error) {
	var transfers []Transfer
	path := "/transfer?integration_id=" + url.QueryEscape(integrationID)

	operation := func() error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &transfers)
	}

	if err := backoff.Retry(operation, c.newBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("get transfer by integration id: %w", err)
	}

	if len(transfers) == 0 {
		return nil, nil
	}
	return &transfers[0], nil
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}

// doJSON performs one authenticated request, refreshing the token once on a
// 401 response. Provider 4xx responses are permanent; 5xx are retryable.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respTarget interface{}) error {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("acquire token: %w", err))
	}

	status, body, err := c.send(ctx, method, path, reqBody, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.tokens.Invalidate(token)
		token, err = c.tokens.GetValidToken(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("refresh token: %w", err))
		}
		status, body, err = c.send(ctx, method, path, reqBody, token)
		if err != nil {
			return err
		}
	}

	switch {
	case status >= 200 && status < 300:
		if respTarget != nil && len(body) > 0 {
			if err := json.Unmarshal(body, respTarget); err != nil {
				return backoff.Permanent(fmt.Errorf("unmarshal provider response: %w", err))
			}
		}
		return nil
	case status >= 500:
		c.logger.Warn("provider returned server error",
			"method", method, "path", path, "status", status)
		return fmt.Errorf("provider returned status %d", status)
	default:
		c.logger.Error("provider rejected request",
			"method", method, "path", path,
			"status", status, "response", string(body))
		return backoff.Permanent(fmt.Errorf("provider rejected request with status %d: %s", status, string(body)))
	}
}

func (c *Client) send(ctx context.Context, method, path string, reqBody interface{}, token string) (int, []byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, backoff.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read provider response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

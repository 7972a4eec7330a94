/**
 * @description
 * This package provides a client for the Dwolla REST API. It is the only code
 * in the service that speaks HTTP to the payment provider: it manages the
 * OAuth client-credentials token, builds authenticated requests, and maps
 * provider errors into a structured type callers can classify.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, sync, time: Standard Go libraries.
 *
 * @notes
 * - Resources are addressed by the URL Dwolla handed back at creation time.
 *   Methods accept either a full URL or a path relative to the API base.
 * - Create operations return the new resource's URL from the Location header;
 *   Dwolla does not echo the resource in the response body.
 * - The client never retries on its own. Transfer creation is safe to retry
 *   by the caller because the Idempotency-Key contract holds across attempts.
 */
package dwollaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is a client for the Dwolla API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	key    string
	secret string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new Dwolla API client.
func NewClient(baseURL, key, secret string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		secret:  secret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a structured error returned by the Dwolla API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Embedded   struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Path    string `json:"path"`
		} `json:"errors"`
	} `json:"_embedded"`
}

func (e *APIError) Error() string {
	if len(e.Embedded.Errors) > 0 {
		first := e.Embedded.Errors[0]
		return fmt.Sprintf("dwolla api error (%d): %s - %s (%s)", e.StatusCode, e.Code, first.Message, first.Path)
	}
	return fmt.Sprintf("dwolla api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsValidation reports whether the provider rejected the request itself.
// Validation failures are never worth retrying with the same payload.
func (e *APIError) IsValidation() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsTransient reports whether the failure was on the provider's side and a
// caller-driven retry is reasonable.
func (e *APIError) IsTransient() bool {
	return e.StatusCode >= 500
}

// accessToken returns a cached application token, fetching a fresh one via
// the client-credentials grant when the cache is empty or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)

	return c.token, nil
}

// resolve turns a resource reference into an absolute URL. Dwolla hands out
// absolute URLs for existing resources; collection endpoints are addressed by
// path relative to the API base.
func (c *Client) resolve(resource string) string {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		return resource
	}
	return c.BaseURL + "/" + strings.TrimLeft(resource, "/")
}

// do executes one authenticated API call. When target is non-nil the response
// body is decoded into it. The returned string is the Location header, which
// carries the new resource URL on create operations.
func (c *Client) do(ctx context.Context, method, resource string, payload interface{}, headers map[string]string, target interface{}) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(resource), body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.dwolla.v1.hal+json")
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/vnd.dwolla.v1.hal+json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, apiErr); err != nil {
				return "", fmt.Errorf("dwolla request failed with status %d: %s", resp.StatusCode, string(raw))
			}
		}
		return "", apiErr
	}

	if target != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return "", fmt.Errorf("failed to decode response body: %w", err)
		}
	}

	return resp.Header.Get("Location"), nil
}

// CreateCustomer registers a new customer and returns its resource URL.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	return c.do(ctx, http.MethodPost, "customers", req, nil, nil)
}

// UpdateCustomer posts a partial update to an existing customer.
func (c *Client) UpdateCustomer(ctx context.Context, customerURL string, req CustomerRequest) error {
	_, err := c.do(ctx, http.MethodPost, customerURL, req, nil, nil)
	return err
}

// DeactivateCustomer posts a status-only deactivation update.
func (c *Client) DeactivateCustomer(ctx context.Context, customerURL string) error {
	_, err := c.do(ctx, http.MethodPost, customerURL, statusUpdate{Status: "deactivated"}, nil, nil)
	return err
}

// GetCustomer retrieves a customer by its resource URL.
func (c *Client) GetCustomer(ctx context.Context, customerURL string) (*Customer, error) {
	var customer Customer
	if _, err := c.do(ctx, http.MethodGet, customerURL, nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateFundingSource registers a bank account against a customer and returns
// the new funding source's resource URL.
func (c *Client) CreateFundingSource(ctx context.Context, customerURL string, req FundingSourceRequest) (string, error) {
	return c.do(ctx, http.MethodPost, customerURL+"/funding-sources", req, nil, nil)
}

// GetFundingSource retrieves a funding source by its resource URL.
func (c *Client) GetFundingSource(ctx context.Context, fundingSourceURL string) (*FundingSource, error) {
	var source FundingSource
	if _, err := c.do(ctx, http.MethodGet, fundingSourceURL, nil, nil, &source); err != nil {
		return nil, err
	}
	return &source, nil
}

// ListFundingSources lists all funding sources belonging to a customer,
// including removed ones and the processor-held balance.
func (c *Client) ListFundingSources(ctx context.Context, customerURL string) ([]FundingSource, error) {
	var list FundingSourceList
	if _, err := c.do(ctx, http.MethodGet, customerURL+"/funding-sources", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Embedded.FundingSources, nil
}

// RemoveFundingSource soft-deletes a funding source. Dwolla keeps the record
// but refuses it as a transfer endpoint from then on.
func (c *Client) RemoveFundingSource(ctx context.Context, fundingSourceURL string) error {
	_, err := c.do(ctx, http.MethodPost, fundingSourceURL, removedUpdate{Removed: true}, nil, nil)
	return err
}

// CreateTransfer initiates a funds movement and returns the new transfer's
// resource URL. The idempotency key must be stable per local transaction:
// Dwolla returns the original transfer on a retried request bearing the same
// key and payload instead of moving money a second time.
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest, idempotencyKey string) (string, error) {
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	return c.do(ctx, http.MethodPost, "transfers", req, headers, nil)
}

// GetTransfer retrieves a transfer by its resource URL.
func (c *Client) GetTransfer(ctx context.Context, transferURL string) (*Transfer, error) {
	var transfer Transfer
	if _, err := c.do(ctx, http.MethodGet, transferURL, nil, nil, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ListTransfers lists a customer's transfers, optionally filtered by status.
func (c *Client) ListTransfers(ctx context.Context, customerURL, status string) (*TransferList, error) {
	endpoint := customerURL + "/transfers"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var list TransferList
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CancelTransfer posts a cancellation status update. Dwolla rejects the
// update unless the transfer is still pending; the provider is the arbiter of
// cancellability, not local state.
func (c *Client) CancelTransfer(ctx context.Context, transferURL string) error {
	_, err := c.do(ctx, http.MethodPost, transferURL, statusUpdate{Status: "cancelled"}, nil, nil)
	return err
}

// GetBalance retrieves the live balance of a balance-type funding source.
func (c *Client) GetBalance(ctx context.Context, balanceURL string) (*BalanceResponse, error) {
	var balance BalanceResponse
	if _, err := c.do(ctx, http.MethodGet, balanceURL, nil, nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// CreateWebhookSubscription registers a webhook delivery endpoint with its
// shared signing secret and returns the subscription's resource URL.
func (c *Client) CreateWebhookSubscription(ctx context.Context, endpointURL, secret string) (string, error) {
	req := WebhookSubscriptionRequest{URL: endpointURL, Secret: secret}
	return c.do(ctx, http.MethodPost, "webhook-subscriptions", req, nil, nil)
}

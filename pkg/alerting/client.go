/**
 * @description
 * This package provides a minimal client for the on-call alerting gateway. It
 * is used for failures that need a human immediately (webhook subscription
 * bootstrap failures, signature verification outages) rather than a log line
 * someone might read tomorrow.
 *
 * The client degrades to a logged no-op when unconfigured, so local and test
 * environments run without an alerting gateway.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, log, net/http, time: Standard Go libraries.
 */
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Severity classifies an alert for the gateway's routing rules.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type alertRequest struct {
	Service  string   `json:"service"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Client sends alerts to the on-call gateway.
type Client struct {
	BaseURL    string
	APIKey     string
	Service    string
	HTTPClient *http.Client
}

// NewClient creates an alerting client. An empty baseURL yields a client that
// logs alerts instead of delivering them.
func NewClient(baseURL, apiKey, service string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Service: service,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Alert delivers a message to the on-call gateway. Delivery failure is logged
// and returned, never panicked on: alerting must not take the service down
// with it.
func (c *Client) Alert(ctx context.Context, severity Severity, message string) error {
	if c == nil || c.BaseURL == "" {
		log.Printf("level=%s component=alerting mode=noop msg=%q", severity, message)
		return nil
	}

	payload, err := json.Marshal(alertRequest{
		Service:  c.Service,
		Severity: severity,
		Message:  message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/alerts", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Printf("level=error component=alerting msg=\"alert delivery failed\" err=%v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("alert gateway returned status %d", resp.StatusCode)
		log.Printf("level=error component=alerting msg=\"alert delivery rejected\" status=%d", resp.StatusCode)
		return err
	}
	return nil
}

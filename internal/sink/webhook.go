// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/sentinel/internal/detection"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	Enabled bool              `koanf:"enabled"`
	URL     string            `koanf:"url"`
	Method  string            `koanf:"method"` // POST (default), PUT or PATCH
	Headers map[string]string `koanf:"headers"`

	// Auth is sent verbatim as the Authorization header.
	Auth string `koanf:"auth"`

	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the sustained requests per second; Burst the bucket size.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// Validate checks if the webhook configuration is valid.
func (c WebhookConfig) Validate() error {
	if err := ValidateWebhookURL(c.URL); err != nil {
		return err
	}
	method := strings.ToUpper(c.Method)
	if method != "" && method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return fmt.Errorf("webhook method must be POST, PUT, or PATCH")
	}
	if c.RateLimit < 0 || c.Burst < 0 {
		return fmt.Errorf("webhook rate_limit and burst must not be negative")
	}
	return nil
}

// ValidateWebhookURL checks that rawURL is an absolute http(s) URL.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("webhook URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("webhook URL must have a host")
	}
	return nil
}

// WebhookSink posts alert envelopes to an HTTP endpoint.
type WebhookSink struct {
	config  WebhookConfig
	method  string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewWebhookSink creates a webhook sink. A zero RateLimit disables limiting.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}

	return &WebhookSink{
		config:  cfg,
		method:  method,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		now:     time.Now,
	}, nil
}

// Name implements detection.AlertSink.
func (s *WebhookSink) Name() string { return "webhook" }

// Publish implements detection.AlertSink. It waits for the rate limiter,
// so a saturated limiter surfaces as the caller's context deadline.
func (s *WebhookSink) Publish(ctx context.Context, alert *detection.Alert) error {
	data, err := Encode(alert, s.now())
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.config.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Sentinel-Alerts/1.0")
	for key, value := range s.config.Headers {
		req.Header.Set(key, value)
	}
	if s.config.Auth != "" {
		req.Header.Set("Authorization", s.config.Auth)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = []byte("(failed to read response)")
	}
	return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
}

// Package webhook delivers replies to an HTTP endpoint for messaging
// channels that are bridged over webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sender posts replies as JSON to a fixed URL.
type Sender struct {
	url    string
	client *http.Client
}

type outbound struct {
	CustomerID string `json:"customerId"`
	Text       string `json:"text"`
}

// NewSender creates a Sender. A nil client gets a 10 second timeout.
func NewSender(url string, client *http.Client) (*Sender, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook: outbound URL must not be empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Sender{url: url, client: client}, nil
}

// Send posts {customerId, text}. Any non-2xx status is an error.
func (s *Sender) Send(ctx context.Context, customerID, text string) error {
	body, err := json.Marshal(outbound{CustomerID: customerID, Text: text})
	if err != nil {
		return fmt.Errorf("webhook: Send: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: Send: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: Send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook: Send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

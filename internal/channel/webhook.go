package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/makt28/netcanary/internal/snapshot"
)

// Webhook sends the JSON snapshot to an HTTP endpoint.
type Webhook struct {
	name   string
	URL    string
	Method string
	Token  string

	client *http.Client
}

func NewWebhook(name, url, method, token string, client *http.Client) (*Webhook, error) {
	w := &Webhook{name: name, URL: url, Method: method, Token: token, client: client}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Kind() string { return "webhook" }

func (w *Webhook) Validate() error {
	if w.URL == "" {
		return errors.New("webhook: url is required")
	}
	if w.Method == "" {
		return errors.New("webhook: method is required")
	}
	return nil
}

func (w *Webhook) Deliver(ctx context.Context, snap snapshot.Snapshot) error {
	body, err := snapshot.JSON(snap)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var reader io.Reader
	if w.Method != http.MethodGet {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, w.Method, w.URL, reader)
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook: %w", Reject(resp.StatusCode, strings.TrimSpace(string(detail))))
	}
	return nil
}

func (w *Webhook) Close() error { return nil }

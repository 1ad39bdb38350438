package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweeney/beacon/internal/notify"
)

// ErrStatus is returned when a webhook answers with a non-2xx status.
var ErrStatus = errors.New("unexpected status")

const maxDrain = 64 << 10

// WebhookSender calls webhook actions over HTTP.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender returns a sender whose requests time out after timeout.
// A zero timeout leaves the transport default in place.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

// NewWebhookSenderWithClient uses the given client as is.
func NewWebhookSenderWithClient(c *http.Client) *WebhookSender {
	return &WebhookSender{client: c}
}

// Send POSTs the payload as JSON when it is non-blank, otherwise GETs the URL.
func (w *WebhookSender) Send(ctx context.Context, a notify.Action) error {
	if a.Webhook == nil {
		return fmt.Errorf("webhook %s: no webhook body", a.ID)
	}

	var (
		req *http.Request
		err error
	)
	if strings.TrimSpace(a.Webhook.Payload) != "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, a.Webhook.URL, strings.NewReader(a.Webhook.Payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, a.Webhook.URL, nil)
	}
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", req.Method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s: %w: %s", req.Method, ErrStatus, resp.Status)
	}
	return nil
}

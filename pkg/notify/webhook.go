package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// webhook secret is configured.
const SignatureHeader = "X-Newsdesk-Signature"

// WebhookConfig points sweep summaries at an HTTP endpoint.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" env:"NEWSDESK_WEBHOOK_URL"`
	Secret  string            `yaml:"secret" json:"-" env:"NEWSDESK_WEBHOOK_SECRET"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// webhookPayload is the JSON document receivers get. Summary holds the
// sweep summary from Message.Data.
type webhookPayload struct {
	Event   string    `json:"event"`
	Title   string    `json:"title"`
	Text    string    `json:"text"`
	URL     string    `json:"url,omitempty"`
	SentAt  time.Time `json:"sent_at"`
	Summary any       `json:"summary,omitempty"`
}

// WebhookNotifier posts sweep summaries as JSON.
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Send posts msg to the webhook URL. Any non-2xx response is an error that
// quotes the start of the response body.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	event := msg.Event
	if event == "" {
		event = EventSweepDone
	}
	body, err := json.Marshal(webhookPayload{
		Event:   event,
		Title:   msg.Title,
		Text:    msg.Body,
		URL:     msg.URL,
		SentAt:  w.now().UTC(),
		Summary: msg.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}
	if w.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign([]byte(w.config.Secret), body))
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if s := strings.TrimSpace(string(snippet)); s != "" {
			return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, s)
		}
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the "sha256=<hex>" HMAC of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

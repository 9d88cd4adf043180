package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	ch   Channel
	err  error
	sent []Message
}

func (s *stubNotifier) Send(_ context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *stubNotifier) Channel() Channel { return s.ch }

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(nil)
	ok := &stubNotifier{ch: ChannelWebhook}
	bad := &stubNotifier{ch: ChannelTelegram, err: errors.New("403")}
	d.Register(ok)
	d.Register(bad)

	assert.Equal(t, []Channel{ChannelTelegram, ChannelWebhook}, d.Channels())

	err := d.SendAll(context.Background(), Message{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/2")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, bad.sent, 1)

	require.NoError(t, d.Dispatch(context.Background(), []Channel{"slack", ChannelWebhook}, Message{}))
	assert.Len(t, ok.sent, 2)
}

func TestFromConfig(t *testing.T) {
	assert.Empty(t, FromConfig(Config{}, nil).Channels())
	d := FromConfig(Config{
		Webhook:  WebhookConfig{URL: "https://hooks.example/x"},
		Telegram: TelegramConfig{BotToken: "tok"},
	}, nil)
	assert.Equal(t, []Channel{ChannelWebhook}, d.Channels(), "telegram needs a channel id")
}

func TestWebhookNotifier(t *testing.T) {
	var got map[string]any
	var auth, sig string
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		sig = r.Header.Get(SignatureHeader)
		raw, _ = io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: "k", Headers: map[string]string{"Authorization": "Bearer x"}})
	n.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	err := n.Send(context.Background(), Message{Title: "Barrido", Body: "ok", Format: "plain", Data: map[string]int{"inserted": 3}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer x", auth)
	assert.Equal(t, EventSweepDone, got["event"])
	assert.Equal(t, "Barrido", got["title"])
	assert.Equal(t, "ok", got["text"])
	assert.Equal(t, "2024-03-05T12:00:00Z", got["sent_at"])
	assert.Equal(t, map[string]any{"inserted": float64(3)}, got["summary"])
	assert.Equal(t, Sign([]byte("k"), raw), sig)
}

func TestWebhookNotifier_UnsignedWithoutSecret(t *testing.T) {
	sig := "unset"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()
	require.NoError(t, NewWebhookNotifier(WebhookConfig{URL: srv.URL}).Send(context.Background(), Message{Event: "custom"}))
	assert.Empty(t, sig)
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()
	err := NewWebhookNotifier(WebhookConfig{URL: srv.URL}).Send(context.Background(), Message{})
	assert.ErrorContains(t, err, "502: upstream down")
}

func TestSign(t *testing.T) {
	assert.Equal(t, "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign([]byte("key"), []byte("The quick brown fox jumps over the lazy dog")))
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", ChannelID: "@noticias", APIBase: srv.URL})
	require.NoError(t, n.Send(context.Background(), Message{Title: "Barrido 1.0", Body: "3 nuevas (ok)", Format: "plain"}))
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "@noticias", payload["chat_id"])
	assert.Equal(t, "*Barrido 1\\.0*\n\n3 nuevas \\(ok\\)", payload["text"])
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d\!`, EscapeMarkdown("a_b*c.d!"))
	assert.Equal(t, `\\`, EscapeMarkdown(`\`))
}

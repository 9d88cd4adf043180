// Package notify provides a notification dispatch system supporting
// Telegram and webhook channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// EventSweepDone names the notification sent after each harvest sweep.
const EventSweepDone = "sweep.done"

// Message represents a notification message.
type Message struct {
	// Event names what happened; webhooks default it to EventSweepDone.
	Event  string `json:"event,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Format string `json:"format"` // "markdown" or "plain"
	URL    string `json:"url,omitempty"`
	// Data is an optional structured payload forwarded by channels that
	// carry JSON.
	Data any `json:"data,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Config selects the channels to register. Empty sections are skipped.
type Config struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// Dispatcher routes messages to the appropriate notification channels.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	logger    *zap.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		logger:    logger,
	}
}

// FromConfig builds a Dispatcher with every configured channel registered.
func FromConfig(cfg Config, logger *zap.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	if cfg.Webhook.URL != "" {
		d.Register(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChannelID != "" {
		d.Register(NewTelegramNotifier(cfg.Telegram))
	}
	return d
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Channels lists the registered channels in name order.
func (d *Dispatcher) Channels() []Channel {
	channels := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Dispatch sends a message to the specified channels.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []Channel, msg Message) error {
	var errs []error
	for _, ch := range channels {
		notifier, ok := d.notifiers[ch]
		if !ok {
			d.logger.Warn("notifier not registered", zap.String("channel", string(ch)))
			continue
		}
		if err := notifier.Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", zap.String("channel", string(ch)), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		} else {
			d.logger.Info("notification sent", zap.String("channel", string(ch)), zap.String("title", msg.Title))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to send %d/%d notifications: %w", len(errs), len(channels), errors.Join(errs...))
	}
	return nil
}

// SendAll sends a message to all registered channels.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message) error {
	return d.Dispatch(ctx, d.Channels(), msg)
}

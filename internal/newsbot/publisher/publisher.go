// Package publisher announces finished sweeps through notification channels.
package publisher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/pkg/notify"
)

// Publisher formats sweep reports and sends them via notification channels.
type Publisher struct {
	dispatcher *notify.Dispatcher
	channels   []notify.Channel
	logger     *zap.Logger
	// OnlyChanges skips sweeps that stored nothing and had no failures.
	OnlyChanges bool
}

// NewPublisher creates a publisher targeting channels, or every registered
// channel when channels is empty.
func NewPublisher(dispatcher *notify.Dispatcher, channels []notify.Channel, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(channels) == 0 {
		channels = dispatcher.Channels()
	}
	return &Publisher{dispatcher: dispatcher, channels: channels, logger: logger}
}

// Summary is the structured payload attached to each notification.
type Summary struct {
	RunID          string         `json:"run_id"`
	Category       string         `json:"category,omitempty"`
	Started        string         `json:"started"`
	DurationSecond float64        `json:"duration_seconds"`
	Outcomes       map[string]int `json:"outcomes"`
	FailedSources  []string       `json:"failed_sources,omitempty"`
}

// Summarize reduces a sweep report to its Summary.
func Summarize(r *pipeline.SweepReport) Summary {
	s := Summary{
		RunID:          r.RunID,
		Category:       r.Category,
		Started:        r.Started.Format("2006-01-02 15:04:05"),
		DurationSecond: r.Duration().Seconds(),
		Outcomes:       make(map[string]int),
	}
	for _, o := range gate.Outcomes() {
		s.Outcomes[o.String()] = r.Total(o)
	}
	for _, src := range r.Sources {
		if src.Failed() {
			s.FailedSources = append(s.FailedSources, src.Source)
		}
	}
	return s
}

// Publish formats report and sends it via the configured channels.
func (p *Publisher) Publish(ctx context.Context, report *pipeline.SweepReport) error {
	if len(p.channels) == 0 {
		return nil
	}
	if p.OnlyChanges && report.Total(gate.Inserted) == 0 && report.Failures() == 0 {
		return nil
	}
	msg := notify.Message{
		Event:  notify.EventSweepDone,
		Title:  fmt.Sprintf("Barrido de noticias %s", report.Started.Format("2006-01-02 15:04")),
		Body:   FormatReport(report),
		Format: "plain",
		Data:   Summarize(report),
	}
	return p.dispatcher.Dispatch(ctx, p.channels, msg)
}

// Observe publishes every SweepDone event until ctx is done or events closes.
func (p *Publisher) Observe(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != pipeline.SweepDone || ev.Sweep == nil {
				continue
			}
			if err := p.Publish(ctx, ev.Sweep); err != nil {
				p.logger.Warn("publish sweep summary", zap.String("run_id", ev.RunID), zap.Error(err))
			}
		}
	}
}

// FormatReport renders a plain-text sweep summary.
func FormatReport(r *pipeline.SweepReport) string {
	var sb strings.Builder
	if r.Category != "" {
		fmt.Fprintf(&sb, "Categoría: %s\n", r.Category)
	}
	fmt.Fprintf(&sb, "Nuevas: %d | Duplicadas: %d | Bloqueadas: %d | Errores: %d\n",
		r.Total(gate.Inserted), r.Total(gate.Duplicate), r.Total(gate.Blocked), r.Total(gate.StoreError))
	fmt.Fprintf(&sb, "Fuentes: %d (fallidas: %d) en %s\n", len(r.Sources), r.Failures(), r.Duration().Round(time.Second))

	for _, src := range r.Sources {
		if src.Failed() {
			fmt.Fprintf(&sb, "  x %s: %v\n", src.Source, src.Err)
			continue
		}
		if n := src.Count(gate.Inserted); n > 0 {
			fmt.Fprintf(&sb, "  + %s: %d\n", src.Source, n)
		}
	}
	fmt.Fprintf(&sb, "run %s", r.RunID)
	return sb.String()
}

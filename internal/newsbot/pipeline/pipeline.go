// Package pipeline runs the harvest: fetch, extract, normalize, classify and
// gate for every configured source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/classify"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/extract"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/normalize"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
	"github.com/RobinCoderZhao/newsdesk/pkg/scraper"
)

// ErrUnknownCategory is returned for a category outside the vocabulary.
var ErrUnknownCategory = errors.New("unknown category")

// Cursor reports the last time a source was harvested.
type Cursor interface {
	LastScrapedAt(ctx context.Context, source string) (time.Time, bool, error)
}

// Pipeline harvests sources sequentially.
type Pipeline struct {
	catalog    *sources.Catalog
	fetcher    scraper.Fetcher
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	gate       *gate.Gate
	cursor     Cursor
	logger     *zap.Logger
	now        func() time.Time
	events     bus
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for timings and the date fallback.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New wires a Pipeline. cursor may be nil to disable the date gate.
func New(catalog *sources.Catalog, fetcher scraper.Fetcher, g *gate.Gate, cursor Cursor, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog: catalog,
		fetcher: fetcher,
		gate:    g,
		cursor:  cursor,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.extractor = extract.New(p.logger.Named("extract"))
	p.normalizer = normalize.New().WithClock(p.now)
	return p
}

// Subscribe returns a channel of pipeline events. Slow subscribers miss
// events rather than stall a sweep. Call the returned func to unsubscribe.
func (p *Pipeline) Subscribe(buffer int) (<-chan Event, func()) {
	return p.events.subscribe(buffer)
}

// DroppedEvents reports how many events subscribers missed.
func (p *Pipeline) DroppedEvents() int64 {
	return p.events.dropped.Load()
}

// Catalog returns the configured sources.
func (p *Pipeline) Catalog() *sources.Catalog {
	return p.catalog
}

// RunFullSweep visits every configured source once.
func (p *Pipeline) RunFullSweep(ctx context.Context) *SweepReport {
	return p.sweep(ctx, "", p.catalog.All())
}

// RunSweepForCategory visits only sources whose category hint is category.
func (p *Pipeline) RunSweepForCategory(ctx context.Context, category string) (*SweepReport, error) {
	known := false
	for _, c := range sources.Categories() {
		if c == category {
			known = true
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return p.sweep(ctx, category, p.catalog.ByCategory(category)), nil
}

// RunSource harvests a single source with a fresh run id.
func (p *Pipeline) RunSource(ctx context.Context, cfg sources.Config) SourceReport {
	runID := uuid.NewString()
	return p.runSource(ctx, cfg, runID, p.cursors(ctx, []sources.Config{cfg}))
}

func (p *Pipeline) sweep(ctx context.Context, category string, configs []sources.Config) *SweepReport {
	report := &SweepReport{
		RunID:    uuid.NewString(),
		Category: category,
		Started:  p.now(),
		Sources:  make([]SourceReport, 0, len(configs)),
	}
	log := p.logger.With(zap.String("run_id", report.RunID))
	log.Info("sweep started", zap.String("category", category), zap.Int("sources", len(configs)))
	p.events.publish(Event{Kind: SweepStarted, RunID: report.RunID, Sweep: &SweepReport{
		RunID: report.RunID, Category: category, Started: report.Started,
	}})

	// Cursors are read before the sweep so outlets with several listing
	// pages are not gated by their own earlier pages.
	cursors := p.cursors(ctx, configs)
	for _, cfg := range configs {
		if ctx.Err() != nil {
			log.Warn("sweep interrupted", zap.Error(ctx.Err()))
			break
		}
		src := p.runSource(ctx, cfg, report.RunID, cursors)
		report.Sources = append(report.Sources, src)
		p.events.publish(Event{Kind: SourceDone, RunID: report.RunID, Source: &src})
	}

	report.Finished = p.now()
	log.Info("sweep finished",
		zap.Duration("duration", report.Duration()),
		zap.Int("inserted", report.Total(gate.Inserted)),
		zap.Int("duplicate", report.Total(gate.Duplicate)),
		zap.Int("blocked", report.Total(gate.Blocked)),
		zap.Int("store_errors", report.Total(gate.StoreError)),
		zap.Int("failed_sources", report.Failures()))
	p.events.publish(Event{Kind: SweepDone, RunID: report.RunID, Sweep: report})
	return report
}

// cursors returns the calendar date of each source's last harvest.
func (p *Pipeline) cursors(ctx context.Context, configs []sources.Config) map[string]time.Time {
	out := make(map[string]time.Time)
	if p.cursor == nil {
		return out
	}
	for _, cfg := range configs {
		if _, seen := out[cfg.Name]; seen {
			continue
		}
		last, ok, err := p.cursor.LastScrapedAt(ctx, cfg.Name)
		if err != nil {
			p.logger.Warn("read cursor", zap.String("source", cfg.Name), zap.Error(err))
			continue
		}
		if ok {
			out[cfg.Name] = news.Day(last.In(time.Local))
		}
	}
	return out
}

func (p *Pipeline) runSource(ctx context.Context, cfg sources.Config, runID string, cursors map[string]time.Time) (report SourceReport) {
	start := p.now()
	report = newSourceReport(cfg.Name, cfg.URL, cfg.Category)
	log := p.logger.With(zap.String("run_id", runID), zap.String("source", cfg.Name), zap.String("url", cfg.URL))
	defer func() { report.Duration = p.now().Sub(start) }()

	page, err := p.fetcher.Fetch(ctx, cfg.URL)
	if err != nil {
		report.Err = err
		log.Warn("fetch failed", zap.Error(err))
		return report
	}

	cursor, gated := cursors[cfg.Name]
	for raw := range p.extractor.Extract(page.Body, cfg) {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			break
		}
		report.Candidates++
		item, ok := p.normalizer.Normalize(raw, cfg)
		if !ok {
			report.Gaps++
			continue
		}
		c := classify.Classify(item.Title, item.Summary, cfg.Category)
		item.Category = c.Category
		item.Department = c.Department
		item.Type = classify.Tag(item.Title, item.Summary, item.Section, item.Source)
		item.RunID = runID

		if p.gate.Policy().Blocked(item.Source) {
			report.Outcomes[gate.Blocked]++
			continue
		}
		if gated && !item.PublishDate.After(cursor) {
			report.Outcomes[gate.Duplicate]++
			continue
		}

		outcome, err := p.gate.Accept(ctx, &item)
		report.Outcomes[outcome]++
		if err != nil {
			log.Error("store item", zap.String("link", item.Link), zap.Error(err))
		}
	}

	log.Info("source done",
		zap.Int("candidates", report.Candidates),
		zap.Int("inserted", report.Count(gate.Inserted)),
		zap.Int("duplicate", report.Count(gate.Duplicate)),
		zap.Int("blocked", report.Count(gate.Blocked)),
		zap.Int("store_errors", report.Count(gate.StoreError)))
	return report
}

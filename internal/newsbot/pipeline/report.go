package pipeline

import (
	"time"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
)

// SourceReport summarises one source within a sweep.
type SourceReport struct {
	Source     string               `json:"source"`
	URL        string               `json:"url"`
	Category   string               `json:"category"`
	Candidates int                  `json:"candidates"`
	Gaps       int                  `json:"gaps"`
	Outcomes   map[gate.Outcome]int `json:"-"`
	Err        error                `json:"-"`
	Duration   time.Duration        `json:"duration"`
}

func newSourceReport(name, url, category string) SourceReport {
	return SourceReport{Source: name, URL: url, Category: category, Outcomes: make(map[gate.Outcome]int)}
}

// Count returns how many items ended with outcome o.
func (r SourceReport) Count(o gate.Outcome) int {
	return r.Outcomes[o]
}

// Failed reports whether the source could not be fetched or parsed.
func (r SourceReport) Failed() bool {
	return r.Err != nil
}

// SweepReport summarises one sweep.
type SweepReport struct {
	RunID    string         `json:"run_id"`
	Category string         `json:"category,omitempty"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Sources  []SourceReport `json:"sources"`
}

// Duration is the wall time of the sweep.
func (r *SweepReport) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Total sums outcome o across sources.
func (r *SweepReport) Total(o gate.Outcome) int {
	n := 0
	for _, s := range r.Sources {
		n += s.Outcomes[o]
	}
	return n
}

// Failures counts sources that failed.
func (r *SweepReport) Failures() int {
	n := 0
	for _, s := range r.Sources {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Package normalize resolves and cleans raw extracted candidates into news items.
package normalize

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/extract"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
)

// Normalizer converts RawItems into partially filled news items. Category,
// department and type are left to the classifier.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer using the wall clock for the date fallback.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// WithClock overrides the clock used for the "today" fallback.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize resolves URLs against the source base, parses the date and trims
// text fields. It returns false when the link cannot be made absolute, which
// callers treat like any other extraction gap.
func (n *Normalizer) Normalize(raw extract.RawItem, cfg sources.Config) (news.Item, bool) {
	title := clean(raw.Title)
	link := Resolve(cfg.Base, raw.Link)
	if title == "" || link == "" {
		return news.Item{}, false
	}

	date, ok := ParseDate(raw.DateText)
	if !ok {
		date = news.Day(n.now())
	}

	return news.Item{
		Title:       title,
		Link:        link,
		PublishDate: date,
		Summary:     clean(raw.Summary),
		Author:      clean(raw.Author),
		Image:       Resolve(cfg.Base, raw.Image),
		Source:      cfg.Name,
		Section:     clean(raw.Category),
	}, true
}

// Resolve joins ref against base with standard URL reference semantics.
// Absolute references pass through; the result must be an http(s) URL or
// the empty string is returned.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !r.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || !b.IsAbs() {
			return ""
		}
		if b.Path == "" {
			b.Path = "/"
		}
		r = b.ResolveReference(r)
	}
	if r.Scheme != "http" && r.Scheme != "https" {
		return ""
	}
	if r.Host == "" {
		return ""
	}
	return r.String()
}

// ParseDate interprets site date text. Text containing "/" is read as
// day/month/year (two or four digit year, extra characters after the fourth
// ignored); otherwise text whose first "-" segment has four characters is
// read as year-month-day. Anything else reports no date.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\u00a0", " "))
	if text == "" {
		return time.Time{}, false
	}

	var y, m, d int
	var ok bool
	switch {
	case strings.Contains(text, "/"):
		parts := strings.Split(text, "/")
		if len(parts) < 3 {
			return time.Time{}, false
		}
		d, ok = atoi(parts[0])
		if !ok {
			return time.Time{}, false
		}
		m, ok = atoi(parts[1])
		if !ok {
			return time.Time{}, false
		}
		yearText := strings.TrimSpace(parts[2])
		if len(yearText) > 4 {
			yearText = yearText[:4]
		}
		y, ok = atoi(yearText)
		if !ok {
			return time.Time{}, false
		}
		if len(strings.TrimSpace(yearText)) <= 2 {
			y += 2000
		}
	case strings.Contains(text, "-"):
		parts := strings.Split(text, "-")
		if len(parts) < 3 || len(strings.TrimSpace(parts[0])) != 4 {
			return time.Time{}, false
		}
		y, ok = atoi(parts[0])
		if !ok {
			return time.Time{}, false
		}
		m, ok = atoi(parts[1])
		if !ok {
			return time.Time{}, false
		}
		d, ok = atoi(leadingDigits(parts[2]))
		if !ok {
			return time.Time{}, false
		}
	default:
		return time.Time{}, false
	}

	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1900 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
	// time.Date normalises overflow (31/02 -> 02/03); reject it.
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil && n >= 0
}

// leadingDigits keeps the day out of values such as "05T10:30:00".
func leadingDigits(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

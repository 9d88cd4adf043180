// Package news defines the normalized news record shared by the pipeline,
// the store and the read API.
package news

import "time"

// DateLayout is the calendar-date wire format of PublishDate.
const DateLayout = "2006-01-02"

// Item is one harvested news article.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"titulo"`
	Link        string    `json:"link"`
	Category    string    `json:"categoria,omitempty"`
	Type        string    `json:"tipo,omitempty"`
	PublishDate time.Time `json:"-"`
	Summary     string    `json:"resumen,omitempty"`
	Author      string    `json:"autor,omitempty"`
	Image       string    `json:"imagen,omitempty"`
	Source      string    `json:"fuente"`
	Department  string    `json:"departamento,omitempty"`
	ScrapedAt   time.Time `json:"fecha_scraping"`
	RunID       string    `json:"run_id,omitempty"`

	// Section is the site's own section label. It feeds the type tagger and
	// is not persisted.
	Section string `json:"-"`
}

// Fecha returns PublishDate in DateLayout.
func (i Item) Fecha() string {
	if i.PublishDate.IsZero() {
		return ""
	}
	return i.PublishDate.Format(DateLayout)
}

// Day truncates t to its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Package sources defines the per-site extraction configuration and the
// catalog of news sites harvested by the pipeline.
package sources

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Category hints a source can declare.
const (
	CategoryNacional      = "nacional"
	CategoryRegional      = "regional"
	CategoryInternacional = "internacional"
)

// Mode selects how candidate items are located in a page.
type Mode int

const (
	// ModeContainer selects one root node per article and resolves fields inside it.
	ModeContainer Mode = iota
	// ModeFlat selects anchors directly and pairs a page-wide image list by index.
	ModeFlat
)

func (m Mode) String() string {
	if m == ModeFlat {
		return "flat"
	}
	return "container"
}

// Config describes one news site.
type Config struct {
	Name       string `yaml:"name" json:"name"`
	URL        string `yaml:"url" json:"url"`
	Base       string `yaml:"base" json:"base"`
	Category   string `yaml:"category" json:"category"`
	Department string `yaml:"department,omitempty" json:"department,omitempty"`

	// Container mode.
	Container        string `yaml:"container,omitempty" json:"container,omitempty"`
	TitleSelector    string `yaml:"title_selector,omitempty" json:"title_selector,omitempty"`
	ImgSelector      string `yaml:"img_selector,omitempty" json:"img_selector,omitempty"`
	SummarySelector  string `yaml:"summary_selector,omitempty" json:"summary_selector,omitempty"`
	AuthorSelector   string `yaml:"author_selector,omitempty" json:"author_selector,omitempty"`
	DateSelector     string `yaml:"date_selector,omitempty" json:"date_selector,omitempty"`
	CategorySelector string `yaml:"category_selector,omitempty" json:"category_selector,omitempty"`

	// Flat-anchor mode.
	Selector      string `yaml:"selector,omitempty" json:"selector,omitempty"`
	ImageSelector string `yaml:"selector_img,omitempty" json:"selector_img,omitempty"`
}

// Mode reports the extraction mode implied by the configuration.
func (c Config) Mode() Mode {
	if strings.TrimSpace(c.Container) != "" {
		return ModeContainer
	}
	return ModeFlat
}

// AnchorSelector returns the flat-mode selector, defaulting to "a".
func (c Config) AnchorSelector() string {
	if s := strings.TrimSpace(c.Selector); s != "" {
		return s
	}
	return "a"
}

// ImageSpec is a parsed image selector: a CSS selector plus an optional
// explicit attribute to read.
type ImageSpec struct {
	Selector string
	Attr     string
}

var attrNameRe = regexp.MustCompile(`^[A-Za-z_:][-A-Za-z0-9_:.]*$`)

// ParseImageSelector splits the extended "css@attr" syntax. A plain CSS
// selector yields an empty Attr.
func ParseImageSelector(s string) ImageSpec {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "@")
	if i <= 0 {
		return ImageSpec{Selector: s}
	}
	attr := strings.TrimSpace(s[i+1:])
	if !attrNameRe.MatchString(attr) {
		return ImageSpec{Selector: s}
	}
	return ImageSpec{Selector: strings.TrimSpace(s[:i]), Attr: attr}
}

// ValidationError reports an invalid source configuration.
type ValidationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("source %q: %s: %s", e.Source, e.Field, e.Reason)
}

// Normalize lower-cases the category hint and trims every field.
func (c Config) Normalize() Config {
	c.Name = strings.TrimSpace(c.Name)
	c.URL = strings.TrimSpace(c.URL)
	c.Base = strings.TrimRight(strings.TrimSpace(c.Base), "/")
	c.Category = strings.ToLower(strings.TrimSpace(c.Category))
	c.Department = strings.ToLower(strings.TrimSpace(c.Department))
	if c.Base == "" && c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
			c.Base = u.Scheme + "://" + u.Host
		}
	}
	return c
}

// Validate checks a normalized configuration.
func (c Config) Validate() error {
	if c.Name == "" {
		return &ValidationError{Source: c.URL, Field: "name", Reason: "required"}
	}
	if err := checkAbsolute(c.URL); err != nil {
		return &ValidationError{Source: c.Name, Field: "url", Reason: err.Error()}
	}
	if err := checkAbsolute(c.Base); err != nil {
		return &ValidationError{Source: c.Name, Field: "base", Reason: err.Error()}
	}
	switch c.Category {
	case CategoryNacional, CategoryRegional, CategoryInternacional:
	default:
		return &ValidationError{Source: c.Name, Field: "category", Reason: fmt.Sprintf("unknown hint %q", c.Category)}
	}

	selectors := map[string]string{
		"container":         c.Container,
		"title_selector":    c.TitleSelector,
		"summary_selector":  c.SummarySelector,
		"author_selector":   c.AuthorSelector,
		"date_selector":     c.DateSelector,
		"category_selector": c.CategorySelector,
		"selector":          c.Selector,
		"img_selector":      ParseImageSelector(c.ImgSelector).Selector,
		"selector_img":      ParseImageSelector(c.ImageSelector).Selector,
	}
	for field, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return &ValidationError{Source: c.Name, Field: field, Reason: err.Error()}
		}
	}
	if c.Mode() == ModeFlat && c.TitleSelector != "" {
		return &ValidationError{Source: c.Name, Field: "title_selector", Reason: "requires container"}
	}
	return nil
}

func checkAbsolute(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

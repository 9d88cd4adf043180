// Package extract turns a listing page into raw candidate items using a
// source's selector configuration.
package extract

import (
	"iter"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
)

// RawItem is an unresolved candidate: links may be relative and the date is
// the site's own text. Empty strings mean absent.
type RawItem struct {
	Title    string
	Link     string
	Image    string
	Summary  string
	Author   string
	Category string
	DateText string
}

// imageAttrs are tried in order for plain image selectors.
var imageAttrs = []string{"src", "data-src", "data-img-url"}

var cssURLRe = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// Extractor selects candidate items from markup.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor. A nil logger disables gap logging.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns a lazy sequence of candidates. Parsing happens on first
// iteration; malformed or empty markup yields an empty sequence. Candidates
// missing a title or link are skipped.
func (e *Extractor) Extract(markup string, cfg sources.Config) iter.Seq[RawItem] {
	return func(yield func(RawItem) bool) {
		if strings.TrimSpace(markup) == "" {
			return
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			e.logger.Debug("unparseable markup", zap.String("source", cfg.Name), zap.Error(err))
			return
		}
		if cfg.Mode() == sources.ModeContainer {
			e.containers(doc, cfg, yield)
			return
		}
		e.flat(doc, cfg, yield)
	}
}

func (e *Extractor) containers(doc *goquery.Document, cfg sources.Config, yield func(RawItem) bool) {
	nodes := doc.Find(cfg.Container)
	img := sources.ParseImageSelector(cfg.ImgSelector)
	gaps := 0
	for i := range nodes.Length() {
		c := nodes.Eq(i)
		title, link := titleAndLink(c, cfg.TitleSelector)
		if title == "" || link == "" {
			gaps++
			continue
		}
		item := RawItem{
			Title:    title,
			Link:     link,
			Image:    imageIn(c, img),
			Summary:  textIn(c, cfg.SummarySelector),
			Author:   textIn(c, cfg.AuthorSelector),
			Category: textIn(c, cfg.CategorySelector),
			DateText: dateIn(c, cfg.DateSelector),
		}
		if !yield(item) {
			return
		}
	}
	if gaps > 0 {
		e.logger.Debug("candidates skipped", zap.String("source", cfg.Name), zap.Int("gaps", gaps))
	}
}

// flat handles the legacy layout: each selected node is (or wraps) the anchor.
// Without a per-item image selector, images come from one page-wide list
// paired by position, which is only approximately right.
func (e *Extractor) flat(doc *goquery.Document, cfg sources.Config, yield func(RawItem) bool) {
	nodes := doc.Find(cfg.AnchorSelector())

	scoped := sources.ParseImageSelector(cfg.ImgSelector)
	global := sources.ParseImageSelector(cfg.ImageSelector)
	var images *goquery.Selection
	if scoped.Selector == "" && global.Selector != "" {
		images = doc.Find(global.Selector)
	}

	for i := range nodes.Length() {
		node := nodes.Eq(i)
		a := anchorOf(node)
		title := collapse(a.Text())
		if title == "" {
			title = collapse(node.Text())
		}
		link := attr(a, "href")
		if title == "" || link == "" {
			continue
		}
		item := RawItem{Title: title, Link: link, Summary: attr(a, "title")}
		switch {
		case scoped.Selector != "":
			item.Image = imageIn(node, scoped)
		case images != nil && i < images.Length():
			item.Image = imageOf(images.Eq(i), global.Attr)
		}
		if !yield(item) {
			return
		}
	}
}

// titleAndLink resolves the headline inside a container. When the title
// selector misses, the first anchor with an href stands in.
func titleAndLink(c *goquery.Selection, titleSelector string) (string, string) {
	var t *goquery.Selection
	if titleSelector != "" {
		t = c.Find(titleSelector).First()
	}
	if t == nil || t.Length() == 0 {
		t = anchorOf(c)
	}
	a := anchorOf(t)
	if a.Length() == 0 {
		a = anchorOf(c)
	}

	title := collapse(t.Text())
	if title == "" {
		title = collapse(a.Text())
	}
	if title == "" {
		title = attr(a, "title")
	}
	return title, attr(a, "href")
}

// anchorOf returns s itself when it is an anchor with an href, else its first
// descendant anchor with an href.
func anchorOf(s *goquery.Selection) *goquery.Selection {
	if s.Length() == 0 {
		return s
	}
	if goquery.NodeName(s) == "a" {
		if _, ok := s.Attr("href"); ok {
			return s
		}
	}
	return s.Find("a[href]").First()
}

func imageIn(scope *goquery.Selection, spec sources.ImageSpec) string {
	if spec.Selector == "" {
		return ""
	}
	node := scope.Find(spec.Selector).First()
	if node.Length() == 0 {
		return ""
	}
	return imageOf(node, spec.Attr)
}

func imageOf(node *goquery.Selection, explicit string) string {
	if explicit != "" {
		v := attr(node, explicit)
		if explicit == "style" {
			if m := cssURLRe.FindStringSubmatch(v); m != nil {
				return strings.TrimSpace(m[1])
			}
			return ""
		}
		return v
	}
	if v := firstImageAttr(node); v != "" {
		return v
	}
	if inner := node.Find("img").First(); inner.Length() > 0 {
		return firstImageAttr(inner)
	}
	return ""
}

func firstImageAttr(node *goquery.Selection) string {
	for _, name := range imageAttrs {
		v := attr(node, name)
		// Lazy loaders put an inline placeholder in src.
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func textIn(scope *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return collapse(scope.Find(selector).First().Text())
}

func dateIn(scope *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	node := scope.Find(selector).First()
	if text := collapse(node.Text()); text != "" {
		return text
	}
	return attr(node, "datetime")
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

// collapse trims and folds internal whitespace runs (NBSP included) to a
// single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

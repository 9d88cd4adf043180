package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// Pagination bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrEmptySearch is returned by Search when the keyword has no searchable terms.
var ErrEmptySearch = errors.New("empty search keyword")

// Sort orders list results.
type Sort string

const (
	SortDateDesc  Sort = "date_desc"
	SortDateAsc   Sort = "date_asc"
	SortTitleAsc  Sort = "title_asc"
	SortTitleDesc Sort = "title_desc"
)

var orderBy = map[Sort]string{
	SortDateDesc:  "fecha DESC, id DESC",
	SortDateAsc:   "fecha ASC, id ASC",
	SortTitleAsc:  "titulo ASC, id ASC",
	SortTitleDesc: "titulo DESC, id DESC",
}

// ParseSort maps a sort name to a Sort; unknown names report false.
func ParseSort(s string) (Sort, bool) {
	if s == "" {
		return SortDateDesc, true
	}
	_, ok := orderBy[Sort(s)]
	return Sort(s), ok
}

// Filter narrows a listing. Empty fields do not filter. From and To are
// inclusive calendar dates in news.DateLayout.
type Filter struct {
	Source     string
	Category   string
	Type       string
	Department string
	From       string
	To         string
}

// Query is a paginated listing request.
type Query struct {
	Filter
	Page  int
	Limit int
	Sort  Sort
}

// Page is one page of results.
type Page struct {
	Items []news.Item `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Field names a column that can be listed with Distinct.
type Field string

const (
	FieldSource     Field = "fuente"
	FieldCategory   Field = "categoria"
	FieldType       Field = "tipo"
	FieldDepartment Field = "departamento"
)

// ValueCount is one distinct value with its row count.
type ValueCount struct {
	Value string `db:"value" json:"value"`
	Count int    `db:"n" json:"count"`
}

// RelatedMode selects how Related picks neighbours.
type RelatedMode string

const (
	RelatedByCategory RelatedMode = "categoria"
	RelatedByType     RelatedMode = "tipo"
	RelatedRandom     RelatedMode = "aleatorio"
)

// ParseRelatedMode maps a mode name to a RelatedMode; unknown names report false.
func ParseRelatedMode(s string) (RelatedMode, bool) {
	switch m := RelatedMode(s); m {
	case RelatedByCategory, RelatedByType, RelatedRandom:
		return m, true
	case "":
		return RelatedByCategory, true
	}
	return "", false
}

func clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return page, limit
}

// where builds the WHERE clause for f plus the source exclusion list.
func (s *Store) where(ctx context.Context, f Filter) (string, []any, error) {
	var conds []string
	var args []any
	add := func(cond string, v string) {
		if v != "" {
			conds = append(conds, cond)
			args = append(args, v)
		}
	}
	add("fuente = ?", f.Source)
	add("categoria = ?", f.Category)
	add("tipo = ?", f.Type)
	add("departamento = ?", f.Department)
	add("fecha >= ?", f.From)
	add("fecha <= ?", f.To)

	excluded, err := s.excluded(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(excluded) > 0 {
		conds = append(conds, "fuente NOT IN (?)")
		args = append(args, excluded)
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// bind expands slice arguments and rebinds placeholders for the driver.
func (s *Store) bind(query string, args []any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.db.Rebind(q), a, nil
}

func (s *Store) selectItems(ctx context.Context, query string, args []any) ([]news.Item, error) {
	q, a, err := s.bind(query, args)
	if err != nil {
		return nil, err
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, q, a...); err != nil {
		return nil, err
	}
	items := make([]news.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

func (s *Store) count(ctx context.Context, query string, args []any) (int, error) {
	q, a, err := s.bind(query, args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, q, a...); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns one page of items matching q.
func (s *Store) List(ctx context.Context, q Query) (*Page, error) {
	page, limit := clamp(q.Page, q.Limit)
	order, ok := orderBy[q.Sort]
	if !ok {
		order = orderBy[SortDateDesc]
	}
	where, args, err := s.where(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	total, err := s.count(ctx, `SELECT COUNT(*) FROM noticias`+where, args)
	if err != nil {
		return nil, fmt.Errorf("list count: %w", err)
	}
	items, err := s.selectItems(ctx,
		`SELECT `+columns+` FROM noticias`+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit))
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return &Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Count returns the number of visible items matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args, err := s.where(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err := s.count(ctx, `SELECT COUNT(*) FROM noticias`+where, args)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Get returns one visible item by id.
func (s *Store) Get(ctx context.Context, id int64) (*news.Item, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+columns+` FROM noticias WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	if s.blocked != nil && s.blocked(r.Fuente) {
		return nil, ErrNotFound
	}
	it := r.item()
	return &it, nil
}

// Search runs a full-text query over title and summary. Every term must match.
func (s *Store) Search(ctx context.Context, keyword string, page, limit int) (*Page, error) {
	terms := strings.Fields(news.Fold(keyword))
	if len(terms) == 0 {
		return nil, ErrEmptySearch
	}
	page, limit = clamp(page, limit)

	where, args, err := s.where(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var from, match string
	var matchArg any
	switch s.db.DriverType() {
	case storage.Postgres:
		from = `noticias`
		match = `to_tsvector('spanish', titulo || ' ' || coalesce(resumen, '')) @@ plainto_tsquery('spanish', ?)`
		matchArg = strings.Join(terms, " ")
	default:
		from = `noticias JOIN noticias_fts ON noticias_fts.rowid = noticias.id`
		match = `noticias_fts MATCH ?`
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = `"` + t + `"`
		}
		matchArg = strings.Join(quoted, " ")
	}
	if where == "" {
		where = " WHERE " + match
	} else {
		where += " AND " + match
	}
	args = append(args, matchArg)

	total, err := s.count(ctx, `SELECT COUNT(*) FROM `+from+where, args)
	if err != nil {
		return nil, fmt.Errorf("search count: %w", err)
	}
	items, err := s.selectItems(ctx,
		`SELECT `+qualified()+` FROM `+from+where+` ORDER BY noticias.fecha DESC, noticias.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// qualified prefixes each column with the table name for joined queries.
func qualified() string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = "noticias." + c
	}
	return strings.Join(cols, ", ")
}

// Distinct lists the non-empty values of field with their visible row counts,
// most frequent first.
func (s *Store) Distinct(ctx context.Context, field Field) ([]ValueCount, error) {
	switch field {
	case FieldSource, FieldCategory, FieldType, FieldDepartment:
	default:
		return nil, fmt.Errorf("distinct: unknown field %q", field)
	}
	where, args, err := s.where(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("distinct: %w", err)
	}
	col := string(field)
	nonEmpty := col + " IS NOT NULL AND " + col + " <> ''"
	if where == "" {
		where = " WHERE " + nonEmpty
	} else {
		where += " AND " + nonEmpty
	}
	q, a, err := s.bind(`SELECT `+col+` AS value, COUNT(*) AS n FROM noticias`+where+
		` GROUP BY `+col+` ORDER BY n DESC, value ASC`, args)
	if err != nil {
		return nil, fmt.Errorf("distinct: %w", err)
	}
	var out []ValueCount
	if err := s.db.SelectContext(ctx, &out, q, a...); err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	return out, nil
}

// Related returns up to limit visible items sharing the base item's category
// or type, or a random sample, never including the base item.
func (s *Store) Related(ctx context.Context, baseID int64, mode RelatedMode, limit int) ([]news.Item, error) {
	base, err := s.Get(ctx, baseID)
	if err != nil {
		return nil, err
	}
	_, limit = clamp(1, limit)

	f := Filter{}
	order := "fecha DESC, id DESC"
	switch mode {
	case RelatedByType:
		if base.Type == "" {
			return []news.Item{}, nil
		}
		f.Type = base.Type
	case RelatedRandom:
		order = "RANDOM()"
	default:
		if base.Category == "" {
			return []news.Item{}, nil
		}
		f.Category = base.Category
	}
	where, args, err := s.where(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}
	if where == "" {
		where = " WHERE id <> ?"
	} else {
		where += " AND id <> ?"
	}
	args = append(args, baseID, limit)
	items, err := s.selectItems(ctx, `SELECT `+columns+` FROM noticias`+where+` ORDER BY `+order+` LIMIT ?`, args)
	if err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}
	return items, nil
}

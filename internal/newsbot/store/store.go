// Package store persists news items and serves the read queries behind the API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

// ErrNotFound is returned when a requested item does not exist or belongs to
// an excluded source.
var ErrNotFound = errors.New("item not found")

// scrapedLayout is fixed width so MAX() over the text column orders correctly.
const scrapedLayout = "2006-01-02T15:04:05.000000Z"

const columns = `id, titulo, link, categoria, tipo, fecha, resumen, autor, imagen, fuente, departamento, fecha_scraping, run_id`

// Store provides news persistence on top of a storage.DB.
type Store struct {
	db      *storage.DB
	logger  *zap.Logger
	blocked func(source string) bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExclusion hides rows whose source the predicate reports as blocked from
// every read query.
func WithExclusion(blocked func(source string) bool) Option {
	return func(s *Store) { s.blocked = blocked }
}

// New creates a Store. Call Migrate before first use.
func New(db *storage.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate applies the news schema.
func (s *Store) Migrate(ctx context.Context) ([]storage.MigrationResult, error) {
	return s.db.Migrate(ctx, Migrations())
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// row mirrors the noticias table.
type row struct {
	ID            int64          `db:"id"`
	Titulo        string         `db:"titulo"`
	Link          string         `db:"link"`
	Categoria     sql.NullString `db:"categoria"`
	Tipo          sql.NullString `db:"tipo"`
	Fecha         sql.NullString `db:"fecha"`
	Resumen       sql.NullString `db:"resumen"`
	Autor         sql.NullString `db:"autor"`
	Imagen        sql.NullString `db:"imagen"`
	Fuente        string         `db:"fuente"`
	Departamento  sql.NullString `db:"departamento"`
	FechaScraping string         `db:"fecha_scraping"`
	RunID         sql.NullString `db:"run_id"`
}

func (r row) item() news.Item {
	it := news.Item{
		ID:         r.ID,
		Title:      r.Titulo,
		Link:       r.Link,
		Category:   r.Categoria.String,
		Type:       r.Tipo.String,
		Summary:    r.Resumen.String,
		Author:     r.Autor.String,
		Image:      r.Imagen.String,
		Source:     r.Fuente,
		Department: r.Departamento.String,
		RunID:      r.RunID.String,
	}
	if r.Fecha.Valid {
		if t, err := time.ParseInLocation(news.DateLayout, r.Fecha.String, time.Local); err == nil {
			it.PublishDate = t
		}
	}
	it.ScrapedAt, _ = parseScraped(r.FechaScraping)
	return it
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatScraped(t time.Time) string {
	return t.UTC().Format(scrapedLayout)
}

// parseScraped accepts the fixed layout plus the forms older rows used.
func parseScraped(s string) (time.Time, error) {
	for _, layout := range []string{scrapedLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", news.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised scrape timestamp %q", s)
}

// FindDuplicate reports whether a row with the same link or the same title exists.
func (s *Store) FindDuplicate(ctx context.Context, link, title string) (bool, error) {
	var one int
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`SELECT 1 FROM noticias WHERE link = ? OR titulo = ? LIMIT 1`), link, title).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find duplicate: %w", err)
	}
	return true, nil
}

// Insert stores item and sets its ID. It returns false without error when a
// uniqueness constraint already holds a matching row.
func (s *Store) Insert(ctx context.Context, item *news.Item) (bool, error) {
	if item.ScrapedAt.IsZero() {
		item.ScrapedAt = time.Now()
	}
	query := s.db.Rebind(`INSERT INTO noticias
		(titulo, link, categoria, tipo, fecha, resumen, autor, imagen, fuente, departamento, fecha_scraping, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`)
	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		item.Title, item.Link,
		nullable(item.Category), nullable(item.Type), nullable(item.Fecha()),
		nullable(item.Summary), nullable(item.Author), nullable(item.Image),
		item.Source, nullable(item.Department),
		formatScraped(item.ScrapedAt), nullable(item.RunID),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	item.ID = id
	return true, nil
}

// LastScrapedAt returns the newest scrape timestamp recorded for source.
func (s *Store) LastScrapedAt(ctx context.Context, source string) (time.Time, bool, error) {
	var last sql.NullString
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`SELECT MAX(fecha_scraping) FROM noticias WHERE fuente = ?`), source).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last scraped at: %w", err)
	}
	if !last.Valid || last.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseScraped(last.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// PurgeSources deletes every row whose source matches one of names after
// folding case and diacritics. It returns the number of rows removed.
func (s *Store) PurgeSources(ctx context.Context, names []string) (int64, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if f := news.Fold(n); f != "" {
			want[f] = true
		}
	}
	if len(want) == 0 {
		return 0, nil
	}
	stored, err := s.sourceNames(ctx)
	if err != nil {
		return 0, err
	}
	var targets []string
	for _, name := range stored {
		if want[news.Fold(name)] {
			targets = append(targets, name)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM noticias WHERE fuente IN (?)`, targets)
	if err != nil {
		return 0, fmt.Errorf("purge sources: %w", err)
	}
	var removed int64
	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge sources: %w", err)
	}
	s.logger.Info("purged sources", zap.Strings("sources", targets), zap.Int64("rows", removed))
	return removed, nil
}

func (s *Store) sourceNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT DISTINCT fuente FROM noticias`); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return names, nil
}

// excluded returns the stored source names hidden from reads.
func (s *Store) excluded(ctx context.Context) ([]string, error) {
	if s.blocked == nil {
		return nil, nil
	}
	names, err := s.sourceNames(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if s.blocked(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

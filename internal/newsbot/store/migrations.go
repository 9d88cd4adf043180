package store

import "github.com/RobinCoderZhao/newsdesk/pkg/storage"

// Migrations returns the ordered schema steps for both drivers.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Name: "create noticias",
			Statements: map[storage.Driver][]string{
				storage.SQLite: {`CREATE TABLE IF NOT EXISTS noticias (
					id             INTEGER PRIMARY KEY AUTOINCREMENT,
					titulo         TEXT NOT NULL,
					link           TEXT NOT NULL UNIQUE,
					categoria      TEXT,
					tipo           TEXT,
					fecha          TEXT,
					resumen        TEXT,
					autor          TEXT,
					imagen         TEXT,
					fuente         TEXT NOT NULL,
					departamento   TEXT,
					fecha_scraping TEXT NOT NULL,
					run_id         TEXT
				)`},
				storage.Postgres: {`CREATE TABLE IF NOT EXISTS noticias (
					id             BIGSERIAL PRIMARY KEY,
					titulo         TEXT NOT NULL,
					link           TEXT NOT NULL UNIQUE,
					categoria      TEXT,
					tipo           TEXT,
					fecha          TEXT,
					resumen        TEXT,
					autor          TEXT,
					imagen         TEXT,
					fuente         TEXT NOT NULL,
					departamento   TEXT,
					fecha_scraping TEXT NOT NULL,
					run_id         TEXT
				)`},
			},
		},
		{
			Name: "unique titulo link",
			Statements: both(
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_noticias_titulo_link ON noticias(titulo, link)`,
			),
		},
		{
			Name: "secondary indexes",
			Statements: both(
				`CREATE INDEX IF NOT EXISTS idx_noticias_fecha ON noticias(fecha)`,
				`CREATE INDEX IF NOT EXISTS idx_noticias_fuente ON noticias(fuente)`,
				`CREATE INDEX IF NOT EXISTS idx_noticias_categoria ON noticias(categoria)`,
				`CREATE INDEX IF NOT EXISTS idx_noticias_departamento ON noticias(departamento)`,
				`CREATE INDEX IF NOT EXISTS idx_noticias_tipo ON noticias(tipo)`,
			),
		},
		{
			Name: "full text search",
			Statements: map[storage.Driver][]string{
				storage.SQLite: {
					`CREATE VIRTUAL TABLE IF NOT EXISTS noticias_fts USING fts5(
						titulo, resumen,
						content='noticias', content_rowid='id',
						tokenize='unicode61 remove_diacritics 2'
					)`,
					`CREATE TRIGGER IF NOT EXISTS noticias_fts_ai AFTER INSERT ON noticias BEGIN
						INSERT INTO noticias_fts(rowid, titulo, resumen) VALUES (new.id, new.titulo, new.resumen);
					END`,
					`CREATE TRIGGER IF NOT EXISTS noticias_fts_ad AFTER DELETE ON noticias BEGIN
						INSERT INTO noticias_fts(noticias_fts, rowid, titulo, resumen) VALUES ('delete', old.id, old.titulo, old.resumen);
					END`,
					`CREATE TRIGGER IF NOT EXISTS noticias_fts_au AFTER UPDATE ON noticias BEGIN
						INSERT INTO noticias_fts(noticias_fts, rowid, titulo, resumen) VALUES ('delete', old.id, old.titulo, old.resumen);
						INSERT INTO noticias_fts(rowid, titulo, resumen) VALUES (new.id, new.titulo, new.resumen);
					END`,
					`INSERT INTO noticias_fts(noticias_fts) VALUES ('rebuild')`,
				},
				storage.Postgres: {
					`CREATE INDEX IF NOT EXISTS idx_noticias_fts ON noticias
						USING GIN (to_tsvector('spanish', titulo || ' ' || coalesce(resumen, '')))`,
				},
			},
			// The triggers keep the index in sync once it exists; the
			// rebuild only backfills rows stored before the table was created.
			Applied: map[storage.Driver]string{
				storage.SQLite: `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'noticias_fts'`,
			},
		},
	}
}

func both(stmts ...string) map[storage.Driver][]string {
	return map[storage.Driver][]string{storage.SQLite: stmts, storage.Postgres: stmts}
}

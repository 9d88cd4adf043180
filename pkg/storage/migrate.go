package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Migration is one idempotent schema step. Statements are keyed by driver;
// a driver without statements skips the step. Applied optionally holds a
// per-driver query returning a single count; a non-zero count marks the step
// as already applied and skips it.
type Migration struct {
	Name       string
	Statements map[Driver][]string
	Applied    map[Driver]string
}

// MigrationResult reports the outcome of a single migration.
type MigrationResult struct {
	Name    string
	Skipped bool
	Err     error
}

// MigrationError is returned by Migrate when at least one step failed.
type MigrationError struct {
	Results []MigrationResult
}

func (e *MigrationError) Error() string {
	var failed []string
	for _, r := range e.Results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.Name, r.Err))
		}
	}
	return "migrate: " + strings.Join(failed, "; ")
}

// Unwrap exposes the first step error.
func (e *MigrationError) Unwrap() error {
	for _, r := range e.Results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Migrate runs every migration in order, stopping at the first failure since
// later steps usually depend on earlier ones. It returns one result per
// attempted step.
func (db *DB) Migrate(ctx context.Context, migrations []Migration) ([]MigrationResult, error) {
	results := make([]MigrationResult, 0, len(migrations))
	for _, m := range migrations {
		stmts, ok := m.Statements[db.driver]
		if !ok || len(stmts) == 0 {
			results = append(results, MigrationResult{Name: m.Name, Skipped: true})
			continue
		}

		if check, ok := m.Applied[db.driver]; ok {
			var n int
			if err := db.GetContext(ctx, &n, check); err != nil {
				results = append(results, MigrationResult{Name: m.Name, Err: err})
				db.logger.Error("migration check failed", zap.String("migration", m.Name), zap.Error(err))
				return results, &MigrationError{Results: results}
			}
			if n > 0 {
				results = append(results, MigrationResult{Name: m.Name, Skipped: true})
				continue
			}
		}

		var stepErr error
		for _, stmt := range stmts {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				stepErr = err
				break
			}
		}
		results = append(results, MigrationResult{Name: m.Name, Err: stepErr})
		if stepErr != nil {
			db.logger.Error("migration failed", zap.String("migration", m.Name), zap.Error(stepErr))
			return results, &MigrationError{Results: results}
		}
		db.logger.Debug("migration applied", zap.String("migration", m.Name))
	}
	db.logger.Info("database migration completed", zap.Int("steps", len(results)))
	return results, nil
}

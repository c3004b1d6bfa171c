package migration

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// fileNamePattern matches {version}_{description}.sql
var fileNamePattern = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.sql$`)

// manager implements MigrationManager on top of the embedded migration files
type manager struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewManager creates a MigrationManager that applies the embedded migrations
// to the given database. A nil logger falls back to slog.Default().
func NewManager(db *sql.DB, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{db: db, logger: logger}
}

// RunMigrations executes all pending migrations in sequential order
func (m *manager) RunMigrations(ctx context.Context) error {
	start := time.Now()

	if err := m.initializeVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "schema is up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", slog.Int("pending", len(pending)))

	for _, migration := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.apply(ctx, migration); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(pending)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// apply executes one migration inside a transaction and records it
func (m *manager) apply(ctx context.Context, migration Migration) error {
	start := time.Now()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return NewMigrationError(migration.Version, migration.File, "begin", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()
		return NewMigrationError(migration.Version, migration.File, "execute",
			fmt.Errorf("%w: %v", ErrMigrationFailed, err))
	}

	record := `
		INSERT INTO schema_migrations (version, applied_at, execution_time_ms, checksum)
		VALUES (?, ?, ?, ?)
	`
	elapsed := time.Since(start)
	_, err = tx.ExecContext(ctx, record,
		migration.Version,
		time.Now().UTC().Format(time.RFC3339),
		elapsed.Milliseconds(),
		migration.Checksum,
	)
	if err != nil {
		_ = tx.Rollback()
		return NewMigrationError(migration.Version, migration.File, "record", err)
	}

	if err := tx.Commit(); err != nil {
		return NewMigrationError(migration.Version, migration.File, "commit", err)
	}

	m.logger.InfoContext(ctx, "migration applied",
		slog.String("version", migration.Version),
		slog.String("description", migration.Description),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// initializeVersionTable creates the schema_migrations table if needed
func (m *manager) initializeVersionTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL DEFAULT 0,
			checksum TEXT NOT NULL DEFAULT ''
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// GetAppliedVersions returns the migration versions that have been applied
func (m *manager) GetAppliedVersions(ctx context.Context) ([]string, error) {
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]string, 0, len(applied))
	for _, a := range applied {
		versions = append(versions, a.Version)
	}
	return versions, nil
}

// GetPendingMigrations returns migrations that have not been applied yet
func (m *manager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	all, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = true
	}

	var pending []Migration
	for _, migration := range all {
		if !appliedSet[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// GetMigrationStatus returns status information about migrations
func (m *manager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	return status, nil
}

// appliedMigrations reads the schema_migrations table ordered by version
func (m *manager) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.initializeVersionTable(ctx); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY version
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &elapsedMS, &record.Checksum); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVersionTableCorrupt, err)
		}
		ts, err := time.Parse(time.RFC3339, appliedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid applied_at %q", ErrVersionTableCorrupt, appliedAt)
		}
		record.AppliedAt = ts
		record.ExecutionTime = time.Duration(elapsedMS) * time.Millisecond
		applied = append(applied, record)
	}
	return applied, rows.Err()
}

// loadMigrations parses the embedded migration files sorted by version
func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	seen := make(map[string]string)
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		match := fileNamePattern.FindStringSubmatch(name)
		if match == nil {
			return nil, NewMigrationError("", name, "parse", ErrInvalidMigrationFile)
		}

		version, description := match[1], match[2]
		if prev, ok := seen[version]; ok {
			return nil, NewMigrationError(version, name, "parse",
				fmt.Errorf("%w: conflicts with %s", ErrDuplicateVersion, prev))
		}
		seen[version] = name

		content, err := fs.ReadFile(migrationFS, path.Join("migrations", name))
		if err != nil {
			return nil, NewMigrationError(version, name, "read", err)
		}
		if len(strings.TrimSpace(string(content))) == 0 {
			return nil, NewMigrationError(version, name, "parse", ErrInvalidMigrationFile)
		}

		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(description, "_", " "),
			SQL:         string(content),
			File:        name,
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

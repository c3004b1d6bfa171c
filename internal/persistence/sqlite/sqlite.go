// Package sqlite provides the SQLite-backed persistence layer.
//
// Store owns the connection pool and hands out the repository
// implementations defined by the persistence package. Open the store,
// run Migrate once at startup, then wire the repositories into the
// application services.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/counseling-intake/internal/persistence/sqlite/migration"
)

// Store bundles the SQLite repositories behind a single connection pool.
type Store struct {
	pool     *ConnectionPool
	migrator migration.MigrationManager

	users    *UserRepository
	requests *RequestRepository
	sessions *SessionRepository
}

// Open creates a connection pool for the given configuration and returns a
// Store ready to migrate and serve repositories.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	return &Store{
		pool:     pool,
		migrator: migration.NewManager(pool.DB(), logger),
		users:    NewUserRepository(pool),
		requests: NewRequestRepository(pool),
		sessions: NewSessionRepository(pool),
	}, nil
}

// Migrate applies any pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrator.RunMigrations(ctx)
}

// Ping tests the underlying database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Users returns the account repository.
func (s *Store) Users() *UserRepository {
	return s.users
}

// Requests returns the counseling request repository.
func (s *Store) Requests() *RequestRepository {
	return s.requests
}

// Sessions returns the auth session repository.
func (s *Store) Sessions() *SessionRepository {
	return s.sessions
}

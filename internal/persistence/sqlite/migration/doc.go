// Package migration provides schema management for the SQLite store.
//
// Migration files are compiled into the binary and executed sequentially
// at startup. Each file runs inside its own transaction and is recorded in
// a schema_migrations table so it is applied exactly once. File names
// follow the convention {version}_{description}.sql, for example
// "001_initial_schema.sql".
//
// The package also owns SQLite connection configuration: PRAGMA settings,
// pool sizing and database file creation.
package migration

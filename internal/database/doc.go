// Package database provides the PostgreSQL connection pool for the optional
// session-audit store. The bridge itself holds no other persistent state:
// the catalog lives in memory and tokens are never persisted.
package database

// Package audit persists relay session lifecycle events to PostgreSQL for
// diagnostics. It is optional: the bridge runs without it when no audit
// database is configured. Events carry session IDs, states, close reasons
// and frame counts, never tokens or frame payloads.
package audit

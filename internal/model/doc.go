// Package model defines shared data types used across the feed bridge.
//
// Conventions:
//   - Instrument records are immutable once parsed from the catalog.
//   - Timestamps: int64 microseconds since Unix epoch where persisted.
//   - IDs: string for instrument keys, uuid.UUID for relay session IDs.
package model

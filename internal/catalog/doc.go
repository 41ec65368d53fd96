// Package catalog resolves the target derivative contract from the daily
// instrument catalog.
//
// The catalog is fetched at most once per process: concurrent first callers
// collapse into a single fetch (singleflight), and after the first success
// both the catalog and the resolved contract are immutable. A failed fetch
// leaves the cache empty, so the next caller retries.
package catalog

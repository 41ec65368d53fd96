package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rgupta/feedbridge/internal/metrics"
	"github.com/rgupta/feedbridge/internal/model"
)

// Fetcher downloads and parses the instrument catalog.
type Fetcher interface {
	FetchCatalog(ctx context.Context, url string) ([]model.Instrument, error)
}

// Config holds resolver settings.
type Config struct {
	URL         string        // catalog endpoint (gzip-compressed JSON array)
	Underlying  string        // underlying name the trading symbol must contain
	TargetMonth string        // expiry year-month, "YYYY-MM"
	Exchange    string        // exchange segment for the canonical symbol
	Timeout     time.Duration // bound on the catalog fetch
}

// Resolver caches the instrument catalog and the resolved target contract
// for the process lifetime. Single-writer, many-reader: the first successful
// Resolve populates both; nothing overwrites them afterwards.
type Resolver struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger

	flight singleflight.Group

	mu       sync.RWMutex
	catalog  []model.Instrument
	contract model.ResolvedContract
	resolved bool
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config, fetcher Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Resolve returns the cached catalog, fetching it on first use. Concurrent
// first callers share one fetch and observe the same result, success or
// failure. The shared fetch is detached from any single caller's
// cancellation so one impatient caller cannot fail the cohort.
func (r *Resolver) Resolve(ctx context.Context) ([]model.Instrument, error) {
	r.mu.RLock()
	if r.resolved {
		cat := r.catalog
		r.mu.RUnlock()
		return cat, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.flight.Do("catalog", func() (any, error) {
		// A caller that queued behind a successful flight sees the cache.
		r.mu.RLock()
		if r.resolved {
			cat := r.catalog
			r.mu.RUnlock()
			return cat, nil
		}
		r.mu.RUnlock()

		fctx := context.WithoutCancel(ctx)
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, r.cfg.Timeout)
			defer cancel()
		}

		instruments, err := r.fetcher.FetchCatalog(fctx, r.cfg.URL)
		if err != nil {
			metrics.CatalogFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.CatalogFetches.WithLabelValues("ok").Inc()

		contract := r.selectContract(instruments)
		if contract.IsZero() {
			r.logger.Warn("no contract matched target",
				"underlying", r.cfg.Underlying,
				"month", r.cfg.TargetMonth,
				"instruments", len(instruments),
			)
		} else {
			r.logger.Info("resolved target contract",
				"key", contract.InstrumentKey,
				"symbol", contract.Symbol,
			)
		}

		r.mu.Lock()
		r.catalog = instruments
		r.contract = contract
		r.resolved = true
		r.mu.Unlock()

		return instruments, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Instrument), nil
}

// Contract returns the resolved target contract, resolving the catalog first
// if needed. An empty contract means no instrument matched.
func (r *Resolver) Contract(ctx context.Context) (model.ResolvedContract, error) {
	if _, err := r.Resolve(ctx); err != nil {
		return model.ResolvedContract{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contract, nil
}

// selectContract scans the catalog in document order and returns the first
// future on the configured underlying expiring in the target month. The scan
// stops at the first match; document order is authoritative.
func (r *Resolver) selectContract(instruments []model.Instrument) model.ResolvedContract {
	for _, in := range instruments {
		if in.InstrumentType != "FUT" {
			continue
		}
		if !strings.Contains(in.TradingSymbol, r.cfg.Underlying) {
			continue
		}
		if expiryMonth(in.Expiry) != r.cfg.TargetMonth {
			continue
		}
		return model.ResolvedContract{
			InstrumentKey: in.InstrumentKey,
			Symbol:        canonicalSymbol(in.TradingSymbol, r.cfg.Exchange),
		}
	}
	return model.ResolvedContract{}
}

// expiryMonth derives "YYYY-MM" from an expiry date string.
func expiryMonth(expiry string) string {
	if t, err := time.Parse("2006-01-02", expiry); err == nil {
		return t.Format("2006-01")
	}
	if len(expiry) >= 7 {
		return expiry[:7]
	}
	return ""
}

// symbolPattern matches raw symbols shaped like "BANKNIFTY FUT 30 APR 25".
var symbolPattern = regexp.MustCompile(`^(\S+) FUT (\d{1,2}) ([A-Z]{3}) (\d{2})$`)

// canonicalSymbol rewrites a raw trading symbol into the exchange-qualified
// feed form, e.g. "BANKNIFTY FUT 30 APR 25" -> "NSE_FO:BANKNIFTY25APRFUT".
// Symbols that do not parse fall back to whitespace stripping.
func canonicalSymbol(raw, exchange string) string {
	m := symbolPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return exchange + ":" + strings.ReplaceAll(raw, " ", "")
	}
	return fmt.Sprintf("%s:%s%s%sFUT", exchange, m[1], m[4], m[3])
}

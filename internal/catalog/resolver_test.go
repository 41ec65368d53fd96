package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rgupta/feedbridge/internal/model"
)

// fakeFetcher counts calls and serves a canned catalog or error.
type fakeFetcher struct {
	calls       atomic.Int64
	instruments []model.Instrument
	err         error
	delay       time.Duration
}

func (f *fakeFetcher) FetchCatalog(ctx context.Context, url string) ([]model.Instrument, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments, nil
}

func testConfig() Config {
	return Config{
		URL:         "https://assets.example.com/instruments.json.gz",
		Underlying:  "BANKNIFTY",
		TargetMonth: "2025-04",
		Exchange:    "NSE_FO",
		Timeout:     5 * time.Second,
	}
}

func inst(key, symbol, typ, expiry string) model.Instrument {
	return model.Instrument{
		InstrumentKey:  key,
		TradingSymbol:  symbol,
		InstrumentType: typ,
		Expiry:         expiry,
	}
}

func TestResolverContract(t *testing.T) {
	t.Run("matches and canonicalizes", func(t *testing.T) {
		f := &fakeFetcher{instruments: []model.Instrument{
			inst("NSE_FO|11111", "BANKNIFTY 52000 CE", "CE", "2025-04-30"),
			inst("NSE_FO|22222", "BANKNIFTY FUT 27 MAR 25", "FUT", "2025-03-27"),
			inst("NSE_FO|12345", "BANKNIFTY FUT 30 APR 25", "FUT", "2025-04-30"),
			inst("NSE_FO|33333", "BANKNIFTY FUT 29 MAY 25", "FUT", "2025-05-29"),
		}}
		r := NewResolver(testConfig(), f, nil)

		c, err := r.Contract(context.Background())
		if err != nil {
			t.Fatalf("Contract() error = %v", err)
		}
		if c.InstrumentKey != "NSE_FO|12345" {
			t.Errorf("InstrumentKey = %q, want %q", c.InstrumentKey, "NSE_FO|12345")
		}
		if c.Symbol != "NSE_FO:BANKNIFTY25APRFUT" {
			t.Errorf("Symbol = %q, want %q", c.Symbol, "NSE_FO:BANKNIFTY25APRFUT")
		}
	})

	t.Run("first match in document order wins", func(t *testing.T) {
		f := &fakeFetcher{instruments: []model.Instrument{
			inst("NSE_FO|1", "BANKNIFTY FUT 03 APR 25", "FUT", "2025-04-03"),
			inst("NSE_FO|2", "BANKNIFTY FUT 30 APR 25", "FUT", "2025-04-30"),
		}}
		r := NewResolver(testConfig(), f, nil)

		c, err := r.Contract(context.Background())
		if err != nil {
			t.Fatalf("Contract() error = %v", err)
		}
		if c.InstrumentKey != "NSE_FO|1" {
			t.Errorf("InstrumentKey = %q, want first match NSE_FO|1", c.InstrumentKey)
		}
	})

	t.Run("no match yields empty contract, no error", func(t *testing.T) {
		f := &fakeFetcher{instruments: []model.Instrument{
			inst("NSE_FO|1", "NIFTY FUT 24 APR 25", "FUT", "2025-04-24"),
			inst("NSE_FO|2", "BANKNIFTY FUT 29 MAY 25", "FUT", "2025-05-29"),
		}}
		r := NewResolver(testConfig(), f, nil)

		c, err := r.Contract(context.Background())
		if err != nil {
			t.Fatalf("Contract() error = %v", err)
		}
		if !c.IsZero() {
			t.Errorf("contract = %+v, want empty", c)
		}
	})

	t.Run("unparseable symbol falls back to whitespace stripping", func(t *testing.T) {
		f := &fakeFetcher{instruments: []model.Instrument{
			inst("NSE_FO|9", "BANKNIFTY APRFUT 25", "FUT", "2025-04-30"),
		}}
		r := NewResolver(testConfig(), f, nil)

		c, err := r.Contract(context.Background())
		if err != nil {
			t.Fatalf("Contract() error = %v", err)
		}
		if c.Symbol != "NSE_FO:BANKNIFTYAPRFUT25" {
			t.Errorf("Symbol = %q, want fallback form", c.Symbol)
		}
	})
}

func TestResolverCaching(t *testing.T) {
	t.Run("second call hits cache", func(t *testing.T) {
		f := &fakeFetcher{instruments: []model.Instrument{
			inst("NSE_FO|12345", "BANKNIFTY FUT 30 APR 25", "FUT", "2025-04-30"),
		}}
		r := NewResolver(testConfig(), f, nil)

		if _, err := r.Resolve(context.Background()); err != nil {
			t.Fatalf("first Resolve() error = %v", err)
		}
		if _, err := r.Resolve(context.Background()); err != nil {
			t.Fatalf("second Resolve() error = %v", err)
		}
		if got := f.calls.Load(); got != 1 {
			t.Errorf("fetch calls = %d, want 1", got)
		}
	})

	t.Run("failure leaves cache empty and is retryable", func(t *testing.T) {
		f := &fakeFetcher{err: errors.New("network down")}
		r := NewResolver(testConfig(), f, nil)

		if _, err := r.Resolve(context.Background()); err == nil {
			t.Fatal("Resolve() expected error")
		}

		f.err = nil
		f.instruments = []model.Instrument{
			inst("NSE_FO|12345", "BANKNIFTY FUT 30 APR 25", "FUT", "2025-04-30"),
		}
		cat, err := r.Resolve(context.Background())
		if err != nil {
			t.Fatalf("retry Resolve() error = %v", err)
		}
		if len(cat) != 1 {
			t.Errorf("catalog len = %d, want 1", len(cat))
		}
		if got := f.calls.Load(); got != 2 {
			t.Errorf("fetch calls = %d, want 2", got)
		}
	})

	t.Run("concurrent first callers share one fetch", func(t *testing.T) {
		f := &fakeFetcher{
			delay: 50 * time.Millisecond,
			instruments: []model.Instrument{
				inst("NSE_FO|12345", "BANKNIFTY FUT 30 APR 25", "FUT", "2025-04-30"),
			},
		}
		r := NewResolver(testConfig(), f, nil)

		const n = 32
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := r.Resolve(context.Background())
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}
		if got := f.calls.Load(); got != 1 {
			t.Errorf("fetch calls = %d, want exactly 1", got)
		}
	})
}

func TestCanonicalSymbol(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"BANKNIFTY FUT 30 APR 25", "NSE_FO:BANKNIFTY25APRFUT"},
		{"NIFTY FUT 5 JUN 25", "NSE_FO:NIFTY25JUNFUT"},
		{"BANKNIFTY FUT 30 APR 25 ", "NSE_FO:BANKNIFTY25APRFUT"},
		{"BANKNIFTY-APR25-FUT", "NSE_FO:BANKNIFTY-APR25-FUT"},
		{"BANKNIFTY APR FUT", "NSE_FO:BANKNIFTYAPRFUT"},
	}
	for _, tt := range tests {
		if got := canonicalSymbol(tt.raw, "NSE_FO"); got != tt.want {
			t.Errorf("canonicalSymbol(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExpiryMonth(t *testing.T) {
	tests := []struct {
		expiry string
		want   string
	}{
		{"2025-04-30", "2025-04"},
		{"2025-04", "2025-04"},
		{"bad", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expiryMonth(tt.expiry); got != tt.want {
			t.Errorf("expiryMonth(%q) = %q, want %q", tt.expiry, got, tt.want)
		}
	}
}

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgupta/feedbridge/internal/metrics"
	"github.com/rgupta/feedbridge/internal/relay"
)

// Config holds audit writer settings.
type Config struct {
	BatchSize     int           // rows per insert batch (default: 100)
	FlushInterval time.Duration // max time a row waits in the batch (default: 1s)
	BufferSize    int           // intake channel capacity (default: 1000)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts int64
	Flushes int64
	Drops   int64
	Errors  int64
}

// SessionWriter consumes relay session events and writes them to the
// relay_sessions table in batches. It satisfies relay.Recorder and never
// blocks the relay: a full intake buffer drops the event with a warning.
type SessionWriter struct {
	cfg    Config
	logger *slog.Logger

	input chan relay.SessionEvent
	db    *pgxpool.Pool

	batch       []sessionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// sessionRow is the persisted form of a session event.
type sessionRow struct {
	SessionID uuid.UUID
	State     string
	Reason    string
	Frames    int64
	At        int64 // µs since epoch
}

// NewSessionWriter creates a SessionWriter.
func NewSessionWriter(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *SessionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan relay.SessionEvent, cfg.BufferSize),
		batch:  make([]sessionRow, 0, cfg.BatchSize),
	}
}

// RecordSession implements relay.Recorder. Non-blocking.
func (w *SessionWriter) RecordSession(ev relay.SessionEvent) {
	select {
	case w.input <- ev:
	default:
		w.batchMu.Lock()
		w.metrics.Drops++
		w.batchMu.Unlock()
		w.logger.Warn("audit buffer full, dropping session event", "session", ev.SessionID)
	}
}

// Start begins consuming events and writing to the database.
func (w *SessionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("session audit writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *SessionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping session audit writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("session audit writer stopped")
	case <-ctx.Done():
		w.logger.Warn("session audit writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *SessionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the intake channel and accumulates batches.
func (w *SessionWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case ev := <-w.input:
			w.handleEvent(ev)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *SessionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *SessionWriter) handleEvent(ev relay.SessionEvent) {
	row := w.transform(ev)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a SessionEvent to a sessionRow.
func (w *SessionWriter) transform(ev relay.SessionEvent) sessionRow {
	return sessionRow{
		SessionID: ev.SessionID,
		State:     ev.State,
		Reason:    ev.Reason,
		Frames:    ev.Frames,
		At:        ev.At.UnixMicro(),
	}
}

// flush writes the current batch to the database.
func (w *SessionWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]sessionRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(batch); err != nil {
		w.logger.Error("audit batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()
	metrics.AuditFlushes.Inc()

	w.logger.Debug("flushed session events",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch.
func (w *SessionWriter) batchInsert(rows []sessionRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO relay_sessions (session_id, state, reason, frames, at)
			VALUES ($1, $2, $3, $4, $5)
		`, r.SessionID, r.State, r.Reason, r.Frames, r.At)
	}

	// The final flush runs after w.ctx is canceled; the insert must outlive it.
	results := w.db.SendBatch(context.WithoutCancel(w.ctx), batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}

	return nil
}

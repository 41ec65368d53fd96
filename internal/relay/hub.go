package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rgupta/feedbridge/internal/metrics"
	"github.com/rgupta/feedbridge/internal/model"
)

// Hub accepts client connections and tracks live sessions. Opening a session
// never blocks on another session's I/O: each forwarding loop runs in its
// own goroutine and owns its resources exclusively.
type Hub struct {
	cfg      Config
	auth     Authorizer
	dial     Dialer
	logger   *slog.Logger
	recorder Recorder

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool

	wg sync.WaitGroup
}

// NewHub creates a Hub. recorder may be nil.
func NewHub(cfg Config, auth Authorizer, dial Dialer, recorder Recorder, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = DialUpstream
	}
	return &Hub{
		cfg:      cfg,
		auth:     auth,
		dial:     dial,
		logger:   logger,
		recorder: recorder,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open runs the session handshake for one client: token check, feed
// authorization, dedicated upstream dial, then starts the forwarding loop
// and returns. A missing token is rejected before any upstream contact.
func (h *Hub) Open(ctx context.Context, token string, sink Sink) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	s := &Session{
		ID:     uuid.New(),
		logger: h.logger,
		sink:   sink,
		done:   make(chan struct{}),
		onClose: func(s *Session, reason string) {
			h.unregister(s, reason)
		},
	}
	s.setState(StateConnecting)

	hctx, cancel := context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	defer cancel()

	s.setState(StateAuthorizing)
	socketURL, err := h.auth.AuthorizeFeed(hctx, token)
	if err != nil {
		s.closeWith("feed authorization failed")
		return nil, err
	}

	conn, err := h.dial(hctx, socketURL, token)
	if err != nil {
		s.closeWith("upstream dial failed")
		return nil, err
	}
	s.conn = conn

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.closeWith("hub closed")
		return nil, ErrHubClosed
	}
	h.sessions[s.ID] = s
	h.mu.Unlock()

	s.setState(StateStreaming)
	h.record(s, "streaming", "")
	metrics.RelaySessionsOpened.Inc()
	metrics.RelaySessionsActive.Inc()

	h.wg.Add(1)
	go s.forward(&h.wg)

	// Client context cancellation is the only external cancellation path.
	go func() {
		select {
		case <-ctx.Done():
			s.closeWith("context canceled")
		case <-s.done:
		}
	}()

	h.logger.Info("session streaming", "session", s.ID)

	return s, nil
}

// ConsumeSignals drains the scheduler's publish channel, fanning each signal
// out to every live session's sink. Runs until the channel closes or ctx is
// canceled.
func (h *Hub) ConsumeSignals(ctx context.Context, signals <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			h.Broadcast(sig)
		}
	}
}

// Broadcast pushes a signal to every live session. A failed sink write is
// left to that session's own teardown; the broadcast continues.
func (h *Hub) Broadcast(sig model.Signal) {
	for _, s := range h.snapshot() {
		if err := s.sink.SendSignal(sig); err != nil {
			h.logger.Debug("signal push failed", "session", s.ID, "error", err)
		}
	}
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close tears down every session and waits for the forwarding loops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	for _, s := range h.snapshot() {
		s.closeWith("hub shutdown")
	}
	h.wg.Wait()

	h.logger.Info("relay hub closed")
}

// snapshot copies the live session list so callers never hold the hub lock
// across sink I/O.
func (h *Hub) snapshot() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) unregister(s *Session, reason string) {
	h.mu.Lock()
	_, live := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	if live {
		metrics.RelaySessionsActive.Dec()
	}
	h.record(s, "closed", reason)
}

func (h *Hub) record(s *Session, state, reason string) {
	if h.recorder == nil {
		return
	}
	h.recorder.RecordSession(SessionEvent{
		SessionID: s.ID,
		State:     state,
		Reason:    reason,
		Frames:    s.frames.Load(),
		At:        time.Now(),
	})
}

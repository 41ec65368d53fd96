package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rgupta/feedbridge/internal/metrics"
)

// Session relays frames from one dedicated upstream socket to one downstream
// client. It is created by Hub.Open and torn down on client disconnect or the
// first I/O error on either side. No reconnection.
type Session struct {
	ID uuid.UUID

	logger *slog.Logger
	sink   Sink
	conn   UpstreamConn

	state  atomic.Int32
	frames atomic.Int64

	done      chan struct{}
	closeOnce sync.Once

	// onClose is set by the hub to unregister the session and record the
	// terminal event.
	onClose func(s *Session, reason string)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Frames returns the number of upstream frames forwarded so far.
func (s *Session) Frames() int64 {
	return s.frames.Load()
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down: the client-disconnect cancellation path.
// Safe to call multiple times and from any goroutine.
func (s *Session) Close() {
	s.closeWith("client disconnect")
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// closeWith transitions the session to Closed exactly once, closing the
// upstream socket and the downstream sink.
func (s *Session) closeWith(reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		if s.conn != nil {
			s.conn.Close()
		}
		if err := s.sink.Close(); err != nil {
			s.logger.Debug("sink close", "session", s.ID, "error", err)
		}
		close(s.done)

		s.logger.Info("session closed",
			"session", s.ID,
			"reason", reason,
			"frames", s.frames.Load(),
		)

		if s.onClose != nil {
			s.onClose(s, reason)
		}
	})
}

// forward is the streaming loop: an unbounded read of upstream frames, each
// forwarded byte-for-byte to this session's sink only. Runs in its own
// goroutine; exits on the first read or write error.
func (s *Session) forward(wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.closeWith("upstream read: " + err.Error())
			return
		}

		if err := s.sink.SendFrame(data); err != nil {
			s.closeWith("downstream write: " + err.Error())
			return
		}

		s.frames.Add(1)
		metrics.RelayFramesForwarded.Inc()
	}
}

package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rgupta/feedbridge/internal/model"
)

// Errors
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrHubClosed    = errors.New("relay hub closed")
)

// State is the lifecycle state of a client session.
type State int32

const (
	StateConnecting State = iota
	StateAuthorizing
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds relay settings.
type Config struct {
	HandshakeTimeout time.Duration // bound on feed authorization + upstream dial
	WriteTimeout     time.Duration // downstream write deadline, applied by sinks
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Sink is the downstream half of a session: the single client that owns it.
type Sink interface {
	// SendFrame forwards one upstream frame, byte-for-byte.
	SendFrame(data []byte) error

	// SendSignal pushes a broadcast trading signal.
	SendSignal(sig model.Signal) error

	// Close releases the downstream connection. Must be idempotent.
	Close() error
}

// Authorizer negotiates the upstream feed-authorization handshake and
// returns the one-time socket URL.
type Authorizer interface {
	AuthorizeFeed(ctx context.Context, token string) (string, error)
}

// UpstreamConn is the slice of the upstream socket a session uses.
// *websocket.Conn satisfies it; tests substitute fakes.
type UpstreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the upstream socket for a session.
type Dialer func(ctx context.Context, socketURL, token string) (UpstreamConn, error)

// DialUpstream opens a websocket to the broker feed, authenticated with the
// same bearer token that passed feed authorization.
func DialUpstream(ctx context.Context, socketURL, token string) (UpstreamConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, socketURL, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SessionEvent is a lifecycle notification handed to a Recorder. It carries
// diagnostics only, never tokens or frame payloads.
type SessionEvent struct {
	SessionID uuid.UUID
	State     string
	Reason    string
	Frames    int64
	At        time.Time
}

// Recorder receives session lifecycle events. Implementations must not
// block: the relay calls them inline on the session path.
type Recorder interface {
	RecordSession(ev SessionEvent)
}

package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rgupta/feedbridge/internal/model"
)

// fakeAuthorizer returns a canned socket URL or error and counts calls.
type fakeAuthorizer struct {
	url   string
	err   error
	calls atomic.Int64
}

func (f *fakeAuthorizer) AuthorizeFeed(ctx context.Context, token string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// fakeUpstream feeds frames through a channel; Close unblocks readers.
type fakeUpstream struct {
	frames    chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeUpstream) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.frames:
		return 2, data, nil
	case <-f.closed:
		return 0, nil, io.ErrUnexpectedEOF
	}
}

func (f *fakeUpstream) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// fakeSink collects forwarded frames and signals.
type fakeSink struct {
	mu      sync.Mutex
	frames  [][]byte
	signals []model.Signal
	closed  bool
	sendErr error
}

func (f *fakeSink) SendFrame(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeSink) SendSignal(sig model.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// testHub wires a hub whose dialer hands out the given upstreams in order.
func testHub(t *testing.T, auth Authorizer, upstreams ...*fakeUpstream) *Hub {
	t.Helper()
	var next atomic.Int64
	dial := func(ctx context.Context, socketURL, token string) (UpstreamConn, error) {
		i := next.Add(1) - 1
		if int(i) >= len(upstreams) {
			t.Fatalf("unexpected dial #%d", i+1)
		}
		return upstreams[i], nil
	}
	return NewHub(DefaultConfig(), auth, dial, nil, nil)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHubOpen(t *testing.T) {
	t.Run("missing token rejected before upstream contact", func(t *testing.T) {
		auth := &fakeAuthorizer{url: "wss://feed.example.com"}
		h := testHub(t, auth)

		_, err := h.Open(context.Background(), "   ", &fakeSink{})
		if !errors.Is(err, ErrMissingToken) {
			t.Fatalf("err = %v, want ErrMissingToken", err)
		}
		if auth.calls.Load() != 0 {
			t.Errorf("authorizer calls = %d, want 0", auth.calls.Load())
		}
	})

	t.Run("authorization failure closes session", func(t *testing.T) {
		auth := &fakeAuthorizer{err: errors.New("401")}
		sink := &fakeSink{}
		h := testHub(t, auth)

		_, err := h.Open(context.Background(), "tok", sink)
		if err == nil {
			t.Fatal("Open() expected error")
		}
		if !sink.isClosed() {
			t.Error("sink should be closed after failed handshake")
		}
		if h.Len() != 0 {
			t.Errorf("Len() = %d, want 0", h.Len())
		}
	})

	t.Run("frames forwarded to owning client only", func(t *testing.T) {
		auth := &fakeAuthorizer{url: "wss://feed.example.com"}
		upA, upB := newFakeUpstream(), newFakeUpstream()
		sinkA, sinkB := &fakeSink{}, &fakeSink{}
		h := testHub(t, auth, upA, upB)
		defer h.Close()

		sessA, err := h.Open(context.Background(), "tok-a", sinkA)
		if err != nil {
			t.Fatalf("Open(A) error = %v", err)
		}
		if _, err := h.Open(context.Background(), "tok-b", sinkB); err != nil {
			t.Fatalf("Open(B) error = %v", err)
		}
		if sessA.State() != StateStreaming {
			t.Errorf("State() = %v, want StateStreaming", sessA.State())
		}

		upA.frames <- []byte("frame-a1")
		upB.frames <- []byte("frame-b1")
		upA.frames <- []byte("frame-a2")

		waitFor(t, func() bool { return sinkA.frameCount() == 2 && sinkB.frameCount() == 1 },
			"frames not forwarded")

		sinkA.mu.Lock()
		gotA := string(sinkA.frames[0]) + "," + string(sinkA.frames[1])
		sinkA.mu.Unlock()
		if gotA != "frame-a1,frame-a2" {
			t.Errorf("client A frames = %q", gotA)
		}
		sinkB.mu.Lock()
		gotB := string(sinkB.frames[0])
		sinkB.mu.Unlock()
		if gotB != "frame-b1" {
			t.Errorf("client B frames = %q", gotB)
		}
	})
}

func TestSessionIsolation(t *testing.T) {
	auth := &fakeAuthorizer{url: "wss://feed.example.com"}
	upA, upB := newFakeUpstream(), newFakeUpstream()
	sinkA, sinkB := &fakeSink{}, &fakeSink{}
	h := testHub(t, auth, upA, upB)
	defer h.Close()

	sessA, err := h.Open(context.Background(), "tok-a", sinkA)
	if err != nil {
		t.Fatalf("Open(A) error = %v", err)
	}
	sessB, err := h.Open(context.Background(), "tok-b", sinkB)
	if err != nil {
		t.Fatalf("Open(B) error = %v", err)
	}

	// Upstream A dies; only A's session closes.
	upA.Close()
	waitFor(t, func() bool { return sessA.State() == StateClosed }, "session A did not close")

	if sessB.State() != StateStreaming {
		t.Errorf("session B state = %v, want StateStreaming", sessB.State())
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}

	// B keeps receiving.
	upB.frames <- []byte("still-alive")
	waitFor(t, func() bool { return sinkB.frameCount() == 1 }, "session B stopped forwarding")

	if !sinkA.isClosed() {
		t.Error("sink A should be closed")
	}
	if sinkB.isClosed() {
		t.Error("sink B should remain open")
	}
}

func TestSessionClose(t *testing.T) {
	t.Run("client disconnect closes upstream", func(t *testing.T) {
		auth := &fakeAuthorizer{url: "wss://feed.example.com"}
		up := newFakeUpstream()
		sink := &fakeSink{}
		h := testHub(t, auth, up)
		defer h.Close()

		sess, err := h.Open(context.Background(), "tok", sink)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		sess.Close()
		<-sess.Done()

		select {
		case <-up.closed:
		default:
			t.Error("upstream socket not closed")
		}
		if h.Len() != 0 {
			t.Errorf("Len() = %d, want 0", h.Len())
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		auth := &fakeAuthorizer{url: "wss://feed.example.com"}
		up := newFakeUpstream()
		h := testHub(t, auth, up)
		defer h.Close()

		sess, err := h.Open(context.Background(), "tok", &fakeSink{})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		sess.Close()
		sess.Close()
		<-sess.Done()
	})

	t.Run("downstream write error tears down session", func(t *testing.T) {
		auth := &fakeAuthorizer{url: "wss://feed.example.com"}
		up := newFakeUpstream()
		sink := &fakeSink{sendErr: errors.New("client gone")}
		h := testHub(t, auth, up)
		defer h.Close()

		sess, err := h.Open(context.Background(), "tok", sink)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		up.frames <- []byte("frame")
		waitFor(t, func() bool { return sess.State() == StateClosed }, "session did not close on write error")
	})
}

func TestHubBroadcast(t *testing.T) {
	auth := &fakeAuthorizer{url: "wss://feed.example.com"}
	upA, upB := newFakeUpstream(), newFakeUpstream()
	sinkA, sinkB := &fakeSink{}, &fakeSink{}
	h := testHub(t, auth, upA, upB)
	defer h.Close()

	if _, err := h.Open(context.Background(), "tok-a", sinkA); err != nil {
		t.Fatalf("Open(A) error = %v", err)
	}
	if _, err := h.Open(context.Background(), "tok-b", sinkB); err != nil {
		t.Fatalf("Open(B) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan model.Signal, 1)
	go h.ConsumeSignals(ctx, signals)

	signals <- model.Signal{Action: "BUY", Target: 52000, StopLoss: 51500}

	waitFor(t, func() bool {
		sinkA.mu.Lock()
		a := len(sinkA.signals)
		sinkA.mu.Unlock()
		sinkB.mu.Lock()
		b := len(sinkB.signals)
		sinkB.mu.Unlock()
		return a == 1 && b == 1
	}, "signal not broadcast to all sessions")

	sinkA.mu.Lock()
	got := sinkA.signals[0]
	sinkA.mu.Unlock()
	if got.Action != "BUY" || got.Target != 52000 {
		t.Errorf("signal = %+v", got)
	}
}

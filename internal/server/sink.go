package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgupta/feedbridge/internal/model"
)

// signalEvent is the named push event wrapping a broadcast signal.
type signalEvent struct {
	Event string       `json:"event"`
	Data  model.Signal `json:"data"`
}

// outbound is one queued downstream write.
type outbound struct {
	messageType int
	data        []byte
}

// wsSink adapts a downstream websocket connection to relay.Sink. Writes go
// through a buffered channel drained by a single write pump, so a slow
// client never stalls the forwarding loop: when the buffer is full the
// frame is dropped.
type wsSink struct {
	conn         *websocket.Conn
	send         chan outbound
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSSink(conn *websocket.Conn, buffer int, writeTimeout time.Duration) *wsSink {
	s := &wsSink{
		conn:         conn,
		send:         make(chan outbound, buffer),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}
	go s.writePump()
	return s
}

// SendFrame forwards one upstream frame as a binary websocket message.
func (s *wsSink) SendFrame(data []byte) error {
	return s.enqueue(outbound{messageType: websocket.BinaryMessage, data: data})
}

// SendSignal pushes a signal as a named JSON event.
func (s *wsSink) SendSignal(sig model.Signal) error {
	payload, err := json.Marshal(signalEvent{Event: "signal", Data: sig})
	if err != nil {
		return err
	}
	return s.enqueue(outbound{messageType: websocket.TextMessage, data: payload})
}

func (s *wsSink) enqueue(msg outbound) error {
	select {
	case <-s.closed:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		// Back-pressure: drop rather than stall the relay.
		return nil
	}
}

// Close releases the downstream connection. Idempotent.
func (s *wsSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

// writePump is the only goroutine that writes to the connection.
func (s *wsSink) writePump() {
	defer s.conn.Close()

	for {
		select {
		case <-s.closed:
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				s.Close()
				return
			}
		}
	}
}

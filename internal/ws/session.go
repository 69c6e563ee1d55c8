package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Hub events queued per connection before the subscriber counts as dead.
	sendBuffer = 32
)

// session owns one websocket connection. Hub events and protocol replies are
// funneled through the same outbound channel so a single writer goroutine
// touches the connection's write side.
type session struct {
	conn *websocket.Conn

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newSession(conn *websocket.Conn) *session {
	s := &session{
		conn: conn,
		out:  make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send implements hub.Sink. It never blocks a publisher: a closed session or
// a full buffer reports an error, which the hub treats as a dead subscriber.
func (s *session) Send(event []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	select {
	case s.out <- event:
		return nil
	default:
		return errors.New("session send buffer full")
	}
}

// reply marshals a protocol message onto the outbound queue.
func (s *session) reply(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal reply")
	}
	return s.Send(b)
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			// Drain replies queued before close, then hang up.
			s.flush()
			deadline := time.Now().Add(writeWait)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = s.conn.Close()
			return
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.close()
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := s.conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				// Expected when the peer goes away; the read loop notices too.
				s.close()
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) flush() {
	for {
		select {
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if s.conn.WriteMessage(websocket.TextMessage, b) != nil {
				return
			}
		default:
			return
		}
	}
}

// close stops the write pump; the pump flushes and closes the connection.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

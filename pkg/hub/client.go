package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Dashboard clients only send control frames
	maxInbound = 4 * 1024
)

// Conn is the part of a websocket connection a subscriber uses
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Subscriber is one websocket connection attached to a hub
type Subscriber struct {
	hub   *Hub
	conn  Conn
	queue chan Payload
}

// Subscribe attaches conn to h. The hub's replay is queued before any live
// payload. It returns nil once the hub has stopped.
func Subscribe(h *Hub, conn Conn) *Subscriber {
	sub := &Subscriber{hub: h, conn: conn, queue: make(chan Payload, h.queue)}
	select {
	case h.join <- sub:
		return sub
	case <-h.done:
		return nil
	}
}

// Serve writes queued payloads to the connection and blocks until the peer
// disconnects or the hub drops the subscriber. The connection is not touched
// after Serve returns.
func (s *Subscriber) Serve() {
	written := make(chan struct{})
	go func() {
		defer close(written)
		s.write()
	}()
	s.read()
	<-written
}

// read detects disconnection and keeps the read deadline fresh
func (s *Subscriber) read() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxInbound)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// write is the only goroutine that writes to the connection
func (s *Subscriber) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case p, ok := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			frame := websocket.TextMessage
			if p.Kind == KindJPEG {
				frame = websocket.BinaryMessage
			}
			if err := s.conn.WriteMessage(frame, p.Data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

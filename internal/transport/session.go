// Package transport bridges one hub subscription to one WebSocket connection.
package transport

import (
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/hub"
	"github.com/wealthwatch/portfolio-service/internal/models"
)

const maxMessageSize = 4 * 1024

// Session owns a client connection for the lifetime of its subscription.
// Events flow subscription → socket; the read side only services control
// frames and connection teardown.
type Session struct {
	conn   net.Conn
	sub    *hub.Subscription
	logger *zap.Logger

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewSession wraps an upgraded connection and its hub subscription.
func NewSession(conn net.Conn, sub *hub.Subscription, logger *zap.Logger) *Session {
	return &Session{
		conn:       conn,
		sub:        sub,
		logger:     logger,
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// readPump consumes control frames and detects disconnects. Any read error or
// close frame tears the session down, which unsubscribes from the hub before
// the connection is released.
func (s *Session) readPump() {
	defer func() {
		s.sub.Close()
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.pongWait))

	for {
		header, err := ws.ReadHeader(s.conn)
		if err != nil {
			return
		}

		if header.Length > maxMessageSize {
			s.logger.Warn("client frame too large", zap.Int64("size", header.Length))
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return
		}
		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		case ws.OpPing:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			wsutil.WriteServerMessage(s.conn, ws.OpPong, payload)
		default:
			// The event stream is one-way; client text is ignored.
		}
	}
}

// writePump serializes events from the subscription onto the socket and pings
// on idle. A write failure ends the session.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case event, ok := <-s.sub.C():
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if !ok {
				s.conn.Write(ws.CompiledClose)
				return
			}

			data, err := models.EncodeEvent(event)
			if err != nil {
				s.logger.Error("failed to encode event", zap.Error(err))
				continue
			}
			if err := wsutil.WriteServerText(s.conn, data); err != nil {
				s.sub.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
				s.sub.Close()
				return
			}
		}
	}
}

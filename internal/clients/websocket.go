// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/log"
)

var (
	// ErrClosed is returned by Deliver after the handle was closed.
	ErrClosed = errors.New("push connection closed")
	// ErrSlowConsumer is returned when the send queue stayed full for a
	// whole write timeout.
	ErrSlowConsumer = errors.New("push queue full")
)

const maxInboundMessage = 4 << 10

// WSConfig tunes a WebSocket push handle.
type WSConfig struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

func (c WSConfig) withDefaults() WSConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	return c
}

// WSHandle pushes events over a WebSocket connection. A single writer
// goroutine owns all writes to the connection.
type WSHandle struct {
	conn *websocket.Conn
	cfg  WSConfig

	mu     sync.Mutex
	closed bool
	send   chan []byte
	done   chan struct{}

	writerDone chan struct{}
	closeOnce  sync.Once
}

// NewWSHandle wraps conn and starts its writer goroutine.
func NewWSHandle(conn *websocket.Conn, cfg WSConfig) *WSHandle {
	cfg = cfg.withDefaults()
	h := &WSHandle{
		conn:       conn,
		cfg:        cfg,
		send:       make(chan []byte, cfg.SendBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	go h.writeLoop()
	return h
}

// Deliver queues ev. When the queue is full it waits up to WriteTimeout
// before giving up.
func (h *WSHandle) Deliver(ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case h.send <- payload:
		return nil
	case <-h.done:
		return ErrClosed
	default:
	}

	timer := time.NewTimer(h.cfg.WriteTimeout)
	defer timer.Stop()
	select {
	case h.send <- payload:
		return nil
	case <-h.done:
		return ErrClosed
	case <-timer.C:
		return ErrSlowConsumer
	}
}

// Close stops the writer, sends a close frame and closes the connection.
// It waits for the writer goroutine to exit and is safe to call repeatedly.
func (h *WSHandle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		close(h.done)
	})
	<-h.writerDone
	return nil
}

// ReadLoop consumes inbound frames until the peer goes away or the
// connection is closed. Client messages carry no meaning and are discarded;
// reading is what surfaces disconnects and pong replies.
func (h *WSHandle) ReadLoop() error {
	pongWait := 2 * h.cfg.PingInterval
	h.conn.SetReadLimit(maxInboundMessage)
	_ = h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		return h.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := h.conn.NextReader(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
	}
}

func (h *WSHandle) writeLoop() {
	defer close(h.writerDone)
	defer func() { _ = h.conn.Close() }()

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case msg := <-h.send:
			if err := h.write(websocket.TextMessage, msg); err != nil {
				h.abort(err)
				return
			}
		case <-ping.C:
			if err := h.write(websocket.PingMessage, nil); err != nil {
				h.abort(err)
				return
			}
		case <-h.done:
			h.flush()
			_ = h.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteTimeout))
			return
		}
	}
}

// flush writes whatever is still queued so a final done or error event is
// not lost when the handle closes right after it was sent.
func (h *WSHandle) flush() {
	for {
		select {
		case msg := <-h.send:
			if err := h.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *WSHandle) write(messageType int, data []byte) error {
	if err := h.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
		return err
	}
	return h.conn.WriteMessage(messageType, data)
}

// abort marks the handle closed after a write failure so producers stop
// queueing. The reader observes the closed connection and unregisters.
func (h *WSHandle) abort(err error) {
	logger := log.WithComponent("clients")
	logger.Debug().Err(err).Msg("websocket write failed")
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		close(h.done)
	})
}

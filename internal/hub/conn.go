// ABOUTME: One websocket client connection with a bounded outbound queue
// ABOUTME: Runs the read and write pumps and rate limits inbound frames

package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Conn is a registered client connection. Frames queued for it are written
// by its write pump; a full queue drops frames instead of blocking senders.
type Conn struct {
	ID       string
	Username string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
}

func newConn(username string, queueSize int, limiter *rate.Limiter) *Conn {
	return &Conn{
		ID:       uuid.New().String(),
		Username: username,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		limiter:  limiter,
	}
}

// Outbound exposes queued frames. Only the write pump or tests should read it.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// Done is closed when the connection is shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Allow reports whether another inbound event fits the rate limit.
func (c *Conn) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// enqueue queues data without blocking. Returns false when dropped.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump delivers inbound text frames to fn until the socket fails or ctx ends.
func (c *Conn) readPump(ctx context.Context, ws *websocket.Conn, fn func([]byte)) error {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		fn(data)
	}
}

// writePump writes queued frames until the connection closes.
func (c *Conn) writePump(ctx context.Context, ws *websocket.Conn, writeTimeout time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// isNormalClose reports whether err is an orderly client close.
func isNormalClose(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

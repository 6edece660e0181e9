package octohub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsDialer opens WebSocket transports.
type wsDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	header           http.Header
}

func (d *wsDialer) dial(ctx context.Context, url string) (transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.header)
	if err != nil {
		reason := err.Error()
		if resp != nil {
			reason = resp.Status + ": " + reason
		}
		return nil, &ConnectionError{URL: url, Reason: reason}
	}
	return newWSChannel(conn, d.writeTimeout), nil
}

// wsChannel implements the transport interface over a gorilla/websocket connection.
type wsChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex // serializes writes

	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (c *wsChannel) listen(h transportHandler) {
	go c.readLoop(h)
}

func (c *wsChannel) send(payload []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsChannel) close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		// WriteControl may run alongside a pending WriteMessage, so a stuck
		// send cannot hold up the close.
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)

		err = c.conn.Close()
	})
	return err
}

func (c *wsChannel) readLoop(h transportHandler) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// Closed locally; the supervisor already knows.
				return
			default:
			}
			code, reason := closeStatus(err)
			c.closeOnce.Do(func() {
				close(c.done)
				c.conn.Close()
			})
			h.handleClose(c, code, reason)
			return
		}

		h.handleFrame(c, data)
	}
}

// closeStatus extracts the close code from a read error. Errors without a
// close frame are reported as an abnormal closure (1006).
func closeStatus(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}

package octohub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// fakeConn is an in-memory transport driven by the test.
type fakeConn struct {
	mu          sync.Mutex
	h           transportHandler
	sent        [][]byte
	sendErr     error
	closed      bool
	closeCode   int
	closeReason string
	onClose     func() // runs on the first close
}

func (f *fakeConn) listen(h transportHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.h = h
}

func (f *fakeConn) send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotConnected
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	if f.onClose != nil {
		f.onClose()
	}
	return nil
}

func (f *fakeConn) handler() transportHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h
}

// receive delivers msg as an inbound frame.
func (f *fakeConn) receive(t *testing.T, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal inbound: %v", err)
	}
	f.receiveRaw(data)
}

func (f *fakeConn) receiveRaw(data []byte) {
	f.handler().handleFrame(f, data)
}

// drop simulates the server side closing the connection.
func (f *fakeConn) drop(code int, reason string) {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.handler().handleClose(f, code, reason)
}

func (f *fakeConn) isClosed() (bool, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode, f.closeReason
}

// sentMessages parses every frame written so far.
func (f *fakeConn) sentMessages(t *testing.T) []*Message {
	t.Helper()
	f.mu.Lock()
	frames := make([][]byte, len(f.sent))
	copy(frames, f.sent)
	f.mu.Unlock()

	out := make([]*Message, 0, len(frames))
	for _, data := range frames {
		msg, err := parseMessage(data)
		if err != nil {
			t.Fatalf("client wrote unparsable frame %q: %v", data, err)
		}
		out = append(out, msg)
	}
	return out
}

func (f *fakeConn) countSent(t *testing.T, action string) int {
	t.Helper()
	n := 0
	for _, msg := range f.sentMessages(t) {
		if msg.Action == action {
			n++
		}
	}
	return n
}

// fakeDialer hands out fakeConns.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	err   error
}

func (d *fakeDialer) dial(ctx context.Context, url string) (transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

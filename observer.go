package octohub

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// StatusHandler is called with the new state on every state transition.
type StatusHandler func(state ConnectionState)

// MessageHandler is called for every inbound application message.
type MessageHandler func(msg *Message)

type notifyKind int

const (
	notifyStatus notifyKind = iota
	notifyMessage
	notifyError
)

type notification struct {
	kind  notifyKind
	state ConnectionState
	msg   *Message
	err   ClientError
}

type subscription[T any] struct {
	id uint64
	fn T
}

// bridge turns supervisor events into consumer notifications.
//
// Events are queued while the supervisor holds its lock and delivered after
// it is released, in the order they were published. One goroutine drains the
// queue at a time; a callback that re-enters the client only enqueues, and
// its events are delivered by the drain already in progress.
type bridge struct {
	log     zerolog.Logger
	onError ErrorHandler

	mu       sync.Mutex
	queue    []notification
	nextID   uint64
	statuses []subscription[StatusHandler]
	messages []subscription[MessageHandler]

	dispatchMu sync.Mutex

	connections atomic.Uint64
	last        atomic.Pointer[Message]
}

func newBridge(log zerolog.Logger, onError ErrorHandler) *bridge {
	return &bridge{
		log:     log,
		onError: onError,
	}
}

func (b *bridge) onStatus(fn StatusHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.statuses = append(b.statuses, subscription[StatusHandler]{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.statuses = removeSub(b.statuses, id)
	}
}

func (b *bridge) onMessage(fn MessageHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.messages = append(b.messages, subscription[MessageHandler]{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.messages = removeSub(b.messages, id)
	}
}

func removeSub[T any](subs []subscription[T], id uint64) []subscription[T] {
	out := make([]subscription[T], 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *bridge) publishStatus(state ConnectionState) {
	if state == StateConnected {
		b.connections.Add(1)
	}
	b.enqueue(notification{kind: notifyStatus, state: state})
}

func (b *bridge) publishMessage(msg *Message) {
	b.last.Store(msg)
	b.enqueue(notification{kind: notifyMessage, msg: msg})
}

func (b *bridge) publishError(e ClientError) {
	if b.onError == nil {
		return
	}
	b.enqueue(notification{kind: notifyError, err: e})
}

func (b *bridge) enqueue(n notification) {
	b.mu.Lock()
	b.queue = append(b.queue, n)
	b.mu.Unlock()
}

// connectionCount is the number of transitions into StateConnected so far.
func (b *bridge) connectionCount() uint64 {
	return b.connections.Load()
}

func (b *bridge) lastMessage() *Message {
	return b.last.Load()
}

// flush delivers queued notifications. It must not be called with the
// supervisor lock held.
func (b *bridge) flush() {
	for {
		if !b.dispatchMu.TryLock() {
			return
		}
		for {
			batch := b.take()
			if len(batch) == 0 {
				break
			}
			for _, n := range batch {
				b.deliver(n)
			}
		}
		b.dispatchMu.Unlock()

		// Events queued between the last take and the unlock would
		// otherwise wait for the next flush.
		if !b.pending() {
			return
		}
	}
}

func (b *bridge) take() []notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.queue
	b.queue = nil
	return batch
}

func (b *bridge) pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) > 0
}

func (b *bridge) deliver(n notification) {
	switch n.kind {
	case notifyStatus:
		b.mu.Lock()
		subs := b.statuses
		b.mu.Unlock()
		for _, s := range subs {
			b.call(func() { s.fn(n.state) })
		}
	case notifyMessage:
		b.mu.Lock()
		subs := b.messages
		b.mu.Unlock()
		for _, s := range subs {
			b.call(func() { s.fn(n.msg) })
		}
	case notifyError:
		b.call(func() { b.onError(n.err) })
	}
}

// call runs one consumer callback, keeping a panicking consumer from
// wedging the dispatcher.
func (b *bridge) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("panic", fmt.Sprint(r)).Msg("observer callback panicked")
		}
	}()
	fn()
}

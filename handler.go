package octohub

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc is the signature for action handlers.
// Return a reply Message to answer, an error to send an ActionError reply,
// or (nil, nil) for one-way inbound messages.
type HandlerFunc func(msg *Message) (*Message, error)

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc // action → handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{
		handlers: make(map[string]HandlerFunc),
	}
}

func (r *handlerRegistry) register(action string, fn HandlerFunc) error {
	if action == "" {
		return errors.New("action must not be empty")
	}
	if isControlAction(action) {
		return fmt.Errorf("%w: %q", ErrReservedAction, action)
	}
	if fn == nil {
		return errors.New("handler must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[action]; exists {
		return fmt.Errorf("handler already registered for action %q", action)
	}
	r.handlers[action] = fn
	return nil
}

func (r *handlerRegistry) lookup(action string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[action]
	return fn, ok
}

// actions returns the registered actions in sorted order.
func (r *handlerRegistry) actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for action := range r.handlers {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}

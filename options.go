package octohub

import (
	"net/http"

	"github.com/rs/zerolog"
)

// ClientOption configures client behavior.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger  zerolog.Logger
	onError ErrorHandler
	header  http.Header

	dialer dialer
	clock  clock
}

func clientDefaults() clientOptions {
	return clientOptions{
		logger: zerolog.Nop(),
		clock:  systemClock{},
	}
}

// WithLogger sets the logger for connection diagnostics. The default discards everything.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithErrorHandler sets the handler for errors that cannot be returned to a
// caller (parse failures, lost connections, exhausted reconnects).
// Defaults to LogErrors with the client's logger.
func WithErrorHandler(fn ErrorHandler) ClientOption {
	return func(o *clientOptions) {
		o.onError = fn
	}
}

// WithHeader adds HTTP headers to every WebSocket handshake.
func WithHeader(header http.Header) ClientOption {
	return func(o *clientOptions) {
		o.header = header.Clone()
	}
}

func withDialer(d dialer) ClientOption {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

func withClock(c clock) ClientOption {
	return func(o *clientOptions) {
		o.clock = c
	}
}

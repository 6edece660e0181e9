package octohub

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors.
var (
	ErrNotConnected      = errors.New("client is not connected")
	ErrClientClosed      = errors.New("client is closed")
	ErrReservedAction    = errors.New("action is reserved for heartbeat control")
	ErrUnauthorized      = errors.New("endpoint resolution unauthorized")
	ErrPongTimeout       = errors.New("pong timeout")
	ErrAttemptsExhausted = errors.New("reconnect attempts exhausted")
)

// ResolveError is returned by resolvers when no connection URL could be obtained.
type ResolveError struct {
	Endpoint string
	Status   int // HTTP status, 0 if the request never completed
	Code     int // application errcode from the response envelope
	Reason   string
	Cause    error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("resolve endpoint [%s]", e.Endpoint)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" errcode=%d", e.Code)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// ConnectionError represents a failure to open or keep the transport connection.
type ConnectionError struct {
	URL    string
	Code   int // close code, 0 if the connection never opened
	Reason string
}

func (e *ConnectionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("connection error [%s] code=%d: %s", e.URL, e.Code, e.Reason)
	}
	return fmt.Sprintf("connection error [%s]: %s", e.URL, e.Reason)
}

// ErrorKind classifies errors that cannot be returned to a caller.
type ErrorKind int

const (
	ErrParseFailure       ErrorKind = iota // inbound payload couldn't be parsed
	ErrResolveFailure                      // endpoint resolution failed
	ErrTransportFailure                    // dial failed or connection lost unexpectedly
	ErrHeartbeatTimeout                    // no pong before the heartbeat timeout
	ErrReconnectExhausted                  // reconnect ceiling reached
	ErrTransportWrite                      // failed to write to connection
	ErrHandlerFailure                      // action handler returned an error or panicked
)

var errorKindNames = [...]string{
	ErrParseFailure:       "ErrParseFailure",
	ErrResolveFailure:     "ErrResolveFailure",
	ErrTransportFailure:   "ErrTransportFailure",
	ErrHeartbeatTimeout:   "ErrHeartbeatTimeout",
	ErrReconnectExhausted: "ErrReconnectExhausted",
	ErrTransportWrite:     "ErrTransportWrite",
	ErrHandlerFailure:     "ErrHandlerFailure",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// ClientError is an error the client could not deliver to a direct caller.
// These are routed to the ErrorHandler given with WithErrorHandler.
type ClientError struct {
	Kind      ErrorKind
	Action    string // message action, if known
	RequestID string // message request_id, if known
	Attempt   int    // reconnect counter at the time of the error
	Cause     error
	Raw       []byte // raw payload (for parse failures)
	Timestamp time.Time
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (action=%s request=%s attempt=%d)", e.Kind, e.Cause, e.Action, e.RequestID, e.Attempt)
	}
	return fmt.Sprintf("%s (action=%s request=%s attempt=%d)", e.Kind, e.Action, e.RequestID, e.Attempt)
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorHandler is called for every client-level error that cannot be returned
// to a direct caller.
type ErrorHandler func(ClientError)

// LogErrors returns an ErrorHandler that logs all client errors to the given logger.
func LogErrors(logger zerolog.Logger) ErrorHandler {
	return func(e ClientError) {
		ev := logger.Warn()
		if e.Kind == ErrReconnectExhausted {
			ev = logger.Error()
		}
		ev.Str("kind", e.Kind.String()).
			Str("action", e.Action).
			Str("request_id", e.RequestID).
			Int("attempt", e.Attempt).
			Err(e.Cause).
			Msg("octohub client error")
	}
}

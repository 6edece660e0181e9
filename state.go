package octohub

import "context"

// ConnectionState is the externally visible state of a Client.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being attempted.
	StateDisconnected ConnectionState = iota

	// StateConnecting means an endpoint is being resolved or dialed.
	StateConnecting

	// StateConnected means the transport is open and the heartbeat is running.
	StateConnected

	// StateReconnecting means a retry is scheduled after an unexpected loss.
	StateReconnecting

	// StateFailed means the last attempt failed. It is terminal once the
	// reconnect ceiling has been reached.
	StateFailed
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateReconnecting: "reconnecting",
	StateFailed:       "failed",
}

func (s ConnectionState) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// phase is the supervisor's internal state. Each variant carries only the
// handles that are valid in it, so a transport or timer can never outlive
// the state that owns it.
type phase interface {
	state() ConnectionState
}

type disconnectedPhase struct{}

func (disconnectedPhase) state() ConnectionState { return StateDisconnected }

// connectingPhase is an in-flight resolve+dial attempt.
type connectingPhase struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (*connectingPhase) state() ConnectionState { return StateConnecting }

// connectedPhase owns the live transport and its heartbeat.
type connectedPhase struct {
	conn      transport
	url       string
	heartbeat *heartbeat
}

func (*connectedPhase) state() ConnectionState { return StateConnected }

// reconnectingPhase owns the pending reconnect-delay timer.
type reconnectingPhase struct {
	attempt int
	timer   timer
}

func (*reconnectingPhase) state() ConnectionState { return StateReconnecting }

type failedPhase struct {
	cause error
}

func (failedPhase) state() ConnectionState { return StateFailed }

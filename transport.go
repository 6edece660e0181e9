package octohub

import "context"

// CloseNormalClosure is the close code for an expected, intentional shutdown.
// It is the only close code after which the client does not reconnect.
const CloseNormalClosure = 1000

// transport is one open connection to the server.
// The current implementation uses gorilla/websocket (channel.go).
type transport interface {
	// listen starts delivering inbound frames and the final close event to h.
	// It is called once, after the supervisor has taken ownership of the handle.
	listen(h transportHandler)

	// send writes one text frame.
	send(payload []byte) error

	// close shuts the connection down with the given close code and reason.
	// No close event is delivered for a locally initiated close.
	close(code int, reason string) error
}

// transportHandler receives events from a transport. The transport passes
// itself so events from a replaced connection can be recognized and dropped.
type transportHandler interface {
	handleFrame(t transport, payload []byte)
	handleClose(t transport, code int, reason string)
}

// dialer opens transports.
type dialer interface {
	dial(ctx context.Context, url string) (transport, error)
}

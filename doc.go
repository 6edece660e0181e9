// Package octohub provides a Go client for the OctoHub real-time channel.
//
// The client keeps one logical channel open to an OctoHub WebSocket server
// over an unreliable network, hiding transient disconnects from its
// consumers. It exposes a small surface:
//
//   - Connect / Disconnect: start and stop the supervised connection
//   - Send: fire-and-forget JSON messages ({action, data, timestamp})
//   - OnMessage / Handle: receive inbound application messages
//   - OnStatusChange: observe connection state transitions
//
// Endpoints are obtained from a Resolver on every attempt, so short-lived
// signed URLs work across reconnects. While connected, an application-level
// ping/pong heartbeat detects half-open connections. Unexpected losses are
// retried on a fixed interval up to a configured ceiling.
//
// Basic usage:
//
//	resolver, err := octohub.NewHTTPResolver(octohub.HTTPResolverConfig{
//	    BaseURL: "http://localhost:8080/api",
//	    Token:   token,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := octohub.NewClient(octohub.Config{}, resolver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnStatusChange(func(s octohub.ConnectionState) {
//	    log.Printf("status: %s", s)
//	})
//	client.OnMessage(func(msg *octohub.Message) {
//	    log.Printf("received %s", msg.Action)
//	})
//
//	client.Connect(ctx)
//	client.Send(&octohub.Message{Action: "echo", Data: "hello"})
package octohub

// Integration test against a live octo-hub-ws server.
//
// Prerequisites:
//   - octo-hub-ws running locally, either reachable directly through a signed
//     URL (OCTOHUB_WS_URL) or through the API (OCTOHUB_API_BASE_URL and
//     OCTOHUB_API_TOKEN)
//
// Usage:
//
//	OCTOHUB_WS_URL='ws://localhost:8081/ws?...' go run ./cmd/integration-test
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	octohub "github.com/octohub/go-sdk"
	"github.com/rs/zerolog"
)

type echoReply struct {
	Original any    `json:"original_message"`
	EchoedBy string `json:"echoed_by"`
}

type statusReply struct {
	Online     bool  `json:"online"`
	LastActive int64 `json:"last_active"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	passed := 0
	failed := 0

	fmt.Println("=== OctoHub Go SDK Integration Test ===")
	fmt.Println()

	resolver, err := newResolver()
	if err != nil {
		log.Fatal().Err(err).Msg("no endpoint configured")
	}

	client, err := octohub.NewClient(octohub.Config{
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout:  2 * time.Second,
	}, resolver, octohub.WithLogger(log.Level(zerolog.InfoLevel)))
	if err != nil {
		log.Fatal().Err(err).Msg("NewClient")
	}
	defer client.Close()

	replies := make(chan *octohub.Message, 16)
	client.OnMessage(func(msg *octohub.Message) {
		select {
		case replies <- msg:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// --- Test 1: Connect ---
	fmt.Println("[Test 1] Connect...")
	client.Connect(ctx)
	if client.IsConnected() {
		fmt.Println("  PASS")
		passed++
	} else {
		fmt.Printf("  FAIL: state=%s\n", client.State())
		os.Exit(1)
	}

	// --- Test 2: Echo round trip ---
	fmt.Println("[Test 2] Echo round trip...")
	var echo echoReply
	if reply, err := request(ctx, client, replies, "echo", map[string]string{"text": "hello from go"}); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		failed++
	} else if err := reply.UnmarshalData(&echo); err != nil || echo.EchoedBy != "server" {
		fmt.Printf("  FAIL: unexpected echo %+v (%v)\n", echo, err)
		failed++
	} else {
		fmt.Printf("  PASS: %v\n", echo.Original)
		passed++
	}

	// --- Test 3: Status query ---
	fmt.Println("[Test 3] Status query...")
	var status statusReply
	if reply, err := request(ctx, client, replies, "status", nil); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		failed++
	} else if err := reply.UnmarshalData(&status); err != nil || !status.Online {
		fmt.Printf("  FAIL: unexpected status %+v (%v)\n", status, err)
		failed++
	} else {
		fmt.Println("  PASS")
		passed++
	}

	// --- Test 4: Heartbeat keeps the connection alive ---
	fmt.Println("[Test 4] Heartbeat over three intervals...")
	time.Sleep(7 * time.Second)
	if client.IsConnected() && client.ConnectionCount() == 1 {
		fmt.Println("  PASS")
		passed++
	} else {
		fmt.Printf("  FAIL: state=%s connections=%d\n", client.State(), client.ConnectionCount())
		failed++
	}

	// --- Test 5: Disconnect ---
	fmt.Println("[Test 5] Disconnect...")
	client.Disconnect()
	if client.State() == octohub.StateDisconnected && !client.Send(&octohub.Message{Action: "echo"}) {
		fmt.Println("  PASS")
		passed++
	} else {
		fmt.Printf("  FAIL: state=%s\n", client.State())
		failed++
	}

	// --- Summary ---
	fmt.Println()
	fmt.Println("=== Results ===")
	fmt.Printf("  Passed: %d\n", passed)
	fmt.Printf("  Failed: %d\n", failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func newResolver() (octohub.Resolver, error) {
	if url := os.Getenv("OCTOHUB_WS_URL"); url != "" {
		return octohub.StaticURL(url), nil
	}
	return octohub.NewHTTPResolver(octohub.HTTPResolverConfig{})
}

// request sends action and waits for the reply carrying the same request_id.
func request(ctx context.Context, client *octohub.Client, replies <-chan *octohub.Message, action string, data any) (*octohub.Message, error) {
	id := fmt.Sprintf("it-%s-%d", action, time.Now().UnixNano())
	if !client.Send(&octohub.Message{Action: action, Data: data, RequestID: id}) {
		return nil, fmt.Errorf("send %s failed", action)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-replies:
			if msg.RequestID != id {
				continue
			}
			if msg.Action == octohub.ActionError {
				var e octohub.ErrorData
				msg.UnmarshalData(&e)
				return nil, fmt.Errorf("server error %d: %s", e.Code, e.Message)
			}
			return msg, nil
		case <-timeout:
			return nil, fmt.Errorf("no %s reply within 5s", action)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

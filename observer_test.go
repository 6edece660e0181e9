package octohub

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestBridge_DeliversInOrder(t *testing.T) {
	b := newBridge(zerolog.Nop(), nil)
	var got []string
	b.onStatus(func(s ConnectionState) { got = append(got, s.String()) })
	b.onMessage(func(m *Message) { got = append(got, m.Action) })

	b.publishStatus(StateConnecting)
	b.publishStatus(StateConnected)
	b.publishMessage(&Message{Action: "hello"})
	if len(got) != 0 {
		t.Fatal("nothing should be delivered before flush")
	}
	b.flush()

	want := []string{"connecting", "connected", "hello"}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivered %v, want %v", got, want)
		}
	}
	if b.connectionCount() != 1 {
		t.Errorf("connectionCount() = %d, want 1", b.connectionCount())
	}
}

func TestBridge_ReentrantPublishDeliveredBySameFlush(t *testing.T) {
	b := newBridge(zerolog.Nop(), nil)
	var got []ConnectionState
	b.onStatus(func(s ConnectionState) {
		got = append(got, s)
		if s == StateDisconnected {
			b.publishStatus(StateReconnecting)
			b.flush()
		}
	})

	b.publishStatus(StateDisconnected)
	b.flush()

	if len(got) != 2 || got[1] != StateReconnecting {
		t.Errorf("delivered %v, want [disconnected reconnecting]", got)
	}
}

func TestBridge_PanickingObserverDoesNotStopDelivery(t *testing.T) {
	b := newBridge(zerolog.Nop(), nil)
	var delivered int
	b.onMessage(func(*Message) { panic("observer bug") })
	b.onMessage(func(*Message) { delivered++ })

	b.publishMessage(&Message{Action: "a"})
	b.publishMessage(&Message{Action: "b"})
	b.flush()

	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if b.lastMessage().Action != "b" {
		t.Errorf("lastMessage() = %q, want b", b.lastMessage().Action)
	}
}

func TestBridge_ErrorsSkippedWithoutHandler(t *testing.T) {
	b := newBridge(zerolog.Nop(), nil)
	b.publishError(ClientError{Kind: ErrParseFailure})
	if b.pending() {
		t.Error("errors should not be queued without an ErrorHandler")
	}

	var kinds []ErrorKind
	b = newBridge(zerolog.Nop(), func(e ClientError) { kinds = append(kinds, e.Kind) })
	b.publishError(ClientError{Kind: ErrParseFailure})
	b.flush()
	if len(kinds) != 1 || kinds[0] != ErrParseFailure {
		t.Errorf("errors delivered = %v", kinds)
	}
}

func TestBridge_Unsubscribe(t *testing.T) {
	b := newBridge(zerolog.Nop(), nil)
	var n int
	cancel := b.onStatus(func(ConnectionState) { n++ })

	b.publishStatus(StateConnecting)
	b.flush()
	cancel()
	b.publishStatus(StateConnected)
	b.flush()

	if n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

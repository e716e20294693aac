package ws

import (
	"encoding/json"
	"testing"
)

func recvFrame(t *testing.T, c *Client) ChangeEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return ev
	default:
		t.Fatal("no frame queued")
	}
	return ChangeEvent{}
}

func TestPublishChangeReachesAllClients(t *testing.T) {
	hub := NewHub()
	a := &Client{UserID: 1, Send: make(chan []byte, 4)}
	b := &Client{UserID: 2, Send: make(chan []byte, 4)}
	hub.Register(a)
	hub.Register(b)

	hub.PublishChange("ride", "insert", map[string]uint{"id": 7})

	for _, c := range []*Client{a, b} {
		ev := recvFrame(t, c)
		if ev.Kind != "ride" || ev.Type != "insert" || ev.EventID == "" {
			t.Errorf("unexpected frame %+v", ev)
		}
	}
}

func TestNotifyUserTargetsOneUsersConnections(t *testing.T) {
	hub := NewHub()
	phone := &Client{UserID: 1, Send: make(chan []byte, 4)}
	laptop := &Client{UserID: 1, Send: make(chan []byte, 4)}
	other := &Client{UserID: 2, Send: make(chan []byte, 4)}
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)

	hub.NotifyUser(1, map[string]string{"title": "hi"})

	if len(phone.Send) != 1 || len(laptop.Send) != 1 {
		t.Error("not every connection of the target user got the frame")
	}
	if len(other.Send) != 0 {
		t.Error("frame leaked to another user")
	}
}

func TestSlowClientDropsFramesInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	slow := &Client{UserID: 1, Send: make(chan []byte, 1)}
	hub.Register(slow)

	hub.PublishChange("ride", "insert", nil)
	hub.PublishChange("ride", "insert", nil) // buffer full, must not block

	if len(slow.Send) != 1 {
		t.Errorf("buffered %d frames, want 1", len(slow.Send))
	}
}

func TestPublishDuringCloseDoesNotPanic(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 0, 8)
	for i := 0; i < 8; i++ {
		c := &Client{UserID: uint(i + 1), Send: make(chan []byte, 1)}
		hub.Register(c)
		clients = append(clients, c)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.PublishChange("ride", "update", nil)
			hub.NotifyUser(uint(i%8+1), map[string]string{"title": "hi"})
		}
	}()
	// Closing while the publisher runs closes Send channels out from
	// under in-flight sends. The closed-flag guard must absorb that.
	for _, c := range clients {
		c.Close()
	}
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after closing all clients, want 0", hub.ClientCount())
	}
}

func TestCloseUnregisters(t *testing.T) {
	hub := NewHub()
	c := &Client{UserID: 1, Send: make(chan []byte, 1)}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}
	c.Close()
	c.Close() // idempotent
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after close, want 0", hub.ClientCount())
	}
}

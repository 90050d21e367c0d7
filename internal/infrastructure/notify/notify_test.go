package notify

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"newsroom/internal/ports"
)

type recordingNotifier struct {
	events []ports.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event ports.Event) {
	n.events = append(n.events, event)
}

func TestBrokerFanOut(t *testing.T) {
	bridge := &recordingNotifier{}
	broker := NewBroker(4, bridge)
	first := broker.Subscribe()
	second := broker.Subscribe()

	if broker.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", broker.Count())
	}

	event := ports.Event{Name: "article:created", Data: map[string]any{"article_id": uint64(1)}}
	broker.Publish(context.Background(), event)

	for _, sub := range []Subscription{first, second} {
		select {
		case got := <-sub.C:
			if got.Name != event.Name {
				t.Fatalf("subscriber %s got %q", sub.ID, got.Name)
			}
		default:
			t.Fatalf("subscriber %s received nothing", sub.ID)
		}
	}
	if len(bridge.events) != 1 {
		t.Fatalf("bridge events = %d, want 1", len(bridge.events))
	}

	broker.Unsubscribe(first.ID)
	if _, ok := <-first.C; ok {
		t.Fatalf("unsubscribed channel still open")
	}
	broker.Unsubscribe(first.ID)
	if broker.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", broker.Count())
	}
}

func TestBrokerDropsSlowSubscriber(t *testing.T) {
	broker := NewBroker(1)
	slow := broker.Subscribe()

	broker.Publish(context.Background(), ports.Event{Name: "article:updated"})
	broker.Publish(context.Background(), ports.Event{Name: "article:updated"})

	if broker.Count() != 0 {
		t.Fatalf("Count() = %d, want slow subscriber dropped", broker.Count())
	}
	if got := <-slow.C; got.Name != "article:updated" {
		t.Fatalf("buffered event = %q", got.Name)
	}
	if _, ok := <-slow.C; ok {
		t.Fatalf("dropped subscriber channel still open")
	}
}

func TestWebsocketHandlerStreamsEvents(t *testing.T) {
	broker := NewBroker(8)
	server := httptest.NewServer(NewHandler(broker, []string{"http://localhost:5173"}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for broker.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(context.Background(), ports.Event{Name: "image:ready", Data: map[string]any{"article_id": 4}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got ports.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Name != "image:ready" || got.Data["article_id"] != float64(4) {
		t.Fatalf("event = %+v", got)
	}

	_ = conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for broker.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketHandlerRejectsForeignOrigin(t *testing.T) {
	server := httptest.NewServer(NewHandler(NewBroker(1), []string{"http://localhost:5173"}))
	defer server.Close()

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
	if err == nil {
		t.Fatalf("Dial() succeeded for foreign origin")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("Dial() response = %v, want 403", resp)
	}
}

func TestNATSBridgeSubject(t *testing.T) {
	tests := []struct {
		prefix string
		event  string
		want   string
	}{
		{prefix: "newsroom.status", event: "article:created", want: "newsroom.status.article.created"},
		{prefix: "", event: "image:ready", want: "newsroom.status.image.ready"},
		{prefix: "desk.", event: "publish:complete", want: "desk.publish.complete"},
	}

	for _, tt := range tests {
		if got := NewNATSBridge(nil, tt.prefix).Subject(tt.event); got != tt.want {
			t.Fatalf("Subject(%q) = %q, want %q", tt.event, got, tt.want)
		}
	}

	// A bridge without a connection is a no-op.
	NewNATSBridge(nil, "").Publish(context.Background(), ports.Event{Name: "article:created"})
}

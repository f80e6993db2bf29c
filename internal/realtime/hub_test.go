package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func mustMessage(t *testing.T, channel string, event Event, data any) Message {
	t.Helper()
	msg, err := NewMessage(channel, event, data)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

func TestHubOrderingAndReconnect(t *testing.T) {
	hub := NewHub(mustTestLogger(t), HubOptions{})
	channel := JobChannel(uuid.New())

	subA := hub.Subscribe(channel)
	hub.Broadcast(mustMessage(t, channel, EventJobProgress, map[string]int{"seq": 1}))
	hub.Broadcast(mustMessage(t, channel, EventJobUpdated, map[string]int{"seq": 2}))

	if got := recvMessage(t, subA.C(), time.Second); got.Event != EventJobProgress {
		t.Fatalf("first event: want=%s got=%s", EventJobProgress, got.Event)
	}
	if got := recvMessage(t, subA.C(), time.Second); got.Event != EventJobUpdated {
		t.Fatalf("second event: want=%s got=%s", EventJobUpdated, got.Event)
	}

	subA.Close()
	subA.Close()
	if _, ok := <-subA.C(); ok {
		t.Fatalf("subA channel should be closed")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", n)
	}

	subB := hub.Subscribe(channel)
	defer subB.Close()
	hub.Broadcast(mustMessage(t, channel, EventJobUpdated, map[string]int{"seq": 3}))
	var payload map[string]int
	if err := recvMessage(t, subB.C(), time.Second).Decode(&payload); err != nil || payload["seq"] != 3 {
		t.Fatalf("reconnect payload: got=%v err=%v", payload, err)
	}
}

func TestHubLatestWinsWhenFull(t *testing.T) {
	hub := NewHub(mustTestLogger(t), HubOptions{BufferSize: 2})
	channel := SessionChannel(uuid.New())
	sub := hub.Subscribe(channel)
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		hub.Broadcast(mustMessage(t, channel, EventSessionUpdated, map[string]int{"seq": i}))
	}
	var first, second map[string]int
	_ = recvMessage(t, sub.C(), time.Second).Decode(&first)
	_ = recvMessage(t, sub.C(), time.Second).Decode(&second)
	if first["seq"] != 4 || second["seq"] != 5 {
		t.Fatalf("latest wins: want 4,5 got %d,%d", first["seq"], second["seq"])
	}
	if sub.Dropped() != 3 {
		t.Fatalf("dropped: want=3 got=%d", sub.Dropped())
	}
}

func TestHubScopesByChannel(t *testing.T) {
	hub := NewHub(mustTestLogger(t), HubOptions{})
	a := hub.Subscribe(JobChannel(uuid.New()))
	defer a.Close()
	other := JobChannel(uuid.New())
	hub.Broadcast(mustMessage(t, other, EventJobUpdated, nil))
	select {
	case msg := <-a.C():
		t.Fatalf("unexpected message for other channel: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubServeHTTP(t *testing.T) {
	hub := NewHub(mustTestLogger(t), HubOptions{})
	channel := UserChannel(uuid.New())
	sub := hub.Subscribe(channel)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, sub)
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type: want=text/event-stream got=%q", ct)
	}

	hub.Broadcast(mustMessage(t, channel, EventBalanceUpdated, map[string]int64{"balance": 9}))

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	for {
		lineCh := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			lineCh <- line
		}()
		select {
		case line := <-lineCh:
			if strings.HasPrefix(line, "event: "+string(EventBalanceUpdated)) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for SSE event")
		}
	}
}

func TestParseChannel(t *testing.T) {
	id := uuid.New()
	kind, got, err := ParseChannel(SessionChannel(id))
	if err != nil || kind != ChannelSession || got != id {
		t.Fatalf("ParseChannel: kind=%s id=%s err=%v", kind, got, err)
	}
	for _, bad := range []string{"", "job", "room:" + id.String(), "job:nope"} {
		if _, _, err := ParseChannel(bad); err == nil {
			t.Fatalf("ParseChannel(%q): want error", bad)
		}
	}
}

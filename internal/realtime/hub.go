package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

const defaultBufferSize = 16

// Hub fans messages out to in-process subscriptions keyed by channel.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Subscription]struct{}
	bufferSize    int
	heartbeat     time.Duration
}

type HubOptions struct {
	BufferSize int
	Heartbeat  time.Duration
}

func NewHub(log *logger.Logger, opts HubOptions) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		subscriptions: make(map[string]map[*Subscription]struct{}),
		bufferSize:    opts.BufferSize,
		heartbeat:     opts.Heartbeat,
	}
}

// Subscription is a scoped handle on one channel. Close is idempotent and
// must be called on every exit path.
type Subscription struct {
	ID      uuid.UUID
	Channel string

	hub     *Hub
	mu      sync.Mutex
	closed  bool
	out     chan Message
	done    chan struct{}
	dropped atomic.Int64
}

func (hub *Hub) Subscribe(channel string) *Subscription {
	channel = strings.TrimSpace(channel)
	sub := &Subscription{
		ID:      uuid.New(),
		Channel: channel,
		hub:     hub,
		out:     make(chan Message, hub.bufferSize),
		done:    make(chan struct{}),
	}

	hub.mu.Lock()
	subs, ok := hub.subscriptions[channel]
	if !ok {
		subs = make(map[*Subscription]struct{})
		hub.subscriptions[channel] = subs
	}
	subs[sub] = struct{}{}
	hub.mu.Unlock()

	hub.log.Debug("Realtime subscription opened", "subscription_id", sub.ID, "channel", channel)
	return sub
}

// C yields messages in publish order. It is closed after Close.
func (s *Subscription) C() <-chan Message { return s.out }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped counts messages discarded because this subscriber fell behind.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	close(s.out)
	s.mu.Unlock()

	s.hub.remove(s)
}

// deliver never blocks: when the buffer is full the oldest queued message
// makes room for the newest.
func (s *Subscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.out <- msg:
			return
		default:
		}
		select {
		case <-s.out:
			s.dropped.Add(1)
		default:
		}
	}
}

func (hub *Hub) remove(s *Subscription) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if subs, ok := hub.subscriptions[s.Channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(hub.subscriptions, s.Channel)
		}
	}
	hub.log.Debug("Realtime subscription closed", "subscription_id", s.ID, "channel", s.Channel)
}

func (hub *Hub) Broadcast(msg Message) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for sub := range hub.subscriptions[msg.Channel] {
		sub.deliver(msg)
	}
}

// Subscribers reports how many subscriptions a channel has.
func (hub *Hub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

// ServeHTTP streams sub to w as server-sent events until the request ends or
// sub is closed. The caller still owns sub and must Close it.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, sub *Subscription) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("Realtime client context done", "subscription_id", sub.ID, "err", ctx.Err())
			return
		case <-sub.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-sub.out:
			if !ok {
				return
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("Failed to marshal realtime message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
			flusher.Flush()
		}
	}
}

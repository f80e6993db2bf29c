package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

// memoryBus is the single-replica bus. Publish queues and returns; one
// goroutine per forwarder delivers in publish order.
type memoryBus struct {
	log    *logger.Logger
	buffer int

	mu         sync.Mutex
	forwarders []chan realtime.Message
	closed     bool
}

func NewMemoryBus(log *logger.Logger, buffer int) Bus {
	if buffer <= 0 {
		buffer = 1024
	}
	return &memoryBus{log: log.With("service", "MemoryRealtimeBus"), buffer: buffer}
}

func (b *memoryBus) Publish(ctx context.Context, msg realtime.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("memory realtime bus closed")
	}
	for _, ch := range b.forwarders {
		select {
		case ch <- msg:
		default:
			b.log.Warn("Dropping realtime message; forwarder queue full", "channel", msg.Channel, "event", msg.Event)
		}
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	ch := make(chan realtime.Message, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory realtime bus closed")
	}
	b.forwarders = append(b.forwarders, ch)
	b.mu.Unlock()

	go func() {
		defer b.detach(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *memoryBus) detach(ch chan realtime.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.forwarders {
		if c == ch {
			b.forwarders = append(b.forwarders[:i], b.forwarders[i+1:]...)
			return
		}
	}
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.forwarders {
		close(ch)
	}
	b.forwarders = nil
	return nil
}

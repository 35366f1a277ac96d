/*
Package transport connects chat sessions to a chat server.

This file defines the Bus, the in-process broadcast registry that fans inbound frames out
to subscribers. Every subscriber has its own goroutine and buffered queue, so frames reach
each subscriber in publish order and a slow subscriber never stalls the others.
*/
package transport

import (
	"sync"

	"github.com/rs/zerolog"

	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
)

// DefaultSubscriberQueue is the per-subscriber buffer used when none is configured.
const DefaultSubscriberQueue = 256

// Bus is a broadcast registry of frame handlers.
type Bus struct {
	// subs holds the live subscribers, keyed by subscription ID.
	subs map[uint64]*subscriber

	nextID    uint64
	queueSize int
	closed    bool

	// mu protects subs, nextID and closed.
	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type subscriber struct {
	id      uint64
	handler func(frame string)
	queue   chan string
	done    chan struct{}
	once    sync.Once
}

// NewBus creates a Bus whose subscribers buffer up to queueSize frames each.
func NewBus(queueSize int, m *metrics.Metrics) *Bus {
	if queueSize < 1 {
		queueSize = DefaultSubscriberQueue
	}

	return &Bus{
		subs:      make(map[uint64]*subscriber),
		queueSize: queueSize,
		metrics:   m,
		logger:    logx.Component("bus"),
	}
}

// Subscribe registers handler and returns the function that removes it. Once the
// returned function has been called, handler receives no further frames. Subscribing
// to a closed Bus registers nothing.
func (b *Bus) Subscribe(handler func(frame string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.nextID
	b.nextID++

	sub := &subscriber{
		id:      id,
		handler: handler,
		queue:   make(chan string, b.queueSize),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub

	go sub.run()

	b.logger.Debug().Uint64("subscription_id", id).Int("subscribers", len(b.subs)).Msg("Subscriber added.")

	return func() {
		b.remove(id)
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	remaining := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}

	sub.stop()
	b.logger.Debug().Uint64("subscription_id", id).Int("subscribers", remaining).Msg("Subscriber removed.")
}

// Publish queues frame for every subscriber. A subscriber whose queue is full misses
// the frame; the drop is logged and counted.
func (b *Bus) Publish(frame string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.queue <- frame:
		default:
			b.metrics.BusDrop()
			b.logger.Warn().
				Uint64("subscription_id", sub.id).
				Int("queue_len", len(sub.queue)).
				Msg("Subscriber queue full, dropping frame.")
		}
	}
}

// Len returns the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscriber. Later Subscribe calls register nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.queue:
			// unsubscribe wins over a frame that was already queued
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(frame)
		}
	}
}

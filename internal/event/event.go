// Package event routes state changes between components. Subscribers are
// keyed by the dotted "source.endpoint" name of the events they want.
package event

import (
	"fmt"
	"runtime/debug"
	"sync"

	"codeberg.org/mutker/brewctl/internal/logger"
)

// Event is an immutable notification published by a component.
type Event struct {
	Source   string
	Endpoint string
	Payload  any
}

// Name returns the routing identity of the event.
func (e Event) Name() string {
	return Name(e.Source, e.Endpoint)
}

// Name renders a source and endpoint as a dotted event name.
func Name(source, endpoint string) string {
	return source + "." + endpoint
}

// Callback receives the payload of a matching event. A returned error is
// logged by the bus and goes no further.
type Callback func(payload any) error

// Publisher is the publishing half of the bus, which is all most
// components need.
type Publisher interface {
	Publish(ev Event)
}

// Bus is a process-wide publish/subscribe router. Registration happens during
// startup wiring; there is no unregistration.
type Bus struct {
	mu        sync.RWMutex
	observers map[string][]*subscriber
	inflight  sync.WaitGroup
	log       logger.Logger
}

// subscriber queues payloads for one callback. At most one goroutine drains
// it at a time, so a callback sees payloads in publish order.
type subscriber struct {
	name string
	cb   Callback

	mu       sync.Mutex
	queue    []any
	draining bool
}

func NewBus() *Bus {
	return &Bus{
		observers: make(map[string][]*subscriber),
		log:       logger.New("event"),
	}
}

// Register subscribes cb to every future event named name.
func (b *Bus) Register(name string, cb Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.observers[name] = append(b.observers[name], &subscriber{name: name, cb: cb})
}

// Publish queues the payload for every subscriber of ev.Name() and never
// waits for them. Each subscriber receives events in the order they were
// published; a slow subscriber delays only itself.
func (b *Bus) Publish(ev Event) {
	name := ev.Name()

	b.mu.RLock()
	subs := b.observers[name]
	b.mu.RUnlock()

	b.log.Debug().
		Str("event", name).
		Interface("payload", ev.Payload).
		Int("subscribers", len(subs)).
		Msg("notify")

	for _, sub := range subs {
		b.inflight.Add(1)

		sub.mu.Lock()
		sub.queue = append(sub.queue, ev.Payload)
		start := !sub.draining
		sub.draining = true
		sub.mu.Unlock()

		if start {
			go b.drain(sub)
		}
	}
}

// Notify is shorthand for publishing an event built from its parts.
func (b *Bus) Notify(source, endpoint string, payload any) {
	b.Publish(Event{Source: source, Endpoint: endpoint, Payload: payload})
}

// Wait blocks until every delivery queued so far has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) drain(sub *subscriber) {
	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.draining = false
			sub.mu.Unlock()
			return
		}
		payload := sub.queue[0]
		sub.queue[0] = nil
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		b.deliver(sub.name, sub.cb, payload)
	}
}

func (b *Bus) deliver(name string, cb Callback, payload any) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Subscriber panicked")
		}
	}()

	if err := cb(payload); err != nil {
		b.log.Warn().
			Err(err).
			Str("event", name).
			Msg("Subscriber failed")
	}
}

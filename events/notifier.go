// Package events fans out resilience lifecycle events to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/aponysus/aegis/classify"
)

// Event names emitted by the executor and the breaker registry.
const (
	EventError         = "error"
	EventRetry         = "retry"
	EventRecovery      = "recovery"
	EventBreakerOpened = "circuit-breaker-opened"
	EventBreakerClosed = "circuit-breaker-closed"
)

// Names returns every event name.
func Names() []string {
	return []string{EventError, EventRetry, EventRecovery, EventBreakerOpened, EventBreakerClosed}
}

// Event is one lifecycle notification. Error is nil for breaker transitions
// raised by the registry, which carry only the service key.
type Event struct {
	Name       string
	ServiceKey string
	Error      *classify.ClassifiedError
	At         time.Time
}

// Handler receives events. Handlers run on the emitting goroutine for
// synchronous events and on the dispatcher goroutine for deferred ones;
// they must not block for long.
type Handler func(Event)

// Subscription identifies one attached handler.
type Subscription struct {
	name string
	id   uint64
}

// Notifier is a fire-and-forget fan-out of named events. Synchronous
// emission delivers on the caller's goroutine; deferred emission is
// serialized through a single dispatcher goroutine, so every subscriber
// sees deferred events in the order they were raised.
type Notifier struct {
	mu     sync.RWMutex
	closed bool
	nextID uint64
	subs   map[string]map[uint64]Handler

	queue   chan Event
	pending sync.WaitGroup
	done    chan struct{}
	stopped chan struct{}
}

// NewNotifier creates a notifier and starts its dispatcher.
func NewNotifier() *Notifier {
	n := &Notifier{
		subs:    make(map[string]map[uint64]Handler),
		queue:   make(chan Event, 128),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go n.dispatch()
	return n
}

// Subscribe attaches h to events named name.
func (n *Notifier) Subscribe(name string, h Handler) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	sub := Subscription{name: name, id: n.nextID}
	handlers, ok := n.subs[name]
	if !ok {
		handlers = make(map[uint64]Handler)
		n.subs[name] = handlers
	}
	handlers[sub.id] = h
	return sub
}

// SubscribeAll attaches h to every event name.
func (n *Notifier) SubscribeAll(h Handler) []Subscription {
	subs := make([]Subscription, 0, len(Names()))
	for _, name := range Names() {
		subs = append(subs, n.Subscribe(name, h))
	}
	return subs
}

// Unsubscribe detaches a previously attached handler. Unknown subscriptions
// are ignored.
func (n *Notifier) Unsubscribe(sub Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if handlers, ok := n.subs[sub.name]; ok {
		delete(handlers, sub.id)
	}
}

// Emit delivers ev synchronously to every subscriber of ev.Name.
func (n *Notifier) Emit(ev Event) {
	n.mu.RLock()
	handlers := make([]Handler, 0, len(n.subs[ev.Name]))
	for _, h := range n.subs[ev.Name] {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// EmitDeferred queues ev for delivery on the dispatcher goroutine,
// decoupling the emitter from subscriber execution. Events queued after
// Close are dropped.
//
// The enqueue happens under the read lock: Close flips closed under the
// write lock before stopping the dispatcher, so every Add here is matched
// by a Done in dispatch and Flush cannot wedge. The dispatcher is still
// draining while any read lock is held, so the send cannot block on a
// stopped consumer.
func (n *Notifier) EmitDeferred(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return
	}
	n.pending.Add(1)
	n.queue <- ev
}

// Flush blocks until every deferred event queued so far has been delivered.
func (n *Notifier) Flush() {
	n.pending.Wait()
}

// Close detaches all subscribers and stops the dispatcher, then waits for
// it to exit. Subsequent deferred emissions are dropped; synchronous
// emissions find no subscribers. Safe to call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.subs = make(map[string]map[uint64]Handler)
	n.mu.Unlock()

	close(n.done)
	<-n.stopped
}

func (n *Notifier) dispatch() {
	defer close(n.stopped)
	for {
		select {
		case ev := <-n.queue:
			n.Emit(ev)
			n.pending.Done()
		case <-n.done:
			// No emitter can enqueue past this point; drain what remains.
			for {
				select {
				case <-n.queue:
					n.pending.Done()
				default:
					return
				}
			}
		}
	}
}

package scheduler

import (
	"sync"

	"go.uber.org/zap"
)

type subscription struct {
	id      int
	handler Handler
}

// bus fans events out to subscribers. Delivery is serialized so handlers never
// run concurrently, and a panicking handler is isolated from the others.
// Handlers must not call back into Scheduler commands.
type bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    []subscription
	deliver sync.Mutex
	logger  *zap.SugaredLogger
}

func newBus(logger *zap.SugaredLogger) *bus {
	return &bus{logger: logger}
}

func (b *bus) subscribe(h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *bus) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *bus) publish(e Event) {
	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	b.deliver.Lock()
	defer b.deliver.Unlock()

	for _, s := range snapshot {
		b.dispatch(s, e)
	}
}

func (b *bus) dispatch(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Event subscriber panicked",
				"subscriber", s.id,
				"event", e.Type(),
				"panic", r,
			)
		}
	}()
	s.handler(e)
}

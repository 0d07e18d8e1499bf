package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler consumes dispatched events.
type Handler interface {
	HandleEvent(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, e Event) error { return f(ctx, e) }

type subscriber struct {
	name    string
	handler Handler
	queue   chan Event
}

// Dispatcher fans engine events out to subscribers. Each subscriber has its
// own queue and goroutine, so a slow handler only drops its own events. Emit
// never blocks.
type Dispatcher struct {
	size int

	mu   sync.RWMutex
	subs []*subscriber
}

const defaultQueueSize = 256

// NewDispatcher creates a dispatcher whose subscribers each get a queue of
// the given capacity.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Dispatcher{size: size}
}

// Subscribe registers a handler. It must be called before Run.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, &subscriber{name: name, handler: h, queue: make(chan Event, d.size)})
}

// Emit queues e for every subscriber, dropping it for those whose queue is full.
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.subs {
		select {
		case s.queue <- e:
		default:
			log.Warn().
				Str("subscriber", s.name).
				Str("event_type", string(e.Type)).
				Str("event_id", e.ID.String()).
				Uint64("round_seq", e.RoundSeq).
				Msg("subscriber queue full, dropping event")
		}
	}
}

// Run delivers queued events until ctx is cancelled. Each subscriber flushes
// what is left in its queue, and Run returns once all of them have.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.RLock()
	subs := append([]*subscriber(nil), d.subs...)
	d.mu.RUnlock()

	log.Info().Int("subscribers", len(subs)).Int("queue_size", d.size).Msg("event dispatcher started")
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			s.run(ctx)
		}(s)
	}
	wg.Wait()
	log.Info().Msg("event dispatcher stopped")
	return nil
}

func (s *subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case e := <-s.queue:
			s.deliver(ctx, e)
		}
	}
}

func (s *subscriber) flush() {
	for {
		select {
		case e := <-s.queue:
			s.deliver(context.Background(), e)
		default:
			return
		}
	}
}

func (s *subscriber) deliver(ctx context.Context, e Event) {
	if err := s.handler.HandleEvent(ctx, e); err != nil {
		log.Error().
			Err(err).
			Str("subscriber", s.name).
			Str("event_type", string(e.Type)).
			Str("event_id", e.ID.String()).
			Msg("event handler failed")
	}
}

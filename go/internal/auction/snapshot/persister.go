package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Persister writes snapshots on its own goroutine. Only the newest pending
// snapshot is kept; a failed write is logged and superseded by the next one.
type Persister struct {
	store   Store
	timeout time.Duration

	mu      sync.Mutex
	pending *Snapshot
	wake    chan struct{}
	saved   uint64
	failed  uint64
}

// NewPersister creates a persister for store.
func NewPersister(store Store) *Persister {
	return &Persister{
		store:   store,
		timeout: 10 * time.Second,
		wake:    make(chan struct{}, 1),
	}
}

// MarkDirty records s as the latest state. It never blocks.
func (p *Persister) MarkDirty(s Snapshot) {
	p.mu.Lock()
	p.pending = &s
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes pending snapshots until ctx is cancelled, then flushes.
func (p *Persister) Run(ctx context.Context) error {
	log.Info().Msg("snapshot persister started")
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
			defer cancel()
			p.Flush(flushCtx)
			log.Info().Msg("snapshot persister stopped")
			return nil
		case <-p.wake:
			p.Flush(ctx)
		}
	}
}

// Flush writes the pending snapshot, if any, synchronously.
func (p *Persister) Flush(ctx context.Context) {
	p.mu.Lock()
	s := p.pending
	p.pending = nil
	p.mu.Unlock()
	if s == nil {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.store.Save(saveCtx, *s); err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		log.Error().Err(err).Uint64("round_seq", s.RoundSeq).Msg("failed to persist snapshot, will retry on next change")
		return
	}

	p.mu.Lock()
	p.saved++
	p.mu.Unlock()
	log.Debug().Uint64("round_seq", s.RoundSeq).Int("history", len(s.History)).Msg("snapshot persisted")
}

// Counts returns the number of successful and failed writes.
func (p *Persister) Counts() (saved, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved, p.failed
}

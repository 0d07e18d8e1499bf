package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/auction/snapshot"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) ofType(typ events.Type) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type manualPacer struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (p *manualPacer) After(d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, fn)
	p.delays = append(p.delays, d)
}

// runAll executes every scheduled advance and reports how many ran.
func (p *manualPacer) runAll() int {
	p.mu.Lock()
	fns := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

type recordingPersister struct {
	mu    sync.Mutex
	snaps []snapshot.Snapshot
}

func (p *recordingPersister) MarkDirty(s snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *recordingPersister) last() (snapshot.Snapshot, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.snaps) == 0 {
		return snapshot.Snapshot{}, 0
	}
	return p.snaps[len(p.snaps)-1], len(p.snaps)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	clock     *clockwork.FakeClock
	sink      *recordingSink
	pacer     *manualPacer
	persister *recordingPersister
	engine    *Engine
	lots      []models.Lot
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLots(basePrices ...string) []models.Lot {
	out := make([]models.Lot, len(basePrices))
	for i, p := range basePrices {
		out[i] = models.Lot{
			ID:        uuid.New(),
			Name:      "Player " + string(rune('A'+i)),
			Role:      "Batsman",
			BasePrice: dec(p),
		}
	}
	return out
}

// newHarness builds an engine with captains u1 (Kings) and u2 (Royals), both
// with a purse of 1000, and one lot per base price.
func newHarness(t *testing.T, basePrices ...string) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		clock:     clockwork.NewFakeClockAt(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)),
		sink:      &recordingSink{},
		pacer:     &manualPacer{},
		persister: &recordingPersister{},
	}
	h.engine = New(
		WithClock(h.clock),
		WithSink(h.sink),
		WithPacer(h.pacer),
		WithPersister(h.persister),
		WithRand(rand.New(rand.NewSource(7))),
	)
	t.Cleanup(h.engine.sched.CancelAll)

	require.NoError(t, h.engine.RegisterTeam(h.ctx, "Kings", dec("1000")))
	require.NoError(t, h.engine.RegisterTeam(h.ctx, "Royals", dec("1000")))
	require.NoError(t, h.engine.AssignCaptain(h.ctx, "Kings", "u1"))
	require.NoError(t, h.engine.AssignCaptain(h.ctx, "Royals", "u2"))

	h.lots = newLots(basePrices...)
	require.NoError(t, h.engine.LoadCatalog(h.ctx, h.lots))
	return h
}

func (h *harness) start() Round {
	h.t.Helper()
	r, err := h.engine.StartRound(h.ctx)
	require.NoError(h.t, err)
	return r
}

func (h *harness) bid(actor, amount string) Round {
	h.t.Helper()
	r, err := h.engine.PlaceBid(h.ctx, actor, dec(amount))
	require.NoError(h.t, err)
	return r
}

// waitIdle waits for a timer-driven settlement to land.
func (h *harness) waitIdle() {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.engine.State() == StateIdle
	}, time.Second, time.Millisecond)
}

// stayOpen asserts the round is still open after giving timer goroutines a
// chance to run.
func (h *harness) stayOpen() {
	h.t.Helper()
	require.Never(h.t, func() bool {
		return h.engine.State() != StateOpen
	}, 50*time.Millisecond, time.Millisecond)
}

func (h *harness) verifyPurses() {
	h.t.Helper()
	for _, team := range h.engine.Teams() {
		require.True(h.t, team.Purse.Equal(team.OriginalPurse.Sub(team.Spent())),
			"%s purse %s, original %s, spent %s", team.Name, team.Purse, team.OriginalPurse, team.Spent())
		require.False(h.t, team.Purse.IsNegative(), team.Name)
	}
}

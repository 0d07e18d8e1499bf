package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/auctioneer/go/internal/auction/catalog"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
	"github.com/mcdev12/auctioneer/go/internal/auction/scheduler"
	"github.com/mcdev12/auctioneer/go/internal/auction/snapshot"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// State is the round state machine position.
type State int

const (
	StateIdle State = iota
	StateOpen
	// StateSettling is only ever held inside the engine lock.
	StateSettling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateSettling:
		return "settling"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "open":
		*s = StateOpen
	case "settling":
		*s = StateSettling
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// Trigger says what asked for a round to conclude.
type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerTimeout
)

func (t Trigger) String() string {
	if t == TriggerTimeout {
		return "timeout"
	}
	return "manual"
}

// Round is the live bidding window. At most one exists at a time.
type Round struct {
	Seq           uint64          `json:"seq"`
	Lot           models.Lot      `json:"lot"`
	CurrentBid    decimal.Decimal `json:"current_bid"`
	LeadingTeam   string          `json:"leading_team,omitempty"`
	OpenedAt      time.Time       `json:"opened_at"`
	Deadline      time.Time       `json:"deadline"`
	ReminderFired bool            `json:"reminder_fired"`
}

// EventSink receives engine events. Emit is called with the engine lock held
// and must not block.
type EventSink interface {
	Emit(e events.Event)
}

// Persister receives a deep-copied snapshot after every committed transition.
// MarkDirty is called with the engine lock held and must not block.
type Persister interface {
	MarkDirty(s snapshot.Snapshot)
}

// Pacer runs fn after d. The engine uses it to delay the next round after a
// settlement.
type Pacer interface {
	After(d time.Duration, fn func())
}

type clockPacer struct {
	clock clockwork.Clock
}

func (p clockPacer) After(d time.Duration, fn func()) { p.clock.AfterFunc(d, fn) }

type nopSink struct{}

func (nopSink) Emit(events.Event) {}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for timers, deadlines and timestamps.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithSink sets the event sink.
func WithSink(s EventSink) Option { return func(e *Engine) { e.sink = s } }

// WithPersister sets the snapshot persister.
func WithPersister(p Persister) Option { return func(e *Engine) { e.persister = p } }

// WithPacer overrides the auto-advance pacer.
func WithPacer(p Pacer) Option { return func(e *Engine) { e.pacer = p } }

// WithRand sets the random source used to pick lots.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

// WithSettings sets the initial settings. They are clamped.
func WithSettings(s models.Settings) Option {
	return func(e *Engine) { e.settings = s.Clamp() }
}

// Engine is the auction round state machine. Every command and every timer
// fire is serialized through mu.
type Engine struct {
	mu sync.Mutex

	clock     clockwork.Clock
	sink      EventSink
	persister Persister
	pacer     Pacer
	rng       *rand.Rand

	ledger  *ledger.Ledger
	catalog *catalog.Catalog
	sched   *scheduler.Scheduler

	state    State
	round    *Round
	seq      uint64
	epoch    uint64
	history  []models.HistoryRecord
	stats    models.AggregateStats
	settings models.Settings
	ownerID  string
	admins   map[string]struct{}
	closed   bool
}

// New creates an idle engine with no teams and an empty catalog.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:    clockwork.NewRealClock(),
		sink:     nopSink{},
		ledger:   ledger.New(),
		settings: models.DefaultSettings(),
		stats:    emptyStats(),
		admins:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pacer == nil {
		e.pacer = clockPacer{clock: e.clock}
	}
	var catOpts []catalog.Option
	if e.rng != nil {
		catOpts = append(catOpts, catalog.WithRand(e.rng))
	}
	e.catalog = catalog.New(catOpts...)
	e.sched = scheduler.New(e.clock, e.deliverTimer)
	return e
}

// Restore rebuilds an idle engine from a snapshot.
func Restore(s snapshot.Snapshot, opts ...Option) (*Engine, error) {
	e := New(opts...)
	l, err := ledger.Restore(s.Teams)
	if err != nil {
		return nil, err
	}
	if err := e.catalog.Restore(s.Catalog); err != nil {
		return nil, err
	}
	e.ledger = l
	e.seq = s.RoundSeq
	e.history = append([]models.HistoryRecord(nil), s.History...)
	e.stats = copyStats(s.Stats)
	if s.Settings.TimerDuration != 0 {
		e.settings = s.Settings.Clamp()
	}
	e.ownerID = s.OwnerID
	for _, id := range s.AdminIDs {
		e.admins[id] = struct{}{}
	}
	return e, nil
}

// Close stops the round timers and drops any pending auto-advance. A live
// round stays open but no longer settles on its own, and no new round or bid
// is accepted. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.sched.CancelAll()
	log.Info().Uint64("round_seq", e.seq).Str("state", e.state.String()).Msg("auction engine closed")
}

func emptyStats() models.AggregateStats {
	return models.AggregateStats{
		TotalSpent:   decimal.Zero,
		HighestSale:  decimal.Zero,
		AveragePrice: decimal.Zero,
	}
}

func copyStats(s models.AggregateStats) models.AggregateStats {
	if s.MostExpensive != nil {
		m := *s.MostExpensive
		s.MostExpensive = &m
	}
	return s
}

func (e *Engine) emit(typ events.Type, roundSeq uint64, payload any) {
	e.sink.Emit(events.New(typ, roundSeq, e.clock.Now(), payload))
}

func (e *Engine) persistLocked() {
	if e.persister == nil {
		return
	}
	e.persister.MarkDirty(e.snapshotLocked())
}

func (e *Engine) snapshotLocked() snapshot.Snapshot {
	admins := make([]string, 0, len(e.admins))
	for id := range e.admins {
		admins = append(admins, id)
	}
	sort.Strings(admins)
	return snapshot.Snapshot{
		Version:  snapshot.CurrentVersion,
		SavedAt:  e.clock.Now().UTC(),
		RoundSeq: e.seq,
		OwnerID:  e.ownerID,
		AdminIDs: admins,
		Teams:    e.ledger.Teams(),
		Catalog:  e.catalog.Entries(),
		History:  append([]models.HistoryRecord(nil), e.history...),
		Stats:    copyStats(e.stats),
		Settings: e.settings,
	}
}

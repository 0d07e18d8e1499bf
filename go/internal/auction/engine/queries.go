package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
	"github.com/mcdev12/auctioneer/go/internal/auction/snapshot"
	"github.com/mcdev12/auctioneer/go/internal/models"
)

// State returns the current state machine position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentRound returns a copy of the live round.
func (e *Engine) CurrentRound() (Round, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round == nil {
		return Round{}, false
	}
	return *e.round, true
}

var (
	ladderSteps = []int64{1, 2, 5}
	ladderJumps = []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(25), decimal.NewFromInt(50)}
)

// SuggestedBids returns the quick-bid amounts for the live round: the current
// bid raised by one, two and five minimum increments, then by 10, 25 and 50.
// The result is ascending without duplicates, and nil when no round is open.
func (e *Engine) SuggestedBids() []decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateOpen || e.round == nil {
		return nil
	}
	return BidLadder(e.round.CurrentBid, e.settings.MinIncrement)
}

// BidLadder builds the quick-bid amounts above current.
func BidLadder(current, increment decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(ladderSteps)+len(ladderJumps))
	for _, n := range ladderSteps {
		out = append(out, current.Add(increment.Mul(decimal.NewFromInt(n))))
	}
	for _, j := range ladderJumps {
		out = append(out, current.Add(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	uniq := out[:1]
	for _, d := range out[1:] {
		if !d.Equal(uniq[len(uniq)-1]) {
			uniq = append(uniq, d)
		}
	}
	return uniq
}

// Teams returns copies of all teams in registration order.
func (e *Engine) Teams() []models.Team {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Teams()
}

// Team returns a copy of the named team.
func (e *Engine) Team(name string) (models.Team, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Team(name)
}

// TeamStats returns roster statistics for a team.
func (e *Engine) TeamStats(name string) (ledger.TeamStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Stats(name)
}

// Leaderboard returns team statistics ordered by roster size.
func (e *Engine) Leaderboard() []ledger.TeamStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Leaderboard()
}

// History returns the settlement log in order.
func (e *Engine) History() []models.HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.HistoryRecord, len(e.history))
	copy(out, e.history)
	return out
}

// Stats returns the aggregate statistics.
func (e *Engine) Stats() models.AggregateStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyStats(e.stats)
}

// Settings returns the current settings.
func (e *Engine) Settings() models.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Catalog returns every lot with its status.
func (e *Engine) Catalog() []models.CatalogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Entries()
}

// OwnerID returns the configured owner, if any.
func (e *Engine) OwnerID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ownerID
}

// Admins returns the admin ids sorted.
func (e *Engine) Admins() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.admins))
	for id := range e.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a point-in-time copy of the persistent state.
func (e *Engine) Snapshot() snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrTeamNotFound is returned when a team name is not registered
	ErrTeamNotFound = errors.New("team not found")
	// ErrTeamExists is returned when registering a name twice
	ErrTeamExists = errors.New("team already exists")
	// ErrInvalidAmount is returned for zero or negative purses and amounts
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNegativePurse is returned when a mutation would drive a purse below zero
	ErrNegativePurse = errors.New("purse would become negative")
	// ErrCaptainAlreadyAssigned is returned when an actor already captains another team
	ErrCaptainAlreadyAssigned = errors.New("actor already captains another team")
)

// Ledger owns team purses and rosters. It performs no I/O and is not safe for
// concurrent use; the engine serializes access.
type Ledger struct {
	teams map[string]*models.Team
	order []string
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{teams: make(map[string]*models.Team)}
}

// Restore rebuilds a ledger from persisted teams, verifying the purse invariant.
func Restore(teams []models.Team) (*Ledger, error) {
	l := New()
	for _, t := range teams {
		if _, exists := l.teams[t.Name]; exists {
			return nil, fmt.Errorf("restore team %q: %w", t.Name, ErrTeamExists)
		}
		c := t.Clone()
		l.teams[t.Name] = &c
		l.order = append(l.order, t.Name)
	}
	if err := l.Verify(); err != nil {
		return nil, err
	}
	return l, nil
}

// RegisterTeam adds a team with the given starting purse.
func (l *Ledger) RegisterTeam(name string, purse decimal.Decimal) error {
	if name == "" {
		return fmt.Errorf("team name is required")
	}
	if !purse.IsPositive() {
		return fmt.Errorf("register %q: %w", name, ErrInvalidAmount)
	}
	if _, exists := l.teams[name]; exists {
		return fmt.Errorf("register %q: %w", name, ErrTeamExists)
	}
	l.teams[name] = &models.Team{
		Name:          name,
		Purse:         purse,
		OriginalPurse: purse,
		Roster:        []models.RosterEntry{},
	}
	l.order = append(l.order, name)
	return nil
}

// RegisterTeamWithCaptain adds a team already captained by actorID. Every
// check runs before the ledger changes, so a failure leaves it untouched.
func (l *Ledger) RegisterTeamWithCaptain(name string, purse decimal.Decimal, actorID string) error {
	if actorID == "" {
		return l.RegisterTeam(name, purse)
	}
	if other, ok := l.TeamOf(actorID); ok {
		return fmt.Errorf("register %q: %w (%s)", name, ErrCaptainAlreadyAssigned, other.Name)
	}
	if err := l.RegisterTeam(name, purse); err != nil {
		return err
	}
	l.teams[name].CaptainID = actorID
	return nil
}

// AssignCaptain makes actorID the captain of team. Reassigning the same actor to
// the team it already captains is a no-op.
func (l *Ledger) AssignCaptain(team, actorID string) error {
	t, ok := l.teams[team]
	if !ok {
		return fmt.Errorf("assign captain to %q: %w", team, ErrTeamNotFound)
	}
	if actorID == "" {
		return fmt.Errorf("captain id is required")
	}
	for _, other := range l.teams {
		if other.CaptainID == actorID && other.Name != team {
			return fmt.Errorf("assign captain to %q: %w (%s)", team, ErrCaptainAlreadyAssigned, other.Name)
		}
	}
	t.CaptainID = actorID
	return nil
}

// TeamOf returns the team captained by actorID.
func (l *Ledger) TeamOf(actorID string) (models.Team, bool) {
	if actorID == "" {
		return models.Team{}, false
	}
	for _, name := range l.order {
		if t := l.teams[name]; t.CaptainID == actorID {
			return t.Clone(), true
		}
	}
	return models.Team{}, false
}

// Team returns a copy of the named team.
func (l *Ledger) Team(name string) (models.Team, bool) {
	t, ok := l.teams[name]
	if !ok {
		return models.Team{}, false
	}
	return t.Clone(), true
}

// Purse returns the current purse of the named team.
func (l *Ledger) Purse(name string) (decimal.Decimal, error) {
	t, ok := l.teams[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("purse of %q: %w", name, ErrTeamNotFound)
	}
	return t.Purse, nil
}

// Teams returns copies of all teams in registration order.
func (l *Ledger) Teams() []models.Team {
	out := make([]models.Team, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.teams[name].Clone())
	}
	return out
}

// DebitForSale charges amount to the team and appends the roster entry.
func (l *Ledger) DebitForSale(team string, amount decimal.Decimal, entry models.RosterEntry) error {
	t, ok := l.teams[team]
	if !ok {
		return fmt.Errorf("debit %q: %w", team, ErrTeamNotFound)
	}
	if amount.IsNegative() {
		return fmt.Errorf("debit %q: %w", team, ErrInvalidAmount)
	}
	remaining := t.Purse.Sub(amount)
	if remaining.IsNegative() {
		return fmt.Errorf("debit %s from %q (purse %s): %w", amount, team, t.Purse, ErrNegativePurse)
	}
	entry.PricePaid = amount
	t.Purse = remaining
	t.Roster = append(t.Roster, entry)
	return nil
}

// CreditRefund returns amount to the team's purse. Only used by ResetAll.
func (l *Ledger) CreditRefund(team string, amount decimal.Decimal) error {
	t, ok := l.teams[team]
	if !ok {
		return fmt.Errorf("refund %q: %w", team, ErrTeamNotFound)
	}
	next := t.Purse.Add(amount)
	if next.IsNegative() {
		return fmt.Errorf("refund %s to %q: %w", amount, team, ErrNegativePurse)
	}
	t.Purse = next
	return nil
}

// ResetAll refunds every roster and empties it, restoring each purse to its
// original value.
func (l *Ledger) ResetAll() error {
	for _, name := range l.order {
		t := l.teams[name]
		if err := l.CreditRefund(name, t.Spent()); err != nil {
			return err
		}
		t.Roster = []models.RosterEntry{}
		if !t.Purse.Equal(t.OriginalPurse) {
			t.Purse = t.OriginalPurse
		}
	}
	return nil
}

// Verify checks purse = original_purse - spent and purse >= 0 for every team.
func (l *Ledger) Verify() error {
	for _, name := range l.order {
		t := l.teams[name]
		if t.Purse.IsNegative() {
			return fmt.Errorf("team %q: %w", name, ErrNegativePurse)
		}
		if want := t.OriginalPurse.Sub(t.Spent()); !t.Purse.Equal(want) {
			return fmt.Errorf("team %q purse %s does not match original %s minus spent %s",
				name, t.Purse, t.OriginalPurse, t.Spent())
		}
	}
	return nil
}

// TeamStats summarizes a team's roster.
type TeamStats struct {
	Team             string              `json:"team"`
	TotalPlayers     int                 `json:"total_players"`
	TotalSpent       decimal.Decimal     `json:"total_spent"`
	AveragePrice     decimal.Decimal     `json:"average_price"`
	MostExpensive    *models.RosterEntry `json:"most_expensive,omitempty"`
	RoleDistribution map[string]int      `json:"role_distribution"`
	RemainingPurse   decimal.Decimal     `json:"remaining_purse"`
}

// Stats computes roster statistics for the named team.
func (l *Ledger) Stats(name string) (TeamStats, error) {
	t, ok := l.teams[name]
	if !ok {
		return TeamStats{}, fmt.Errorf("stats of %q: %w", name, ErrTeamNotFound)
	}
	return statsOf(t.Clone()), nil
}

func statsOf(t models.Team) TeamStats {
	s := TeamStats{
		Team:             t.Name,
		TotalPlayers:     len(t.Roster),
		TotalSpent:       t.Spent(),
		AveragePrice:     decimal.Zero,
		RoleDistribution: make(map[string]int),
		RemainingPurse:   t.Purse,
	}
	for i, e := range t.Roster {
		role := e.Lot.Role
		if role == "" {
			role = "Unknown"
		}
		s.RoleDistribution[role]++
		if s.MostExpensive == nil || e.PricePaid.GreaterThan(s.MostExpensive.PricePaid) {
			s.MostExpensive = &t.Roster[i]
		}
	}
	if s.TotalPlayers > 0 {
		s.AveragePrice = s.TotalSpent.Div(decimal.NewFromInt(int64(s.TotalPlayers)))
	}
	return s
}

// Leaderboard orders teams by roster size, then by remaining purse.
func (l *Ledger) Leaderboard() []TeamStats {
	out := make([]TeamStats, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, statsOf(l.teams[name].Clone()))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPlayers != out[j].TotalPlayers {
			return out[i].TotalPlayers > out[j].TotalPlayers
		}
		return out[i].RemainingPurse.GreaterThan(out[j].RemainingPurse)
	})
	return out
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Team is a bidder with a finite purse.
type Team struct {
	Name          string          `json:"name"`
	Purse         decimal.Decimal `json:"purse"`
	OriginalPurse decimal.Decimal `json:"original_purse"`
	CaptainID     string          `json:"captain_id,omitempty"`
	Roster        []RosterEntry   `json:"roster"`
}

// RosterEntry records a lot bought by a team.
type RosterEntry struct {
	Lot         Lot             `json:"lot"`
	PricePaid   decimal.Decimal `json:"price_paid"`
	AcquiredAt  time.Time       `json:"acquired_at"`
	RoundNumber uint64          `json:"round_number"`
}

// Spent returns the sum of prices paid over the roster.
func (t Team) Spent() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Roster {
		total = total.Add(e.PricePaid)
	}
	return total
}

// Clone returns a deep copy of the team.
func (t Team) Clone() Team {
	c := t
	c.Roster = make([]RosterEntry, len(t.Roster))
	copy(c.Roster, t.Roster)
	return c
}

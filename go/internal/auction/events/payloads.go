package events

import (
	"time"

	"github.com/mcdev12/auctioneer/go/internal/auction/ledger"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
)

// Event payload types shared by the engine, gateway, publisher and notifier

// RoundOpenedPayload is the payload for a RoundOpened event
type RoundOpenedPayload struct {
	RoundSeq   uint64          `json:"round_seq"`
	Lot        models.Lot      `json:"lot"`
	BasePrice  decimal.Decimal `json:"base_price"`
	OpenedAt   time.Time       `json:"opened_at"`
	Deadline   time.Time       `json:"deadline"`
	TimerSec   int             `json:"timer_sec"`
	ShowPhotos bool            `json:"show_photos"`
}

// BidAcceptedPayload is the payload for a BidAccepted event
type BidAcceptedPayload struct {
	RoundSeq       uint64          `json:"round_seq"`
	Lot            models.Lot      `json:"lot"`
	ActorID        string          `json:"actor_id"`
	Team           string          `json:"team"`
	Amount         decimal.Decimal `json:"amount"`
	PreviousLeader string          `json:"previous_leader,omitempty"`
	PreviousBid    decimal.Decimal `json:"previous_bid"`
	Deadline       time.Time       `json:"deadline"`
}

// Outbid reports whether the bid displaced a different team.
func (p BidAcceptedPayload) Outbid() bool {
	return p.PreviousLeader != "" && p.PreviousLeader != p.Team
}

// ReminderDuePayload is the payload for a ReminderDue event
type ReminderDuePayload struct {
	RoundSeq    uint64          `json:"round_seq"`
	Lot         models.Lot      `json:"lot"`
	CurrentBid  decimal.Decimal `json:"current_bid"`
	LeadingTeam string          `json:"leading_team,omitempty"`
	SecondsLeft int             `json:"seconds_left"`
}

// RoundClosedPayload is the payload for a RoundClosed event
type RoundClosedPayload struct {
	RoundSeq uint64                  `json:"round_seq"`
	Status   models.SettlementStatus `json:"status"`
	Lot      models.Lot              `json:"lot"`
	Price    decimal.Decimal         `json:"price"`
	Team     string                  `json:"team"`
	Trigger  string                  `json:"trigger"`
	ClosedAt time.Time               `json:"closed_at"`
}

// SettlementRejectedPayload is the payload for a SettlementRejected event. The
// round has been reopened at its base price with fresh timers.
type SettlementRejectedPayload struct {
	RoundSeq uint64          `json:"round_seq"`
	Lot      models.Lot      `json:"lot"`
	Team     string          `json:"team"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
	Deadline time.Time       `json:"deadline"`
}

// CatalogExhaustedPayload is the payload for a CatalogExhausted event
type CatalogExhaustedPayload struct {
	FinalStats  models.AggregateStats `json:"final_stats"`
	Leaderboard []ledger.TeamStats    `json:"leaderboard"`
	UnsoldLots  int                   `json:"unsold_lots"`
}

// SettingsChangedPayload is the payload for a SettingsChanged event
type SettingsChangedPayload struct {
	Settings models.Settings `json:"settings"`
}

// AuctionResetPayload is the payload for an AuctionReset event
type AuctionResetPayload struct {
	ResetAt       time.Time `json:"reset_at"`
	AvailableLots int       `json:"available_lots"`
}

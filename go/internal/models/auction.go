package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementStatus defines how a round ended.
type SettlementStatus string

const (
	SettlementSold    SettlementStatus = "Sold"
	SettlementUnsold  SettlementStatus = "Unsold"
	SettlementSkipped SettlementStatus = "Skipped"
)

// NoTeam is written in place of a team name when a round ends without a sale.
const NoTeam = "N/A"

// HistoryRecord is an append-only entry in the auction log.
type HistoryRecord struct {
	Seq       int              `json:"seq"`
	RoundSeq  uint64           `json:"round_seq"`
	LotID     uuid.UUID        `json:"lot_id"`
	LotName   string           `json:"lot_name"`
	Price     decimal.Decimal  `json:"price"`
	Team      string           `json:"team"`
	Status    SettlementStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// SaleRecord identifies a single sale.
type SaleRecord struct {
	Lot   Lot             `json:"lot"`
	Price decimal.Decimal `json:"price"`
	Team  string          `json:"team"`
}

// AggregateStats are maintained incrementally on every settlement.
type AggregateStats struct {
	TotalRounds   int             `json:"total_rounds"`
	LotsSold      int             `json:"lots_sold"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	HighestSale   decimal.Decimal `json:"highest_sale"`
	MostExpensive *SaleRecord     `json:"most_expensive,omitempty"`
	AveragePrice  decimal.Decimal `json:"average_price"`
}

// Settings holds the tunable auction parameters.
type Settings struct {
	TimerDuration time.Duration   `json:"timer_duration" yaml:"timer_duration"`
	ReminderLead  time.Duration   `json:"reminder_lead" yaml:"reminder_lead"`
	MinIncrement  decimal.Decimal `json:"min_increment" yaml:"-"`
	AutoAdvance   bool            `json:"auto_advance" yaml:"auto_advance"`
	ShowPhotos    bool            `json:"show_photos" yaml:"show_photos"`
	AdvanceDelay  time.Duration   `json:"advance_delay" yaml:"advance_delay"`
}

// Settings bounds.
const (
	MinTimerDuration = 10 * time.Second
	MaxTimerDuration = 120 * time.Second
	MinReminderLead  = 1 * time.Second
	MaxReminderLead  = 10 * time.Second
)

// MinBidIncrement is the smallest allowed increment between bids.
var MinBidIncrement = decimal.RequireFromString("0.1")

// DefaultSettings returns the settings a fresh auction starts with.
func DefaultSettings() Settings {
	return Settings{
		TimerDuration: 30 * time.Second,
		ReminderLead:  3 * time.Second,
		MinIncrement:  MinBidIncrement,
		AutoAdvance:   true,
		ShowPhotos:    true,
		AdvanceDelay:  3 * time.Second,
	}
}

// Clamp pulls every field back into its allowed range.
func (s Settings) Clamp() Settings {
	if s.TimerDuration < MinTimerDuration {
		s.TimerDuration = MinTimerDuration
	}
	if s.TimerDuration > MaxTimerDuration {
		s.TimerDuration = MaxTimerDuration
	}
	if s.ReminderLead < MinReminderLead {
		s.ReminderLead = MinReminderLead
	}
	if s.ReminderLead > MaxReminderLead {
		s.ReminderLead = MaxReminderLead
	}
	if s.MinIncrement.LessThan(MinBidIncrement) {
		s.MinIncrement = MinBidIncrement
	}
	if s.AdvanceDelay < 0 {
		s.AdvanceDelay = 0
	}
	return s
}

// SettingsPatch carries optional settings updates. Nil fields are left unchanged.
type SettingsPatch struct {
	TimerDuration *time.Duration   `json:"timer_duration,omitempty"`
	ReminderLead  *time.Duration   `json:"reminder_lead,omitempty"`
	MinIncrement  *decimal.Decimal `json:"min_increment,omitempty"`
	AutoAdvance   *bool            `json:"auto_advance,omitempty"`
	ShowPhotos    *bool            `json:"show_photos,omitempty"`
}

// Apply returns s with the patch applied and clamped.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.TimerDuration != nil {
		s.TimerDuration = *p.TimerDuration
	}
	if p.ReminderLead != nil {
		s.ReminderLead = *p.ReminderLead
	}
	if p.MinIncrement != nil {
		s.MinIncrement = *p.MinIncrement
	}
	if p.AutoAdvance != nil {
		s.AutoAdvance = *p.AutoAdvance
	}
	if p.ShowPhotos != nil {
		s.ShowPhotos = *p.ShowPhotos
	}
	return s.Clamp()
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an engine event.
type Type string

const (
	TypeRoundOpened        Type = "RoundOpened"
	TypeBidAccepted        Type = "BidAccepted"
	TypeReminderDue        Type = "ReminderDue"
	TypeRoundClosed        Type = "RoundClosed"
	TypeSettlementRejected Type = "SettlementRejected"
	TypeCatalogExhausted   Type = "CatalogExhausted"
	TypeSettingsChanged    Type = "SettingsChanged"
	TypeAuctionReset       Type = "AuctionReset"
)

// Event is a single engine transition. Payload holds one of the *Payload types
// in this package, by value.
type Event struct {
	ID        uuid.UUID
	Type      Type
	RoundSeq  uint64
	Timestamp time.Time
	Payload   any
}

// New builds an event with a fresh id.
func New(typ Type, roundSeq uint64, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		RoundSeq:  roundSeq,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// Envelope is the wire form of an event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType Type            `json:"eventType"`
	RoundSeq  uint64          `json:"roundSeq"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Envelope marshals the payload and wraps it.
func (e Event) Envelope() (Envelope, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return Envelope{
		EventID:   e.ID.String(),
		EventType: e.Type,
		RoundSeq:  e.RoundSeq,
		Timestamp: e.Timestamp,
		Payload:   payload,
	}, nil
}

// MarshalJSON encodes the event as its envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	env, err := e.Envelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotStatus is the lifecycle tag of a lot in the catalog.
type LotStatus string

const (
	LotStatusAvailable LotStatus = "available"
	LotStatusSold      LotStatus = "sold"
	LotStatusUnsold    LotStatus = "unsold"
)

// Lot is a player put up for auction.
type Lot struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Role       string          `json:"role"`
	BasePrice  decimal.Decimal `json:"base_price"`
	ProfileRef string          `json:"profile_ref,omitempty"` // external profile id, e.g. a chat user id
	Username   string          `json:"username,omitempty"`
	Rating     *float64        `json:"rating,omitempty"`
	Specialty  string          `json:"specialty,omitempty"`
}

// CatalogEntry pairs a lot with its current lifecycle tag.
type CatalogEntry struct {
	Lot    Lot       `json:"lot"`
	Status LotStatus `json:"status"`
}

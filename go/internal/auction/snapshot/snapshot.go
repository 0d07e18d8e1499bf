package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/models"
)

// CurrentVersion is written into every saved snapshot.
const CurrentVersion = 1

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the persisted form of the whole auction. A live round is never
// persisted; a restart resumes in the idle state.
type Snapshot struct {
	Version  int                    `json:"version"`
	SavedAt  time.Time              `json:"saved_at"`
	RoundSeq uint64                 `json:"round_seq"`
	OwnerID  string                 `json:"owner_id,omitempty"`
	AdminIDs []string               `json:"admin_ids"`
	Teams    []models.Team          `json:"teams"`
	Catalog  []models.CatalogEntry  `json:"catalog"`
	History  []models.HistoryRecord `json:"history"`
	Stats    models.AggregateStats  `json:"stats"`
	Settings models.Settings        `json:"settings"`
}

// Store saves and loads snapshots.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

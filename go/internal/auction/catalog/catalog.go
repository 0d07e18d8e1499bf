package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/auctioneer/go/internal/models"
)

var (
	// ErrNoLotsAvailable is returned when every lot has been sold or passed over
	ErrNoLotsAvailable = errors.New("no lots available")
	// ErrLotNotFound is returned for unknown lot ids
	ErrLotNotFound = errors.New("lot not found")
	// ErrLotNotAvailable is returned when a lot is moved out of a status it is not in
	ErrLotNotAvailable = errors.New("lot is not available")
)

// Catalog is the pool of lots. Each lot is in exactly one of available, sold or
// unsold. Not safe for concurrent use.
type Catalog struct {
	lots   []models.Lot
	index  map[uuid.UUID]int
	status map[uuid.UUID]models.LotStatus
	rng    *rand.Rand
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRand sets the random source used by PickRandomAvailable.
func WithRand(rng *rand.Rand) Option {
	return func(c *Catalog) { c.rng = rng }
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		index:  make(map[uuid.UUID]int),
		status: make(map[uuid.UUID]models.LotStatus),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the catalog with lots, all available.
func (c *Catalog) Load(lots []models.Lot) error {
	entries := make([]models.CatalogEntry, len(lots))
	for i, l := range lots {
		entries[i] = models.CatalogEntry{Lot: l, Status: models.LotStatusAvailable}
	}
	return c.Restore(entries)
}

// Restore replaces the catalog with persisted entries.
func (c *Catalog) Restore(entries []models.CatalogEntry) error {
	lots := make([]models.Lot, 0, len(entries))
	index := make(map[uuid.UUID]int, len(entries))
	status := make(map[uuid.UUID]models.LotStatus, len(entries))
	for _, e := range entries {
		lot := e.Lot
		if lot.ID == uuid.Nil {
			lot.ID = uuid.New()
		}
		if _, dup := index[lot.ID]; dup {
			return fmt.Errorf("duplicate lot id %s", lot.ID)
		}
		if lot.BasePrice.IsNegative() {
			return fmt.Errorf("lot %q has negative base price %s", lot.Name, lot.BasePrice)
		}
		switch e.Status {
		case models.LotStatusAvailable, models.LotStatusSold, models.LotStatusUnsold:
		case "":
			e.Status = models.LotStatusAvailable
		default:
			return fmt.Errorf("lot %q has unknown status %q", lot.Name, e.Status)
		}
		index[lot.ID] = len(lots)
		lots = append(lots, lot)
		status[lot.ID] = e.Status
	}
	c.lots, c.index, c.status = lots, index, status
	return nil
}

// PickRandomAvailable returns a uniformly random available lot.
func (c *Catalog) PickRandomAvailable() (models.Lot, error) {
	avail := c.Available()
	if len(avail) == 0 {
		return models.Lot{}, ErrNoLotsAvailable
	}
	return avail[c.rng.Intn(len(avail))], nil
}

// MarkSold moves an available lot to sold.
func (c *Catalog) MarkSold(id uuid.UUID) error {
	return c.move(id, models.LotStatusSold)
}

// MarkUnsold moves an available lot to unsold.
func (c *Catalog) MarkUnsold(id uuid.UUID) error {
	return c.move(id, models.LotStatusUnsold)
}

func (c *Catalog) move(id uuid.UUID, to models.LotStatus) error {
	cur, ok := c.status[id]
	if !ok {
		return fmt.Errorf("mark %s %s: %w", id, to, ErrLotNotFound)
	}
	if cur != models.LotStatusAvailable {
		return fmt.Errorf("mark %s %s (currently %s): %w", id, to, cur, ErrLotNotAvailable)
	}
	c.status[id] = to
	return nil
}

// Reset makes every lot available again.
func (c *Catalog) Reset() {
	for id := range c.status {
		c.status[id] = models.LotStatusAvailable
	}
}

// Lot returns the lot with the given id.
func (c *Catalog) Lot(id uuid.UUID) (models.Lot, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.Lot{}, false
	}
	return c.lots[i], true
}

// Status returns the lifecycle tag of a lot.
func (c *Catalog) Status(id uuid.UUID) (models.LotStatus, bool) {
	s, ok := c.status[id]
	return s, ok
}

// Available returns the available lots in load order.
func (c *Catalog) Available() []models.Lot { return c.withStatus(models.LotStatusAvailable) }

// Sold returns the sold lots in load order.
func (c *Catalog) Sold() []models.Lot { return c.withStatus(models.LotStatusSold) }

// Unsold returns the unsold lots in load order.
func (c *Catalog) Unsold() []models.Lot { return c.withStatus(models.LotStatusUnsold) }

func (c *Catalog) withStatus(s models.LotStatus) []models.Lot {
	var out []models.Lot
	for _, l := range c.lots {
		if c.status[l.ID] == s {
			out = append(out, l)
		}
	}
	return out
}

// Len returns the number of lots in the catalog.
func (c *Catalog) Len() int { return len(c.lots) }

// Entries returns every lot with its status in load order.
func (c *Catalog) Entries() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(c.lots))
	for i, l := range c.lots {
		out[i] = models.CatalogEntry{Lot: l, Status: c.status[l.ID]}
	}
	return out
}

package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Header is the column layout of an exported results file.
var Header = []string{
	"Auction_No", "Player", "Role", "Base_Price", "Final_Price",
	"Team", "Status", "Timestamp", "Player_ID", "Username",
}

const timestampLayout = "2006-01-02 15:04:05"

// Source supplies the records to export.
type Source interface {
	History() []models.HistoryRecord
	Catalog() []models.CatalogEntry
}

// WriteCSV writes history as CSV, joining each record with its catalog lot.
func WriteCSV(w io.Writer, history []models.HistoryRecord, catalog []models.CatalogEntry) error {
	lots := make(map[uuid.UUID]models.Lot, len(catalog))
	for _, e := range catalog {
		lots[e.Lot.ID] = e.Lot
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range history {
		lot, ok := lots[rec.LotID]
		if !ok {
			lot = models.Lot{Name: rec.LotName}
		}
		row := []string{
			strconv.Itoa(rec.Seq),
			rec.LotName,
			lot.Role,
			lot.BasePrice.String(),
			rec.Price.String(),
			rec.Team,
			string(rec.Status),
			rec.Timestamp.Format(timestampLayout),
			lot.ProfileRef,
			lot.Username,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns the results file name for an export started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("auction_results_%s.csv", t.Format("20060102_150405"))
}

// Exporter rewrites a results file after every settlement. It is an
// events.Handler.
type Exporter struct {
	source Source
	path   string
}

// NewExporter creates an exporter writing into dir. The file name is fixed at
// construction from clock.
func NewExporter(source Source, dir string, clock clockwork.Clock) *Exporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Exporter{source: source, path: filepath.Join(dir, FileName(clock.Now()))}
}

// Path returns the file the exporter writes.
func (x *Exporter) Path() string { return x.path }

// HandleEvent exports on RoundClosed and ignores everything else.
func (x *Exporter) HandleEvent(_ context.Context, e events.Event) error {
	if e.Type != events.TypeRoundClosed {
		return nil
	}
	return x.Export()
}

// Export writes the current history to the results file.
func (x *Exporter) Export() error {
	history := x.source.History()
	if err := WriteFile(x.path, history, x.source.Catalog()); err != nil {
		return err
	}
	log.Debug().Str("path", x.path).Int("records", len(history)).Msg("exported auction results")
	return nil
}

// WriteFile writes the CSV to path through a temporary file and rename.
func WriteFile(path string, history []models.HistoryRecord, catalog []models.CatalogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, history, catalog); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

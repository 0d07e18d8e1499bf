package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/auctioneer/go/internal/auction/events"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	history []models.HistoryRecord
	catalog []models.CatalogEntry
}

func (s *fixedSource) History() []models.HistoryRecord { return s.history }
func (s *fixedSource) Catalog() []models.CatalogEntry  { return s.catalog }

func testSource() *fixedSource {
	at := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	virat := models.Lot{ID: uuid.New(), Name: "Virat", Role: "Batsman", BasePrice: decimal.NewFromInt(100), ProfileRef: "42", Username: "vk"}
	bumrah := models.Lot{ID: uuid.New(), Name: "Bumrah", Role: "Bowler", BasePrice: decimal.NewFromInt(80)}
	return &fixedSource{
		catalog: []models.CatalogEntry{
			{Lot: virat, Status: models.LotStatusSold},
			{Lot: bumrah, Status: models.LotStatusUnsold},
		},
		history: []models.HistoryRecord{
			{Seq: 1, LotID: virat.ID, LotName: "Virat", Price: decimal.NewFromInt(120), Team: "Kings", Status: models.SettlementSold, Timestamp: at},
			{Seq: 2, LotID: bumrah.ID, LotName: "Bumrah", Price: decimal.Zero, Team: models.NoTeam, Status: models.SettlementUnsold, Timestamp: at.Add(time.Minute)},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	src := testSource()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, src.history, src.catalog))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"1", "Virat", "Batsman", "100", "120", "Kings", "Sold", "2025-03-01 18:30:00", "42", "vk"}, rows[1])
	assert.Equal(t, []string{"2", "Bumrah", "Bowler", "80", "0", "N/A", "Unsold", "2025-03-01 18:31:00", "", ""}, rows[2])
}

func TestExporterWritesOnRoundClosed(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 18, 0, 5, 0, time.UTC))
	src := testSource()
	x := NewExporter(src, dir, clock)
	assert.Equal(t, "auction_results_20250301_180005.csv", FileName(clock.Now()))

	require.NoError(t, x.HandleEvent(context.Background(), events.New(events.TypeBidAccepted, 1, clock.Now(), nil)))
	_, err := os.Stat(x.Path())
	assert.True(t, os.IsNotExist(err), "only settlements trigger an export")

	require.NoError(t, x.HandleEvent(context.Background(), events.New(events.TypeRoundClosed, 1, clock.Now(), nil)))
	f, err := os.Open(x.Path())
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}

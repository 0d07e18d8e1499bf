package catalog

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lots(names ...string) []models.Lot {
	out := make([]models.Lot, len(names))
	for i, n := range names {
		out[i] = models.Lot{ID: uuid.New(), Name: n, Role: "Batsman", BasePrice: decimal.NewFromInt(100)}
	}
	return out
}

func TestLifecycle(t *testing.T) {
	c := New(WithRand(rand.New(rand.NewSource(1))))
	in := lots("A", "B", "C")
	require.NoError(t, c.Load(in))
	assert.Len(t, c.Available(), 3)

	require.NoError(t, c.MarkSold(in[0].ID))
	require.NoError(t, c.MarkUnsold(in[1].ID))

	assert.ErrorIs(t, c.MarkSold(in[0].ID), ErrLotNotAvailable)
	assert.ErrorIs(t, c.MarkUnsold(in[0].ID), ErrLotNotAvailable)
	assert.ErrorIs(t, c.MarkSold(uuid.New()), ErrLotNotFound)

	assert.Equal(t, []models.Lot{in[2]}, c.Available())
	assert.Equal(t, []models.Lot{in[0]}, c.Sold())
	assert.Equal(t, []models.Lot{in[1]}, c.Unsold())

	status, ok := c.Status(in[1].ID)
	require.True(t, ok)
	assert.Equal(t, models.LotStatusUnsold, status)

	c.Reset()
	assert.Len(t, c.Available(), 3)
	assert.Empty(t, c.Sold())
	assert.Empty(t, c.Unsold())
}

func TestEveryLotHasExactlyOneStatus(t *testing.T) {
	c := New()
	in := lots("A", "B", "C", "D")
	require.NoError(t, c.Load(in))
	require.NoError(t, c.MarkSold(in[1].ID))
	require.NoError(t, c.MarkUnsold(in[3].ID))

	total := len(c.Available()) + len(c.Sold()) + len(c.Unsold())
	assert.Equal(t, c.Len(), total)
	assert.Len(t, c.Entries(), 4)
}

func TestPickRandomAvailable(t *testing.T) {
	c := New(WithRand(rand.New(rand.NewSource(42))))
	in := lots("A", "B", "C")
	require.NoError(t, c.Load(in))
	require.NoError(t, c.MarkSold(in[0].ID))

	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		lot, err := c.PickRandomAvailable()
		require.NoError(t, err)
		seen[lot.Name]++
	}
	assert.Zero(t, seen["A"], "sold lots are never picked")
	assert.Positive(t, seen["B"])
	assert.Positive(t, seen["C"])

	require.NoError(t, c.MarkSold(in[1].ID))
	require.NoError(t, c.MarkUnsold(in[2].ID))
	_, err := c.PickRandomAvailable()
	assert.ErrorIs(t, err, ErrNoLotsAvailable)
}

func TestRestore(t *testing.T) {
	in := lots("A", "B")
	c := New()
	require.NoError(t, c.Restore([]models.CatalogEntry{
		{Lot: in[0], Status: models.LotStatusSold},
		{Lot: in[1], Status: models.LotStatusAvailable},
	}))
	assert.Equal(t, []models.Lot{in[1]}, c.Available())

	err := c.Restore([]models.CatalogEntry{{Lot: in[0]}, {Lot: in[0]}})
	assert.Error(t, err)

	err = c.Restore([]models.CatalogEntry{{Lot: in[0], Status: "lost"}})
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	src := `Name,Role,Base_Price,id,username,rating,speciality
Virat,Batsman,200,12345,@virat,9.5,Cover drive
Jasprit,Bowler,150.5,,,,

,Bowler,10,,,,
`
	got, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Virat", got[0].Name)
	assert.Equal(t, "Batsman", got[0].Role)
	assert.True(t, got[0].BasePrice.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "12345", got[0].ProfileRef)
	assert.Equal(t, "virat", got[0].Username)
	require.NotNil(t, got[0].Rating)
	assert.InDelta(t, 9.5, *got[0].Rating, 0.0001)
	assert.Equal(t, "Cover drive", got[0].Specialty)
	assert.NotEqual(t, uuid.Nil, got[0].ID)

	assert.True(t, got[1].BasePrice.Equal(decimal.RequireFromString("150.5")))
	assert.Nil(t, got[1].Rating)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{name: "empty", src: "", want: ErrMissingColumn},
		{name: "no base price", src: "name,role\nA,B\n", want: ErrMissingColumn},
		{name: "bad price", src: "name,role,base_price\nA,B,lots\n"},
		{name: "negative price", src: "name,role,base_price\nA,B,-1\n"},
		{name: "bad rating", src: "name,role,base_price,rating\nA,B,1,high\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.src))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

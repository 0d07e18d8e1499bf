package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/shopspring/decimal"
)

var requiredColumns = []string{"name", "role", "base_price"}

// ErrMissingColumn is returned when the catalog CSV lacks a required header.
var ErrMissingColumn = errors.New("missing required column")

// ReadCSV parses a catalog file. The header must contain name, role and
// base_price; id, username, rating and speciality are optional. Blank lines and
// rows without a name are skipped.
func ReadCSV(r io.Reader) ([]models.Lot, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var lots []models.Lot
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		name := field(row, "name")
		if name == "" {
			continue
		}
		price, err := decimal.NewFromString(field(row, "base_price"))
		if err != nil {
			return nil, fmt.Errorf("line %d: base_price: %w", line, err)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("line %d: base_price %s is negative", line, price)
		}
		lot := models.Lot{
			ID:         uuid.New(),
			Name:       name,
			Role:       field(row, "role"),
			BasePrice:  price,
			ProfileRef: field(row, "id"),
			Username:   strings.TrimPrefix(field(row, "username"), "@"),
			Specialty:  field(row, "speciality"),
		}
		if raw := field(row, "rating"); raw != "" {
			rating, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: rating: %w", line, err)
			}
			lot.Rating = &rating
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

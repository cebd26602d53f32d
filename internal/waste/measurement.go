package waste

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawRow is one entry of the portal listing's aaData array.
type RawRow []string

// UnmarshalJSON accepts any JSON array. String cells are kept as-is, null
// cells become empty and any other cell is kept as its JSON text, so a row
// with an unexpected cell still reaches Parse and is rejected there with the
// row attached.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	var cells []json.RawMessage
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	row := make(RawRow, len(cells))
	for i, cell := range cells {
		var text string
		if err := json.Unmarshal(cell, &text); err == nil {
			row[i] = text
			continue
		}
		row[i] = string(bytes.TrimSpace(cell))
	}
	*r = row
	return nil
}

// Measurement is a single weighing: the collection date and the weight in kg.
type Measurement struct {
	Date   civil.Date
	Weight decimal.Decimal
}

// Kilograms returns the weight as a float for JSON payloads.
func (m Measurement) Kilograms() float64 {
	return m.Weight.InexactFloat64()
}

// Entry pairs a parsed measurement with the category it was recorded under.
type Entry struct {
	Category    Category
	Measurement Measurement
}

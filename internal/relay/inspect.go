package relay

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

// Row is one portal row as understood by the parser. Unlike Run, Inspect
// keeps going past rows that fail to parse so every problem is visible.
type Row struct {
	Raw         waste.RawRow
	Category    waste.Category
	Measurement waste.Measurement
	Fee         decimal.Decimal
	HasFee      bool
	Err         error
}

// Inspect reads the portal rows and parses each one independently.
func Inspect(ctx context.Context, source RowSource) ([]Row, error) {
	raws, err := source.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read portal: %w", err)
	}
	rows := make([]Row, 0, len(raws))
	for _, raw := range raws {
		row := Row{Raw: raw}
		row.Category, row.Measurement, row.Err = waste.Parse(raw)
		if len(raw) > waste.FeeIndex {
			if fee, err := waste.ParseFee(raw[waste.FeeIndex]); err == nil {
				row.Fee, row.HasFee = fee, true
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

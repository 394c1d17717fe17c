package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/selection"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineInput is one edited row as submitted by the operator.
type LineInput struct {
	// LineID keeps the identity of an existing row; zero for a new row.
	LineID       uuid.UUID       `json:"line_id"`
	DrugID       uint            `json:"drug_id"`
	ConversionID *uint           `json:"conversion_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	// UnitPrice overrides the catalog pack price when set.
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	BatchNumber string           `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	// Selected defaults to true; unselected rows are kept out of the document.
	Selected *bool `json:"selected,omitempty"`
}

// Rows is the outcome of BuildLines: every row, the selection over them and
// the selected rows in list order.
type Rows struct {
	Items    []*conversion.LineItem
	Selected *selection.Set
	Chosen   []*conversion.LineItem
	// Expiry is keyed by line id.
	Expiry map[uuid.UUID]*time.Time
}

// BuildLines turns inputs into line items using the catalog's current view of
// each drug. Errors name the offending row as items[i].field.
func BuildLines(ctx context.Context, catalog *CatalogService, inputs []LineInput) (*Rows, error) {
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.DrugID)
	}
	table, drugs, err := catalog.Table(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &Rows{Expiry: map[uuid.UUID]*time.Time{}}
	seen := map[uuid.UUID]bool{}
	for i, in := range inputs {
		d, ok := drugs[in.DrugID]
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("items[%d].drug_id", i), apperr.ReasonUnknown)
		}
		li := conversion.NewLineItem(d)
		if in.LineID != uuid.Nil {
			if seen[in.LineID] {
				return nil, apperr.Validation(fmt.Sprintf("items[%d].line_id", i), "duplicate")
			}
			li.ID = in.LineID
		}
		seen[li.ID] = true

		var conv uint
		if in.ConversionID != nil {
			conv = *in.ConversionID
			if conv != 0 {
				if _, err := table.Factor(d.ID, conv); err != nil {
					return nil, rowErr(i, err)
				}
			}
		} else if p := d.FirstConversion(); p != nil {
			conv = p.ID
		}
		if err := li.SelectPackTypeID(conv); err != nil {
			return nil, rowErr(i, err)
		}
		if err := li.SetOrderQuantity(in.Quantity); err != nil {
			return nil, rowErr(i, err)
		}
		if in.UnitPrice != nil {
			if in.UnitPrice.IsNegative() {
				return nil, &apperr.ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Reason: apperr.ReasonNegative, Limit: "0"}
			}
			li.UnitPrice = *in.UnitPrice
		}
		li.BatchNumber = strings.TrimSpace(in.BatchNumber)
		out.Expiry[li.ID] = in.ExpiryDate
		out.Items = append(out.Items, li)
	}

	out.Selected = selection.SelectAll(out.Items)
	for i, in := range inputs {
		if in.Selected != nil && !*in.Selected {
			out.Selected.Set(out.Items[i].ID, false)
		}
	}
	out.Chosen, err = selection.Rows(out.Items, out.Selected)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rowErr prefixes the field of a ValidationError with the row index.
func rowErr(i int, err error) error {
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	cp := *ve
	cp.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
	return &cp
}

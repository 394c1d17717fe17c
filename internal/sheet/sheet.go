// Package sheet reads and writes the xlsx files exchanged with operators:
// document exports and bulk line-item imports.
package sheet

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// ExportRow is one document in an export.
type ExportRow struct {
	Number       string
	Date         time.Time
	Counterparty string
	// Variants maps a pack-type label to the codes of the drugs ordered in it.
	Variants map[string][]string
	Status   string
}

// Header returns the export columns: the fixed ones plus one per variant
// label present in rows, sorted.
func Header(rows []ExportRow) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for v := range r.Variants {
			seen[v] = struct{}{}
		}
	}
	variants := make([]string, 0, len(seen))
	for v := range seen {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	h := []string{"S.No", "Document No", "Date", "Counterparty"}
	h = append(h, variants...)
	return append(h, "Status")
}

// WriteExport writes rows as an xlsx workbook.
func WriteExport(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	header := Header(rows)
	variants := header[4 : len(header)-1]

	hdr := make([]interface{}, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &hdr); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range rows {
		vals := []interface{}{i + 1, r.Number, r.Date.Format("2006-01-02"), r.Counterparty}
		for _, v := range variants {
			vals = append(vals, strings.Join(r.Variants[v], ", "))
		}
		vals = append(vals, r.Status)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ImportLine is one requested line of a bulk import.
type ImportLine struct {
	Row      int
	Code     string
	PackType string
	Quantity decimal.Decimal
}

var importColumns = []string{"code", "pack_type", "quantity"}

// ReadImport parses the first sheet of an xlsx workbook whose header row is
// code, pack_type, quantity (any order, case-insensitive). Blank rows are
// skipped; any malformed row fails the whole import.
func ReadImport(r io.Reader) ([]ImportLine, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &apperr.ValidationError{Field: "file", Reason: apperr.ReasonInvalid}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &apperr.ValidationError{Field: "file", Reason: apperr.ReasonInvalid}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, &apperr.ValidationError{Field: "file", Reason: apperr.ReasonAtLeastOne, Limit: "1"}
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range importColumns {
		if _, ok := idx[c]; !ok {
			return nil, apperr.Validation("header."+c, apperr.ReasonRequired)
		}
	}

	cell := func(row []string, col string) string {
		i := idx[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []ImportLine
	for n, row := range rows[1:] {
		line := n + 2
		code, pack, qty := cell(row, "code"), cell(row, "pack_type"), cell(row, "quantity")
		if code == "" && pack == "" && qty == "" {
			continue
		}
		if code == "" {
			return nil, apperr.Validation(fmt.Sprintf("row[%d].code", line), apperr.ReasonRequired)
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("row[%d].quantity", line), apperr.ReasonInvalid)
		}
		if q.IsNegative() {
			return nil, &apperr.ValidationError{Field: fmt.Sprintf("row[%d].quantity", line), Reason: apperr.ReasonNegative, Limit: "0"}
		}
		out = append(out, ImportLine{Row: line, Code: code, PackType: pack, Quantity: q})
	}
	if len(out) == 0 {
		return nil, &apperr.ValidationError{Field: "file", Reason: apperr.ReasonAtLeastOne, Limit: "1"}
	}
	return out, nil
}

// WriteImportTemplate writes an empty import workbook with the header row.
func WriteImportTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	hdr := []interface{}{"code", "pack_type", "quantity"}
	if err := f.SetSheetRow(sheetName, "A1", &hdr); err != nil {
		return err
	}
	return f.Write(w)
}

// Package pdf renders assembled documents. It only reads the document; every
// number printed comes from the assembler.
package pdf

import (
	"fmt"

	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// column widths on maroto's 12-unit grid, matching document.Columns
var widths = []int{2, 2, 1, 1, 1, 1, 1, 1, 2}

// Renderer turns documents into PDF bytes.
type Renderer struct {
	// Pharmacy is printed above the document title.
	Pharmacy string
}

func New(pharmacy string) *Renderer {
	return &Renderer{Pharmacy: pharmacy}
}

// Render produces one page per variant of doc; return bills get an original
// and a duplicate page.
func (r *Renderer) Render(doc *document.Document) ([]byte, error) {
	return r.render(document.Variants(doc)...)
}

// RenderVariant produces a single variant, used by previews.
func (r *Renderer) RenderVariant(v document.Variant) ([]byte, error) {
	return r.render(v)
}

func (r *Renderer) render(variants ...document.Variant) ([]byte, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("pdf: nothing to render")
	}
	cfg := config.NewBuilder().
		WithLeftMargin(10).
		WithTopMargin(15).
		WithRightMargin(10).
		Build()
	m := maroto.New(cfg)
	for _, v := range variants {
		m.AddPages(page.New().Add(r.rows(v)...))
	}
	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate: %w", err)
	}
	return out.GetBytes(), nil
}

func (r *Renderer) rows(v document.Variant) []core.Row {
	h := v.Doc.Header
	bold := props.Text{Style: fontstyle.Bold, Size: 9}
	small := props.Text{Size: 8}
	right := props.Text{Size: 8, Align: align.Right}

	rows := []core.Row{}
	if r.Pharmacy != "" {
		rows = append(rows, text.NewRow(7, r.Pharmacy, props.Text{Size: 10, Align: align.Center}))
	}
	rows = append(rows,
		text.NewRow(10, h.Kind.Title(), props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Center}),
	)
	if h.Kind == document.KindReturnBill {
		rows = append(rows, text.NewRow(6, v.Marker(), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}))
	}
	rows = append(rows,
		row.New(6).Add(
			text.NewCol(6, "Supplier: "+h.CounterpartyName, small),
			text.NewCol(6, "No. "+h.Number, right),
		),
		row.New(6).Add(
			text.NewCol(6, requester(h), small),
			text.NewCol(6, h.Date()+" "+h.Time(), right),
		),
		line.NewRow(4),
	)

	cols := make([]core.Col, len(document.Columns))
	for i, c := range document.Columns {
		cols[i] = text.NewCol(widths[i], c, bold)
	}
	rows = append(rows, row.New(7).Add(cols...))

	for _, l := range v.Doc.Lines {
		cells := l.Cells()
		cols := make([]core.Col, len(cells))
		for i, c := range cells {
			p := small
			if i >= 3 && i != 5 {
				p = right
			}
			cols[i] = text.NewCol(widths[i], c, p)
		}
		rows = append(rows, row.New(6).Add(cols...))
	}

	rows = append(rows,
		line.NewRow(4),
		row.New(7).Add(
			col.New(8),
			text.NewCol(2, "Total", bold),
			text.NewCol(2, v.Doc.Total.StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		),
	)
	return rows
}

func requester(h document.Header) string {
	if h.Requester == "" {
		return ""
	}
	return "Requested by: " + h.Requester
}

package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/money"
	"github.com/joseph-ayodele/taix/internal/store"
)

// pagedFinder serves fixed objects two per page.
type pagedFinder struct {
	objects map[string][]store.Object
	wheres  []*store.Filter
}

func (p *pagedFinder) Find(_ context.Context, req gateway.FindRequest) (store.Page, error) {
	p.wheres = append(p.wheres, req.Where)
	objs := p.objects[req.Collection]
	startAt := 0
	if req.Cursor != "" {
		id, _ := store.DecodeCursor(req.Cursor)
		for i, o := range objs {
			if o.ID == id {
				startAt = i + 1
			}
		}
	}
	end := min(startAt+2, len(objs))
	page := store.Page{Objects: objs[startAt:end]}
	if len(page.Objects) > 0 {
		page.Cursor = store.EncodeCursor(page.Objects[len(page.Objects)-1].ID)
		page.HasMore = len(page.Objects) == 2
	}
	return page, nil
}

func TestExportXLSX(t *testing.T) {
	finder := &pagedFinder{objects: map[string][]store.Object{
		constants.InvoiceCollection: {
			{ID: "1", Properties: map[string]any{constants.PropFileName: "a.pdf", constants.PropValue: 1234.56, constants.PropCurrency: "EUR", constants.PropCountry: "Germany"}},
			{ID: "2", Properties: map[string]any{constants.PropFileName: "b.pdf", constants.PropAmountError: "no numeric token", constants.PropAmountRaw: "n/a"}},
			{ID: "3", Properties: map[string]any{constants.PropFileName: "c.pdf", constants.PropValue: 10.0, constants.PropCurrency: "USD"}},
		},
		constants.TaxLimitCollection: {
			{ID: "9", Properties: map[string]any{constants.PropLimitValue: 50.0, constants.PropCurrency: "EUR", constants.PropRule: "gifts"}},
		},
	}}

	svc := NewService(finder, money.CommaDecimal, nil)
	where := store.Where(constants.PropCurrency, store.NotEqual, "GBP")
	data, err := svc.ExportXLSX(context.Background(), where)
	if err != nil {
		t.Fatalf("ExportXLSX failed: %v", err)
	}
	if finder.wheres[0] != where {
		t.Error("Expected the invoice filter to be passed through")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(InvoiceSheet)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header + 3 invoices, got %d rows", len(rows))
	}
	if rows[1][0] != "a.pdf" || rows[1][4] != "1.234,56 EUR" || rows[1][6] != "Germany" {
		t.Errorf("Unexpected first invoice row %v", rows[1])
	}
	if rows[2][8] == "" {
		t.Errorf("Expected the amount failure in the issues column, got %v", rows[2])
	}

	limits, _ := f.GetRows(TaxLimitSheet)
	if len(limits) != 2 || limits[1][2] != "gifts" {
		t.Errorf("Unexpected tax limit rows %v", limits)
	}
}

type failingFinder struct{}

func (failingFinder) Find(context.Context, gateway.FindRequest) (store.Page, error) {
	return store.Page{}, errors.New("store down")
}

func TestExportXLSXPropagatesErrors(t *testing.T) {
	if _, err := NewService(failingFinder{}, money.DotDecimal, nil).ExportXLSX(context.Background(), nil); err == nil {
		t.Error("Expected error when the store fails")
	}
}

// Package export writes the indexed invoices and tax limits to an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/gateway"
	"github.com/joseph-ayodele/taix/internal/money"
	"github.com/joseph-ayodele/taix/internal/record"
	"github.com/joseph-ayodele/taix/internal/store"
)

const (
	InvoiceSheet  = "Invoices"
	TaxLimitSheet = "Tax Limits"
)

// Finder is the read surface the export needs.
type Finder interface {
	Find(ctx context.Context, req gateway.FindRequest) (store.Page, error)
}

// Service reads through the gateway and produces XLSX bytes for exports.
type Service struct {
	finder Finder
	style  money.Style
	logger *slog.Logger
}

func NewService(finder Finder, style money.Style, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{finder: finder, style: style, logger: logger}
}

var invoiceProps = []string{
	constants.PropFileName,
	constants.PropInvoiceNumber,
	constants.PropValue,
	constants.PropCurrency,
	constants.PropAmountError,
	constants.PropAmountRaw,
	constants.PropRecipientAddress,
	constants.PropCountry,
	constants.PropInvoiceItems,
	constants.PropUnextracted,
	constants.PropFilePath,
}

// ExportXLSX returns a workbook with one sheet of invoices matching where (nil
// for all) and one sheet of tax limits.
func (s *Service) ExportXLSX(ctx context.Context, where *store.Filter) ([]byte, error) {
	start := time.Now()

	invoices, err := s.walk(ctx, constants.InvoiceCollection, invoiceProps, where)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	limits, err := s.walk(ctx, constants.TaxLimitCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query tax limits: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", InvoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(TaxLimitSheet); err != nil {
		return nil, err
	}

	header(f, InvoiceSheet, []string{
		"File",
		"Invoice Number",
		"Amount",
		"Currency",
		"Formatted",
		"Recipient Address",
		"Country",
		"Items",
		"Issues",
		"Source Path",
	})
	for i, o := range invoices {
		rec, err := record.InvoiceFromProperties(o.Properties)
		if err != nil {
			s.logger.Warn("export.invoice.decode_failed", "id", o.ID, "error", err)
			continue
		}
		row := i + 2
		var amount any
		currency, formatted := "", ""
		if rec.Amount != nil {
			amount = rec.Amount.Float64()
			currency = rec.Amount.Currency
			formatted = money.Format(*rec.Amount, s.style)
		}
		country := ""
		if rec.RecipientCountry != nil {
			country = *rec.RecipientCountry
		}
		issues := ""
		if rec.AmountFailure != nil {
			issues = fmt.Sprintf("amount: %s (%q)", rec.AmountFailure.Reason, rec.AmountFailure.Raw)
		}
		if len(rec.Unextracted) > 0 {
			if issues != "" {
				issues += "; "
			}
			issues += fmt.Sprintf("unextracted: %v", rec.Unextracted)
		}

		write(f, InvoiceSheet, row,
			rec.FileName,
			rec.InvoiceNumber,
			amount,
			currency,
			formatted,
			rec.RecipientAddress,
			country,
			truncate(rec.LineItems, 140),
			issues,
			rec.SourcePath,
		)
	}

	header(f, TaxLimitSheet, []string{"Limit", "Currency", "Rule"})
	for i, o := range limits {
		l, err := record.LimitFromProperties(o.Properties)
		if err != nil {
			s.logger.Warn("export.limit.decode_failed", "id", o.ID, "error", err)
			continue
		}
		v, _ := l.LimitValue.Float64()
		write(f, TaxLimitSheet, i+2, v, l.Currency, l.Rule)
	}

	// Widen a few columns
	_ = f.SetColWidth(InvoiceSheet, "A", "B", 22)
	_ = f.SetColWidth(InvoiceSheet, "C", "E", 14)
	_ = f.SetColWidth(InvoiceSheet, "F", "F", 40)
	_ = f.SetColWidth(InvoiceSheet, "H", "I", 48)
	_ = f.SetColWidth(InvoiceSheet, "J", "J", 60)
	_ = f.SetColWidth(TaxLimitSheet, "C", "C", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invoices),
		"limits", len(limits),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) walk(ctx context.Context, collection string, props []string, where *store.Filter) ([]store.Object, error) {
	var out []store.Object
	cursor := ""
	for {
		page, err := s.finder.Find(ctx, gateway.FindRequest{Collection: collection, Properties: props, Where: where, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Objects...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func header(f *excelize.File, sheet string, cols []string) {
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func write(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

package record

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/extract"
	"github.com/joseph-ayodele/taix/internal/money"
)

// Source is the document a record is built from. Name is the record's
// file_name; it defaults to the base of Path and must be unique per run.
type Source struct {
	Name       string
	Path       string
	ImagePath  string
	Raw        []byte
	ArchiveKey string
}

// Builder turns extractor answers into InvoiceRecords for one extraction config.
type Builder struct {
	cfg    extract.Config
	logger *slog.Logger
}

func NewBuilder(cfg extract.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build composes a record. Field failures never fail the build; only a record
// that cannot satisfy Validate does.
func (b *Builder) Build(src Source, answers extract.Answers) (InvoiceRecord, error) {
	name := src.Name
	if name == "" && src.Path != "" {
		name = filepath.Base(src.Path)
	}
	rec := InvoiceRecord{
		FileName:          name,
		SourcePath:        src.Path,
		ImagePath:         src.ImagePath,
		RawDocument:       src.Raw,
		ArchiveKey:        src.ArchiveKey,
		ExtractionVersion: b.cfg.Version,
		Unextracted:       answers.Unextracted(b.cfg.Fields()),
	}
	rec.InvoiceNumber, _ = answers.Value(constants.FieldInvoiceNumber)
	rec.RecipientAddress, _ = answers.Value(constants.FieldRecipientAddress)
	rec.LineItems, _ = answers.Value(constants.FieldLineItems)

	if b.cfg.Has(constants.FieldRecipientCountry) {
		country, _ := answers.Value(constants.FieldRecipientCountry)
		rec.RecipientCountry = &country
	}

	rec.Amount, rec.AmountFailure = b.amount(rec.FileName, answers)

	if err := rec.Validate(); err != nil {
		b.logger.Error("record.build.invalid", "file_name", rec.FileName, "error", err)
		return InvoiceRecord{}, err
	}
	return rec, nil
}

func (b *Builder) amount(fileName string, answers extract.Answers) (*money.Money, *AmountFailure) {
	fa, asked := answers.Get(constants.FieldTotalAmount)
	if !asked {
		return nil, &AmountFailure{Reason: "total amount not in question set"}
	}
	if !fa.Extracted() {
		reason := "unextracted"
		if fa.Err != nil {
			reason = fa.Err.Error()
		}
		return nil, &AmountFailure{Reason: reason}
	}

	m, err := money.Parse(fa.Value)
	if err != nil {
		var pe *money.AmountParseError
		reason := err.Error()
		if errors.As(err, &pe) {
			reason = pe.Reason
		}
		b.logger.Warn("record.amount.parse_failed", "file_name", fileName, "raw", fa.Value, "reason", reason)
		return nil, &AmountFailure{Reason: reason, Raw: fa.Value}
	}
	if m.Currency == money.UnknownCurrency {
		b.logger.Info("record.amount.unknown_currency", "file_name", fileName, "raw", fa.Value)
	}
	return &m, nil
}

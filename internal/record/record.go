// Package record defines the two record kinds written to the document store
// and their conversion to and from the store's flat property maps.
package record

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/taix/constants"
	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/money"
)

// Record is anything the indexer can write.
type Record interface {
	Collection() string
	Properties() map[string]any
}

// AmountFailure marks an invoice whose total could not be parsed.
type AmountFailure struct {
	Reason string
	Raw    string
}

// InvoiceRecord is one extracted invoice.
type InvoiceRecord struct {
	FileName          string
	SourcePath        string
	ImagePath         string
	InvoiceNumber     string
	Amount            *money.Money
	AmountFailure     *AmountFailure
	RecipientAddress  string
	RecipientCountry  *string
	LineItems         string
	RawDocument       []byte
	ExtractionVersion string
	Unextracted       []string
	ArchiveKey        string
}

func (r InvoiceRecord) Collection() string { return constants.InvoiceCollection }

// Validate enforces the persistence invariant: a file name plus either an amount or a failure marker.
func (r InvoiceRecord) Validate() error {
	v := common.NewValidator().Field(constants.PropFileName, r.FileName, common.Required)
	switch {
	case r.Amount == nil && r.AmountFailure == nil:
		v.Field("amount", nil, func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "needs a parsed amount or a failure marker"}
		})
	case r.Amount != nil && r.AmountFailure != nil:
		v.Field("amount", r.Amount.String(), func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "cannot carry both an amount and a failure marker"}
		})
	case r.Amount != nil:
		v.Field(constants.PropCurrency, r.Amount.Currency, common.CurrencyCode)
		if r.Amount.Value.IsNegative() {
			v.Field(constants.PropValue, r.Amount.Value.String(), func(name string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: name, Value: value, Message: "must not be negative"}
			})
		}
	}
	return v.Error()
}

// Properties flattens the record for the store.
func (r InvoiceRecord) Properties() map[string]any {
	p := map[string]any{
		constants.PropFileName:          r.FileName,
		constants.PropFilePath:          r.SourcePath,
		constants.PropImagePath:         r.ImagePath,
		constants.PropInvoiceNumber:     r.InvoiceNumber,
		constants.PropRecipientAddress:  r.RecipientAddress,
		constants.PropInvoiceItems:      r.LineItems,
		constants.PropExtractionVersion: r.ExtractionVersion,
		constants.PropUnextracted:       strings.Join(r.Unextracted, ","),
	}
	if r.Amount != nil {
		p[constants.PropValue] = r.Amount.Float64()
		p[constants.PropCurrency] = r.Amount.Currency
	}
	if r.AmountFailure != nil {
		p[constants.PropAmountError] = r.AmountFailure.Reason
		p[constants.PropAmountRaw] = r.AmountFailure.Raw
	}
	if r.RecipientCountry != nil {
		p[constants.PropCountry] = *r.RecipientCountry
	}
	if len(r.RawDocument) > 0 {
		p[constants.PropPDF] = base64.StdEncoding.EncodeToString(r.RawDocument)
	}
	if r.ArchiveKey != "" {
		p[constants.PropArchiveKey] = r.ArchiveKey
	}
	return p
}

// InvoiceFromProperties rebuilds an InvoiceRecord from store properties. Missing
// properties stay zero, so projected reads decode fine.
func InvoiceFromProperties(p map[string]any) (InvoiceRecord, error) {
	r := InvoiceRecord{
		FileName:          str(p, constants.PropFileName),
		SourcePath:        str(p, constants.PropFilePath),
		ImagePath:         str(p, constants.PropImagePath),
		InvoiceNumber:     str(p, constants.PropInvoiceNumber),
		RecipientAddress:  str(p, constants.PropRecipientAddress),
		LineItems:         str(p, constants.PropInvoiceItems),
		ExtractionVersion: str(p, constants.PropExtractionVersion),
		ArchiveKey:        str(p, constants.PropArchiveKey),
	}
	if u := str(p, constants.PropUnextracted); u != "" {
		r.Unextracted = strings.Split(u, ",")
	}
	if c, ok := p[constants.PropCountry].(string); ok {
		r.RecipientCountry = &c
	}
	if v, ok := p[constants.PropValue]; ok && v != nil {
		d, err := toDecimal(v)
		if err != nil {
			return InvoiceRecord{}, fmt.Errorf("%s: %w", constants.PropValue, err)
		}
		cur := str(p, constants.PropCurrency)
		if cur == "" {
			cur = money.UnknownCurrency
		}
		r.Amount = &money.Money{Value: d, Currency: cur}
	}
	if reason, ok := p[constants.PropAmountError].(string); ok && reason != "" {
		r.AmountFailure = &AmountFailure{Reason: reason, Raw: str(p, constants.PropAmountRaw)}
	}
	if b64 := str(p, constants.PropPDF); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return InvoiceRecord{}, fmt.Errorf("%s: %w", constants.PropPDF, err)
		}
		r.RawDocument = raw
	}
	return r, nil
}

// JurisdictionalLimitRecord is static reference data written once per rebuild.
type JurisdictionalLimitRecord struct {
	LimitValue decimal.Decimal
	Rule       string
	Currency   string
}

func (r JurisdictionalLimitRecord) Collection() string { return constants.TaxLimitCollection }

// NewLimit parses the configured limit.
func NewLimit(value, currency, rule string) (JurisdictionalLimitRecord, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return JurisdictionalLimitRecord{}, common.NewConfigurationError("TAX_LIMIT_VALUE is not a number")
	}
	r := JurisdictionalLimitRecord{LimitValue: d, Currency: strings.ToUpper(strings.TrimSpace(currency)), Rule: strings.TrimSpace(rule)}
	v := common.NewValidator().
		Field(constants.PropRule, r.Rule, common.Required).
		Field(constants.PropCurrency, r.Currency, common.CurrencyCode)
	if v.HasErrors() {
		return JurisdictionalLimitRecord{}, common.NewConfigurationError(v.ErrorMessage())
	}
	return r, nil
}

func (r JurisdictionalLimitRecord) Properties() map[string]any {
	f, _ := r.LimitValue.Float64()
	return map[string]any{
		constants.PropLimitValue: f,
		constants.PropRule:       r.Rule,
		constants.PropCurrency:   r.Currency,
	}
}

// LimitFromProperties rebuilds a JurisdictionalLimitRecord.
func LimitFromProperties(p map[string]any) (JurisdictionalLimitRecord, error) {
	r := JurisdictionalLimitRecord{Rule: str(p, constants.PropRule), Currency: str(p, constants.PropCurrency)}
	if v, ok := p[constants.PropLimitValue]; ok && v != nil {
		d, err := toDecimal(v)
		if err != nil {
			return JurisdictionalLimitRecord{}, fmt.Errorf("%s: %w", constants.PropLimitValue, err)
		}
		r.LimitValue = d
	}
	return r, nil
}

func str(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported number type %T", v)
	}
}

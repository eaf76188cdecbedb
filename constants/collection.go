package constants

// Collection names in the document store.
const (
	InvoiceCollection  = "Invoice"
	TaxLimitCollection = "TaxLimit"
)

// Invoice properties as stored.
const (
	PropFileName          = "file_name"
	PropFilePath          = "filepath"
	PropImagePath         = "img_path"
	PropPDF               = "pdf"
	PropInvoiceNumber     = "invoice_number"
	PropValue             = "value"
	PropCurrency          = "currency"
	PropAmountError       = "amount_error"
	PropAmountRaw         = "amount_raw"
	PropRecipientAddress  = "recipient_address"
	PropCountry           = "country"
	PropInvoiceItems      = "invoice_items"
	PropExtractionVersion = "extraction_version"
	PropUnextracted       = "unextracted"
	PropArchiveKey        = "archive_key"
)

// Tax limit properties as stored.
const (
	PropLimitValue = "limit_value"
	PropRule       = "rule"
)

// Target fields produced by the field extractor.
const (
	FieldInvoiceNumber    = "invoice_number"
	FieldTotalAmount      = "total_amount"
	FieldRecipientAddress = "recipient_address"
	FieldRecipientCountry = "recipient_country"
	FieldLineItems        = "line_items"
)

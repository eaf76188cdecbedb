package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/taix/constants"
)

type DataType string

const (
	Text   DataType = "text"
	Number DataType = "number"
	Blob   DataType = "blob"
)

type Property struct {
	Name      string   `json:"name"`
	DataType  DataType `json:"data_type"`
	Vectorize bool     `json:"vectorize,omitempty"`
}

// Collection is a named schema. Vectors are computed from the collection
// name plus every property marked Vectorize.
type Collection struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

func (c Collection) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// CheckFields returns ErrUnknownField for the first name not in the schema.
func (c Collection) CheckFields(names ...string) error {
	for _, n := range names {
		if _, ok := c.Property(n); !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnknownField, n, c.Name)
		}
	}
	return nil
}

// CheckProperties validates an object's properties before a write.
func (c Collection) CheckProperties(props map[string]any) error {
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	return c.CheckFields(names...)
}

// VectorText is the text embedded for an object.
func (c Collection) VectorText(props map[string]any) string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, p := range c.Properties {
		if !p.Vectorize {
			continue
		}
		v, ok := props[p.Name]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(s)
	}
	return b.String()
}

// InvoiceSchema describes extracted invoices.
func InvoiceSchema() Collection {
	return Collection{
		Name: constants.InvoiceCollection,
		Properties: []Property{
			{Name: constants.PropFileName, DataType: Text, Vectorize: true},
			{Name: constants.PropFilePath, DataType: Text},
			{Name: constants.PropImagePath, DataType: Text},
			{Name: constants.PropPDF, DataType: Blob},
			{Name: constants.PropInvoiceNumber, DataType: Text, Vectorize: true},
			{Name: constants.PropValue, DataType: Number, Vectorize: true},
			{Name: constants.PropCurrency, DataType: Text, Vectorize: true},
			{Name: constants.PropAmountError, DataType: Text},
			{Name: constants.PropAmountRaw, DataType: Text},
			{Name: constants.PropRecipientAddress, DataType: Text, Vectorize: true},
			{Name: constants.PropCountry, DataType: Text, Vectorize: true},
			{Name: constants.PropInvoiceItems, DataType: Text, Vectorize: true},
			{Name: constants.PropExtractionVersion, DataType: Text},
			{Name: constants.PropUnextracted, DataType: Text},
			{Name: constants.PropArchiveKey, DataType: Text},
		},
	}
}

// TaxLimitSchema describes the jurisdictional limit reference data.
func TaxLimitSchema() Collection {
	return Collection{
		Name: constants.TaxLimitCollection,
		Properties: []Property{
			{Name: constants.PropLimitValue, DataType: Number, Vectorize: true},
			{Name: constants.PropRule, DataType: Text, Vectorize: true},
			{Name: constants.PropCurrency, DataType: Text, Vectorize: true},
		},
	}
}

func DefaultCollections() []Collection {
	return []Collection{InvoiceSchema(), TaxLimitSchema()}
}

package extract

import (
	"fmt"

	"github.com/joseph-ayodele/taix/constants"
)

// Question maps one natural-language question to the record field it fills.
type Question struct {
	Question    string `yaml:"question" json:"question"`
	TargetField string `yaml:"target_field" json:"target_field"`
	Required    bool   `yaml:"required" json:"required"`
}

// Config is a versioned, ordered question set. Extractor and record builder
// operate generically over it.
type Config struct {
	Version   string     `yaml:"version" json:"version"`
	MinScore  float64    `yaml:"min_score" json:"min_score"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// Has reports whether the config asks for field.
func (c Config) Has(field string) bool {
	for _, q := range c.Questions {
		if q.TargetField == field {
			return true
		}
	}
	return false
}

// Fields returns target fields in question order.
func (c Config) Fields() []string {
	out := make([]string, 0, len(c.Questions))
	for _, q := range c.Questions {
		out = append(out, q.TargetField)
	}
	return out
}

// V1 is the first question set, without the recipient country.
var V1 = Config{
	Version:  "v1",
	MinScore: 0.1,
	Questions: []Question{
		{Question: "What is the invoice number?", TargetField: constants.FieldInvoiceNumber, Required: true},
		{Question: "What is the total invoice amount?", TargetField: constants.FieldTotalAmount, Required: true},
		{Question: "What is the recipient's address?", TargetField: constants.FieldRecipientAddress},
		{Question: "What products/services are listed on the invoice?", TargetField: constants.FieldLineItems},
	},
}

// V2 adds the recipient country.
var V2 = Config{
	Version:  "v2",
	MinScore: 0.1,
	Questions: []Question{
		{Question: "What is the invoice number?", TargetField: constants.FieldInvoiceNumber, Required: true},
		{Question: "What is the total invoice amount?", TargetField: constants.FieldTotalAmount, Required: true},
		{Question: "What is the recipient's address?", TargetField: constants.FieldRecipientAddress},
		{Question: "What is the recipient country?", TargetField: constants.FieldRecipientCountry},
		{Question: "What products/services are listed on the invoice?", TargetField: constants.FieldLineItems},
	},
}

// DefaultConfig returns the current question set.
func DefaultConfig() Config {
	return V2
}

// Lookup returns a built-in config by version.
func Lookup(version string) (Config, error) {
	switch version {
	case "", V2.Version:
		return V2, nil
	case V1.Version:
		return V1, nil
	default:
		return Config{}, fmt.Errorf("unknown extraction version %q", version)
	}
}

package extract

import (
	"context"

	"github.com/joseph-ayodele/taix/constants"
)

// Answer is one candidate returned by the document-QA oracle.
type Answer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
}

// Oracle answers a question about a page image. Implementations may return
// an empty slice when the model has nothing to say.
type Oracle interface {
	Ask(ctx context.Context, image []byte, question string) ([]Answer, error)
}

// FieldAnswer is the outcome for one configured question.
type FieldAnswer struct {
	Question string
	Field    string
	Value    string
	Score    float64
	Status   constants.FieldStatus
	Err      error // set when Status is unextracted
}

// Extracted reports whether the oracle produced a usable answer.
func (a FieldAnswer) Extracted() bool {
	return a.Status == constants.FieldExtracted
}

// Answers holds one FieldAnswer per configured target field.
type Answers struct {
	Version string
	Fields  map[string]FieldAnswer
}

// Get returns the answer for field and whether the field was asked at all.
func (a Answers) Get(field string) (FieldAnswer, bool) {
	fa, ok := a.Fields[field]
	return fa, ok
}

// Value returns the extracted text for field, or "" with false when unextracted or not asked.
func (a Answers) Value(field string) (string, bool) {
	fa, ok := a.Fields[field]
	if !ok || !fa.Extracted() {
		return "", false
	}
	return fa.Value, true
}

// Unextracted lists asked fields without a usable answer, in question order.
func (a Answers) Unextracted(order []string) []string {
	var out []string
	for _, f := range order {
		if fa, ok := a.Fields[f]; ok && !fa.Extracted() {
			out = append(out, f)
		}
	}
	return out
}

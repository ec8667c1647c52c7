package domain

import "fmt"

// Segment field names accepted by projection.
const (
	FieldSurrogateKey = "surrogate_key"
	FieldDocumentID   = "document_id"
	FieldSegmentID    = "segment_id"
	FieldTitle        = "title"
	FieldURL          = "url"
	FieldContent      = "content"
)

// SegmentFields lists every projectable field in schema order.
var SegmentFields = []string{
	FieldSurrogateKey,
	FieldDocumentID,
	FieldSegmentID,
	FieldTitle,
	FieldURL,
	FieldContent,
}

// Record is a segment projected onto a subset of its fields.
type Record map[string]any

// Result is one ranked, projected search result.
type Result struct {
	Score  float32 `json:"score"`
	Fields Record  `json:"fields"`
}

// ValidateFields checks that every name is a known segment field.
func ValidateFields(fields []string) error {
	for _, f := range fields {
		if !isSegmentField(f) {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}
	return nil
}

func isSegmentField(name string) bool {
	for _, f := range SegmentFields {
		if f == name {
			return true
		}
	}
	return false
}

// Project returns only the requested fields of s. Unknown names are ignored;
// callers validate with ValidateFields first.
func Project(s Segment, fields []string) Record {
	r := make(Record, len(fields))
	for _, f := range fields {
		switch f {
		case FieldSurrogateKey:
			r[f] = s.SurrogateKey
		case FieldDocumentID:
			r[f] = s.DocumentID
		case FieldSegmentID:
			r[f] = s.SegmentID
		case FieldTitle:
			r[f] = s.Title
		case FieldURL:
			r[f] = s.URL
		case FieldContent:
			r[f] = s.Content
		}
	}
	return r
}

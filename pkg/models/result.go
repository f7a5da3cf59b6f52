package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Attribute field names. The set is closed.
const (
	FieldPurpose   = "purpose"
	FieldVibe      = "vibe"
	FieldCompanion = "companion"
	FieldFood      = "food"
)

// AttributeFields lists the attribute names in canonical order.
var AttributeFields = []string{FieldPurpose, FieldVibe, FieldCompanion, FieldFood}

// AttributeRecord holds the four extracted keyword fields. An empty value
// means the attribute was not mentioned.
type AttributeRecord struct {
	Purpose   string `json:"purpose"`
	Vibe      string `json:"vibe"`
	Companion string `json:"companion"`
	Food      string `json:"food"`
}

// Get returns the value of the named field.
func (r AttributeRecord) Get(field string) string {
	switch field {
	case FieldPurpose:
		return r.Purpose
	case FieldVibe:
		return r.Vibe
	case FieldCompanion:
		return r.Companion
	case FieldFood:
		return r.Food
	}
	return ""
}

// Values returns the field values in canonical order.
func (r AttributeRecord) Values() []string {
	return []string{r.Purpose, r.Vibe, r.Companion, r.Food}
}

// IsBlank reports whether an attribute value carries no content.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// EmbeddingSet maps each attribute to its vector. Unembedded attributes hold
// a non-nil empty slice so they serialize as [].
type EmbeddingSet struct {
	Purpose   []float32 `json:"purpose"`
	Vibe      []float32 `json:"vibe"`
	Companion []float32 `json:"companion"`
	Food      []float32 `json:"food"`
}

// NewEmbeddingSet returns a set with every field at the empty sentinel.
func NewEmbeddingSet() EmbeddingSet {
	return EmbeddingSet{
		Purpose:   []float32{},
		Vibe:      []float32{},
		Companion: []float32{},
		Food:      []float32{},
	}
}

// Set assigns vec to the named field. A nil vec stores the empty sentinel.
func (s *EmbeddingSet) Set(field string, vec []float32) {
	if vec == nil {
		vec = []float32{}
	}
	switch field {
	case FieldPurpose:
		s.Purpose = vec
	case FieldVibe:
		s.Vibe = vec
	case FieldCompanion:
		s.Companion = vec
	case FieldFood:
		s.Food = vec
	}
}

// Get returns the vector stored for the named field.
func (s EmbeddingSet) Get(field string) []float32 {
	switch field {
	case FieldPurpose:
		return s.Purpose
	case FieldVibe:
		return s.Vibe
	case FieldCompanion:
		return s.Companion
	case FieldFood:
		return s.Food
	}
	return nil
}

// EnrichedResult is the persisted output for one review document.
//
// Metadata is spread into the top level of the JSON object first, so the
// pipeline fields always win over same-named input fields.
type EnrichedResult struct {
	Metadata     map[string]json.RawMessage
	Summary      string
	Keywords     AttributeRecord
	Embeddings   EmbeddingSet
	ProcessedAt  time.Time
	TotalReviews int
}

func (r EnrichedResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metadata)+5)
	for k, v := range r.Metadata {
		out[k] = v
	}
	out["summary"] = r.Summary
	out["keywords"] = r.Keywords
	out["embeddings"] = r.Embeddings
	out["processedAt"] = r.ProcessedAt.UTC().Format(ProcessedAtLayout)
	out["totalReviews"] = r.TotalReviews
	return json.Marshal(out)
}

// ProcessedAtLayout matches ISO-8601 with millisecond precision in UTC.
const ProcessedAtLayout = "2006-01-02T15:04:05.000Z07:00"

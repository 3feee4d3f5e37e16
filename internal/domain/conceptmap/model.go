package conceptmap

import (
	"errors"
	"time"

	"github.com/namaste/namaste/internal/domain/terminology"
)

// ErrMappingNotFound is returned by MappingStore lookups by id.
var ErrMappingNotFound = errors.New("mapping not found")

// Equivalence is the FHIR ConceptMap relationship between source and target.
type Equivalence string

const (
	EquivalenceEquivalent Equivalence = "equivalent"
	EquivalenceWider      Equivalence = "source-is-narrower-than-target"
	EquivalenceNarrower   Equivalence = "source-is-broader-than-target"
	EquivalenceRelated    Equivalence = "related-to"
	EquivalenceNotRelated Equivalence = "not-related-to"
	// EquivalenceUnmappable is reported on results that have no target. It is
	// never stored on a Mapping.
	EquivalenceUnmappable Equivalence = "unmappable"
)

// Valid reports whether e may be stored on a mapping.
func (e Equivalence) Valid() bool {
	switch e {
	case EquivalenceEquivalent, EquivalenceWider, EquivalenceNarrower, EquivalenceRelated, EquivalenceNotRelated:
		return true
	}
	return false
}

// Status is the review state of a mapping.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
	StatusReview  Status = "review"
)

// Origin records where a mapping or result came from.
type Origin string

const (
	OriginCurated     Origin = "curated"
	OriginAIGenerated Origin = "ai-generated"
	OriginFallback    Origin = "fallback"
)

// Mapping links a source concept to a target concept. Target fields are
// denormalised for reads. Seq increases with creation order and breaks
// confidence ties.
type Mapping struct {
	ID              string      `db:"id" json:"id"`
	SourceConceptID string      `db:"source_concept_id" json:"sourceConceptId"`
	TargetConceptID string      `db:"target_concept_id" json:"targetConceptId"`
	SourceSystem    string      `db:"source_system" json:"sourceSystem"`
	SourceCode      string      `db:"source_code" json:"sourceCode"`
	TargetSystem    string      `db:"target_system" json:"targetSystem"`
	TargetCode      string      `db:"target_code" json:"targetCode"`
	TargetDisplay   string      `db:"target_display" json:"targetDisplay"`
	Equivalence     Equivalence `db:"equivalence" json:"equivalence"`
	Confidence      float64     `db:"confidence" json:"confidence"`
	Comment         string      `db:"comment" json:"comment,omitempty"`
	Status          Status      `db:"status" json:"status"`
	Origin          Origin      `db:"origin" json:"origin"`
	Seq             int64       `db:"seq" json:"-"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

// Outcome is the explicit result of a translation. Unmappable is a normal
// outcome, not an error.
type Outcome int

const (
	OutcomeMapped Outcome = iota + 1
	OutcomeUnmappable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMapped:
		return "mapped"
	case OutcomeUnmappable:
		return "unmappable"
	}
	return "unknown"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Target is the concept a source was translated to.
type Target struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

// TranslateRequest asks for the best target of one source concept. Systems
// accept aliases or URIs; an empty TargetSystem means ICD-11.
type TranslateRequest struct {
	SourceCode   string `json:"code"`
	SourceSystem string `json:"system"`
	TargetSystem string `json:"target,omitempty"`
}

// Result is the outcome of translating one concept.
type Result struct {
	Source      *terminology.Concept `json:"source"`
	Outcome     Outcome              `json:"outcome"`
	Target      *Target              `json:"target,omitempty"`
	Equivalence Equivalence          `json:"equivalence"`
	Confidence  float64              `json:"confidence"`
	Comment     string               `json:"comment,omitempty"`
	Origin      Origin               `json:"origin,omitempty"`
	MappingID   string               `json:"mappingId,omitempty"`
}

// Mapped reports whether the result carries a target.
func (r *Result) Mapped() bool { return r.Outcome == OutcomeMapped }

// BatchItem is one entry of a batch translation. Index matches the position
// of Request in the input.
type BatchItem struct {
	Index   int
	Request TranslateRequest
	Result  *Result
	Err     error
}

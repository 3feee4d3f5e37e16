// Package aimapping suggests NAMASTE to ICD-11 mappings with a generative
// model and degrades to deterministic answers whenever the model cannot be
// used.
package aimapping

import (
	"github.com/namaste/namaste/internal/domain/conceptmap"
)

// Candidate is a suggested ICD-11 target for a free-text traditional
// medicine concept. Fallback candidates share this shape.
type Candidate struct {
	SourceConcept   string                 `json:"sourceConcept"`
	SourceSystem    string                 `json:"sourceSystem"`
	TargetCode      string                 `json:"targetCode"`
	TargetDisplay   string                 `json:"targetDisplay,omitempty"`
	Equivalence     conceptmap.Equivalence `json:"equivalence"`
	Confidence      float64                `json:"confidence"`
	Comment         string                 `json:"comment"`
	ClinicalContext string                 `json:"clinicalContext,omitempty"`
	Origin          conceptmap.Origin      `json:"origin"`
}

// Fallback reports whether the candidate came from the deterministic table.
func (c Candidate) Fallback() bool { return c.Origin == conceptmap.OriginFallback }

type TermTranslation struct {
	Term            string            `json:"term"`
	SourceLanguage  string            `json:"sourceLanguage"`
	TargetLanguage  string            `json:"targetLanguage"`
	TranslatedTerm  string            `json:"translatedTerm"`
	Confidence      float64           `json:"confidence"`
	CulturalContext string            `json:"culturalContext"`
	Origin          conceptmap.Origin `json:"origin"`
}

type SuggestedCondition struct {
	Code        string `json:"code"`
	Display     string `json:"display"`
	Severity    string `json:"severity"`
	Explanation string `json:"explanation"`
}

type SymptomAnalysis struct {
	Symptoms            []string             `json:"symptoms"`
	System              string               `json:"system"`
	SuggestedConditions []SuggestedCondition `json:"suggestedConditions"`
	Recommendations     string               `json:"recommendations"`
	Origin              conceptmap.Origin    `json:"origin"`
}

type SimilarConcept struct {
	Code       string            `json:"code"`
	Display    string            `json:"display"`
	Definition string            `json:"definition"`
	System     string            `json:"system"`
	Origin     conceptmap.Origin `json:"origin"`
}

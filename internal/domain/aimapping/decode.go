package aimapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/namaste/namaste/internal/domain/conceptmap"
)

// errSchema marks model output that parsed but does not match the expected
// shape.
var errSchema = errors.New("model output does not match schema")

// decodeStrict decodes raw into v, rejecting unknown fields and trailing data.
func decodeStrict(raw string, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errSchema, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errSchema)
	}
	return nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

type rawCandidate struct {
	ICD11Code       string   `json:"icd11Code"`
	ICD11Display    string   `json:"icd11Display"`
	Relationship    string   `json:"relationship"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	Comment         string   `json:"comment"`
	ClinicalContext string   `json:"clinicalContext"`
}

func (r rawCandidate) validate() error {
	var problems []string
	if strings.TrimSpace(r.ICD11Code) == "" {
		problems = append(problems, "icd11Code is required")
	}
	if !conceptmap.Equivalence(r.Relationship).Valid() {
		problems = append(problems, fmt.Sprintf("unknown relationship %q", r.Relationship))
	}
	if r.ConfidenceScore == nil {
		problems = append(problems, "confidenceScore is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errSchema, strings.Join(problems, ", "))
	}
	return nil
}

// parseCandidates reads the mapping array from model text. Every element must
// validate; a partially valid answer is rejected as a whole.
func parseCandidates(text, concept, system string) ([]Candidate, error) {
	raw, err := extractJSON(text, '[')
	if err != nil {
		return nil, err
	}
	var items []rawCandidate
	if err := decodeStrict(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty mapping list", errSchema)
	}
	out := make([]Candidate, 0, len(items))
	for i, it := range items {
		if err := it.validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, Candidate{
			SourceConcept:   concept,
			SourceSystem:    system,
			TargetCode:      strings.TrimSpace(it.ICD11Code),
			TargetDisplay:   it.ICD11Display,
			Equivalence:     conceptmap.Equivalence(it.Relationship),
			Confidence:      clamp01(*it.ConfidenceScore),
			Comment:         it.Comment,
			ClinicalContext: it.ClinicalContext,
			Origin:          conceptmap.OriginAIGenerated,
		})
	}
	return out, nil
}

type rawTranslation struct {
	TranslatedTerm  string   `json:"translatedTerm"`
	Confidence      *float64 `json:"confidence"`
	CulturalContext string   `json:"culturalContext"`
}

func parseTranslation(text string) (rawTranslation, error) {
	var t rawTranslation
	raw, err := extractJSON(text, '{')
	if err != nil {
		return t, err
	}
	if err := decodeStrict(raw, &t); err != nil {
		return t, err
	}
	if strings.TrimSpace(t.TranslatedTerm) == "" || t.Confidence == nil {
		return t, fmt.Errorf("%w: translatedTerm and confidence are required", errSchema)
	}
	return t, nil
}

type rawAnalysis struct {
	SuggestedConditions []SuggestedCondition `json:"suggestedConditions"`
	Recommendations     string               `json:"recommendations"`
}

var severities = map[string]bool{"mild": true, "moderate": true, "severe": true}

func parseAnalysis(text string) (rawAnalysis, error) {
	var a rawAnalysis
	raw, err := extractJSON(text, '{')
	if err != nil {
		return a, err
	}
	if err := decodeStrict(raw, &a); err != nil {
		return a, err
	}
	if len(a.SuggestedConditions) == 0 || strings.TrimSpace(a.Recommendations) == "" {
		return a, fmt.Errorf("%w: conditions and recommendations are required", errSchema)
	}
	for i, c := range a.SuggestedConditions {
		if c.Code == "" || c.Display == "" {
			return a, fmt.Errorf("%w: condition %d missing code or display", errSchema, i)
		}
		if !severities[c.Severity] {
			return a, fmt.Errorf("%w: condition %d has severity %q", errSchema, i, c.Severity)
		}
	}
	return a, nil
}

type rawSimilar struct {
	Code       string `json:"code"`
	Display    string `json:"display"`
	Definition string `json:"definition"`
	System     string `json:"system"`
}

func parseSimilar(text string) ([]rawSimilar, error) {
	raw, err := extractJSON(text, '[')
	if err != nil {
		return nil, err
	}
	var items []rawSimilar
	if err := decodeStrict(raw, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty concept list", errSchema)
	}
	for i, it := range items {
		if it.Code == "" || it.Display == "" {
			return nil, fmt.Errorf("%w: concept %d missing code or display", errSchema, i)
		}
	}
	return items, nil
}

package aimapping

import (
	"fmt"
	"strings"

	"github.com/namaste/namaste/internal/domain/conceptmap"
)

const (
	FallbackConfidence = 0.3
	FallbackComment    = "General mapping - requires manual review"

	fallbackTranslationContext = "Translation not available - using original term"
	fallbackRecommendation     = "Consult a qualified healthcare practitioner for proper diagnosis and treatment."
)

type fallbackTarget struct {
	keyword, code, display string
}

// fallbackTargets is checked in order; the first keyword contained in the
// concept wins.
var fallbackTargets = []fallbackTarget{
	{"vata", "MD90.0", "Anxiety disorders"},
	{"pitta", "MG30.0", "Essential hypertension"},
	{"kapha", "ME84.1", "Chronic fatigue syndrome"},
}

var defaultFallbackTarget = fallbackTarget{code: "MG30.Z", display: "Other specified disorder"}

// FallbackCandidate is the deterministic answer used whenever the model
// cannot be consulted or its output is rejected.
func FallbackCandidate(concept, system string) Candidate {
	target := defaultFallbackTarget
	lower := strings.ToLower(concept)
	for _, t := range fallbackTargets {
		if strings.Contains(lower, t.keyword) {
			target = t
			break
		}
	}
	return Candidate{
		SourceConcept: concept,
		SourceSystem:  system,
		TargetCode:    target.code,
		TargetDisplay: target.display,
		Equivalence:   conceptmap.EquivalenceRelated,
		Confidence:    FallbackConfidence,
		Comment:       FallbackComment,
		Origin:        conceptmap.OriginFallback,
	}
}

func fallbackTranslation(term, sourceLang, targetLang string) TermTranslation {
	return TermTranslation{
		Term:            term,
		SourceLanguage:  sourceLang,
		TargetLanguage:  targetLang,
		TranslatedTerm:  term,
		Confidence:      FallbackConfidence,
		CulturalContext: fallbackTranslationContext,
		Origin:          conceptmap.OriginFallback,
	}
}

func fallbackAnalysis(symptoms []string, system string) SymptomAnalysis {
	return SymptomAnalysis{
		Symptoms: symptoms,
		System:   system,
		SuggestedConditions: []SuggestedCondition{{
			Code:        "unknown",
			Display:     "Analysis not available",
			Severity:    "moderate",
			Explanation: "AI analysis unavailable - fallback response",
		}},
		Recommendations: fallbackRecommendation,
		Origin:          conceptmap.OriginFallback,
	}
}

func fallbackSimilar(system string) []SimilarConcept {
	return []SimilarConcept{{
		Code:       fmt.Sprintf("%s_001", system),
		Display:    "Sample Concept",
		Definition: "AI search not available - fallback concept",
		System:     system,
		Origin:     conceptmap.OriginFallback,
	}}
}

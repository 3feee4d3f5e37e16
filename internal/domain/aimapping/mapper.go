package aimapping

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/ai"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

const (
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 50
)

// Mapper asks the model for mappings, translations and analyses. None of its
// methods fail: any provider or decode problem produces the fallback answer.
type Mapper struct {
	provider ai.Provider
	concepts terminology.ConceptRepository
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
}

// NewMapper builds a Mapper. concepts may be nil; when set it fills in
// ICD-11 displays the model left out.
func NewMapper(provider ai.Provider, concepts terminology.ConceptRepository, metrics *telemetry.Metrics, logger zerolog.Logger) *Mapper {
	if provider == nil {
		provider = ai.Disabled{}
	}
	return &Mapper{provider: provider, concepts: concepts, metrics: metrics, logger: logger}
}

// generate runs one prompt and hands the text to parse. It returns false when
// the caller should fall back.
func (m *Mapper) generate(ctx context.Context, op, prompt string, parse func(string) error) bool {
	start := time.Now()
	text, err := m.provider.Generate(ctx, prompt)
	m.metrics.ObserveAILatency(op, time.Since(start))
	if err == nil {
		err = parse(text)
	}
	if err != nil {
		m.metrics.IncAIRequest(op, string(conceptmap.OriginFallback))
		ev := m.logger.Warn()
		if errors.Is(err, ai.ErrNotConfigured) {
			ev = m.logger.Debug()
		}
		ev.Err(err).Str("operation", op).Msg("ai unavailable, using fallback")
		return false
	}
	m.metrics.IncAIRequest(op, string(conceptmap.OriginAIGenerated))
	return true
}

// MapConcept suggests the best ICD-11 target for a free-text concept.
func (m *Mapper) MapConcept(ctx context.Context, concept, sourceSystem string) Candidate {
	concept = strings.TrimSpace(concept)
	var cands []Candidate
	ok := m.generate(ctx, "map", mappingPrompt(concept, sourceSystem), func(text string) error {
		var err error
		cands, err = parseCandidates(text, concept, sourceSystem)
		return err
	})
	if !ok {
		return FallbackCandidate(concept, sourceSystem)
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	if best.TargetDisplay == "" && m.concepts != nil {
		if c, err := m.concepts.FindByCode(ctx, best.TargetCode, terminology.SystemICD11); err == nil {
			best.TargetDisplay = c.Display
		}
	}
	return best
}

// TranslateTerm translates a term between languages in the context of a
// medicine system.
func (m *Mapper) TranslateTerm(ctx context.Context, term, sourceLang, targetLang, system string) TermTranslation {
	var raw rawTranslation
	ok := m.generate(ctx, "translate_language", translationPrompt(term, sourceLang, targetLang, system), func(text string) error {
		var err error
		raw, err = parseTranslation(text)
		return err
	})
	if !ok {
		return fallbackTranslation(term, sourceLang, targetLang)
	}
	return TermTranslation{
		Term:            term,
		SourceLanguage:  sourceLang,
		TargetLanguage:  targetLang,
		TranslatedTerm:  raw.TranslatedTerm,
		Confidence:      clamp01(*raw.Confidence),
		CulturalContext: raw.CulturalContext,
		Origin:          conceptmap.OriginAIGenerated,
	}
}

// AnalyzeSymptoms suggests conditions for a list of symptoms.
func (m *Mapper) AnalyzeSymptoms(ctx context.Context, symptoms []string, language, system string) SymptomAnalysis {
	var raw rawAnalysis
	ok := m.generate(ctx, "analyze_symptoms", symptomsPrompt(symptoms, language, system), func(text string) error {
		var err error
		raw, err = parseAnalysis(text)
		return err
	})
	if !ok {
		return fallbackAnalysis(symptoms, system)
	}
	return SymptomAnalysis{
		Symptoms:            symptoms,
		System:              system,
		SuggestedConditions: raw.SuggestedConditions,
		Recommendations:     raw.Recommendations,
		Origin:              conceptmap.OriginAIGenerated,
	}
}

// SearchSimilar lists up to limit concepts the model considers similar to
// query.
func (m *Mapper) SearchSimilar(ctx context.Context, query, system string, limit int) []SimilarConcept {
	switch {
	case limit <= 0:
		limit = DefaultSimilarLimit
	case limit > MaxSimilarLimit:
		limit = MaxSimilarLimit
	}
	var items []rawSimilar
	ok := m.generate(ctx, "search_similar", similarPrompt(query, system, limit), func(text string) error {
		var err error
		items, err = parseSimilar(text)
		return err
	})
	if !ok {
		return fallbackSimilar(system)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]SimilarConcept, len(items))
	for i, it := range items {
		sys := it.System
		if sys == "" {
			sys = system
		}
		out[i] = SimilarConcept{Code: it.Code, Display: it.Display, Definition: it.Definition, System: sys, Origin: conceptmap.OriginAIGenerated}
	}
	return out
}

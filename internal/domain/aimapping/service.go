package aimapping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/domain/terminology"
)

// DefaultThreshold is the minimum confidence for a suggestion to be served
// by /map or kept for review.
const DefaultThreshold = 0.7

// ResolveRequest identifies the concept by code, by free text, or both.
// Live skips the curated mappings and always consults the model.
type ResolveRequest struct {
	Code      string
	System    string
	Term      string
	Threshold float64
	Live      bool
}

// Resolution is the answer of the resolution chain. Exactly one of Result
// (curated mapping found) or Candidate is set.
type Resolution struct {
	Source    *terminology.Concept `json:"source,omitempty"`
	Result    *conceptmap.Result   `json:"result,omitempty"`
	Candidate *Candidate           `json:"candidate,omitempty"`
	Proposed  *conceptmap.Mapping  `json:"proposed,omitempty"`
	Threshold float64              `json:"threshold"`
}

// Accepted reports whether the resolution meets its threshold. Curated
// mappings always do.
func (r *Resolution) Accepted() bool {
	if r.Result != nil {
		return true
	}
	return r.Candidate != nil && r.Candidate.Confidence >= r.Threshold
}

// Confidence of whichever answer was chosen.
func (r *Resolution) Confidence() float64 {
	if r.Result != nil {
		return r.Result.Confidence
	}
	if r.Candidate != nil {
		return r.Candidate.Confidence
	}
	return 0
}

// Service chains the translation engine and the model.
type Service struct {
	engine    *conceptmap.Engine
	mapper    *Mapper
	threshold float64
	logger    zerolog.Logger
}

func NewService(engine *conceptmap.Engine, mapper *Mapper, threshold float64, logger zerolog.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Service{engine: engine, mapper: mapper, threshold: threshold, logger: logger}
}

func (s *Service) Mapper() *Mapper { return s.mapper }

// Threshold is the configured default confidence threshold.
func (s *Service) Threshold() float64 { return s.threshold }

// Resolve answers from curated mappings when possible. The model is asked
// only when the concept is unmappable, unknown, or the request is live.
// Model suggestions at or above the threshold are stored for review when the
// source concept is known.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	code, term := strings.TrimSpace(req.Code), strings.TrimSpace(req.Term)
	if code == "" && term == "" {
		return nil, fmt.Errorf("%w: concept or code is required", terminology.ErrValidation)
	}
	threshold := req.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = s.threshold
	}
	res := &Resolution{Threshold: threshold}

	alias := "namaste"
	if req.System != "" {
		uri, err := terminology.ResolveSystem(req.System)
		if err != nil {
			return nil, err
		}
		alias = terminology.SystemAlias(uri)
		if code != "" {
			src, err := s.engine.Concepts().FindByCode(ctx, code, uri)
			switch {
			case err == nil:
				res.Source = src
			case !errors.Is(err, terminology.ErrConceptNotFound):
				return nil, err
			}
		}
	}

	if res.Source != nil && !req.Live {
		tr, err := s.engine.Translate(ctx, conceptmap.TranslateRequest{SourceCode: res.Source.Code, SourceSystem: res.Source.System})
		if err != nil {
			return nil, err
		}
		if tr.Mapped() {
			res.Result = tr
			return res, nil
		}
	}

	if term == "" {
		term = code
		if res.Source != nil {
			term = res.Source.Display
		}
	}
	cand := s.mapper.MapConcept(ctx, term, alias)
	res.Candidate = &cand

	if res.Source != nil && cand.Origin == conceptmap.OriginAIGenerated && cand.Confidence >= threshold {
		m, err := s.engine.Propose(ctx, conceptmap.Proposal{
			Source:      res.Source,
			TargetCode:  cand.TargetCode,
			Equivalence: cand.Equivalence,
			Confidence:  cand.Confidence,
			Comment:     cand.Comment,
			Origin:      conceptmap.OriginAIGenerated,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("source", res.Source.Code).Str("target", cand.TargetCode).Msg("ai proposal not stored")
		} else {
			res.Proposed = m
		}
	}
	return res, nil
}

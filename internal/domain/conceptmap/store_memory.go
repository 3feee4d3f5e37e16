package conceptmap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pairKey struct {
	source, target string
	status         Status
}

// MemoryStore is the in-process MappingStore.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Mapping
	byKey map[pairKey]*Mapping
	seq   int64
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*Mapping),
		byKey: make(map[pairKey]*Mapping),
		now:   time.Now,
	}
}

func copyAll(in []*Mapping) []*Mapping {
	out := make([]*Mapping, len(in))
	for i, m := range in {
		cp := *m
		out[i] = &cp
	}
	return out
}

// byRank orders by confidence descending, then creation order.
func byRank(ms []*Mapping) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Confidence != ms[j].Confidence {
			return ms[i].Confidence > ms[j].Confidence
		}
		return ms[i].Seq < ms[j].Seq
	})
}

func (s *MemoryStore) filter(keep func(*Mapping) bool) []*Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Mapping
	for _, m := range s.byID {
		if keep(m) {
			out = append(out, m)
		}
	}
	return copyAll(out)
}

func (s *MemoryStore) FindActiveForSource(_ context.Context, conceptID string) ([]*Mapping, error) {
	out := s.filter(func(m *Mapping) bool { return m.SourceConceptID == conceptID && m.Status == StatusActive })
	byRank(out)
	return out, nil
}

func (s *MemoryStore) ListForSource(_ context.Context, conceptID string) ([]*Mapping, error) {
	out := s.filter(func(m *Mapping) bool { return m.SourceConceptID == conceptID })
	byRank(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Status == StatusActive && out[j].Status != StatusActive
	})
	return out, nil
}

func (s *MemoryStore) ListActive(_ context.Context, sourceSystem string) ([]*Mapping, error) {
	out := s.filter(func(m *Mapping) bool {
		return m.Status == StatusActive && (sourceSystem == "" || m.SourceSystem == sourceSystem)
	})
	byRank(out)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceSystem != out[j].SourceSystem {
			return out[i].SourceSystem < out[j].SourceSystem
		}
		return out[i].SourceCode < out[j].SourceCode
	})
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Upsert(_ context.Context, m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := pairKey{m.SourceConceptID, m.TargetConceptID, m.Status}
	if existing, ok := s.byKey[key]; ok && m.Status != StatusRetired {
		existing.TargetDisplay = m.TargetDisplay
		existing.Equivalence = m.Equivalence
		existing.Confidence = m.Confidence
		existing.Comment = m.Comment
		existing.Origin = m.Origin
		existing.UpdatedAt = now
		*m = *existing
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	s.seq++
	m.Seq = s.seq
	m.CreatedAt, m.UpdatedAt = now, now
	stored := *m
	s.byID[stored.ID] = &stored
	if stored.Status != StatusRetired {
		s.byKey[key] = &stored
	}
	return nil
}

func (s *MemoryStore) Retire(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	if m.Status == StatusRetired {
		return nil
	}
	delete(s.byKey, pairKey{m.SourceConceptID, m.TargetConceptID, m.Status})
	m.Status = StatusRetired
	m.UpdatedAt = s.now()
	return nil
}

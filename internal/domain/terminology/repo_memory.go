package terminology

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type conceptKey struct{ system, code string }

// MemoryRepo is the in-process ConceptRepository used with STORE=memory and
// in tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	byKey map[conceptKey]*Concept
	byID  map[string]*Concept
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byKey: make(map[conceptKey]*Concept),
		byID:  make(map[string]*Concept),
		now:   time.Now,
	}
}

func clone(c *Concept) *Concept {
	cp := *c
	if c.Properties != nil {
		cp.Properties = make(map[string]interface{}, len(c.Properties))
		for k, v := range c.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}

func (r *MemoryRepo) FindByCode(_ context.Context, code, system string) (*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[conceptKey{system, code}]
	if !ok {
		return nil, fmt.Errorf("%w: %s|%s", ErrConceptNotFound, system, code)
	}
	return clone(c), nil
}

func (r *MemoryRepo) FindByID(_ context.Context, id string) (*Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrConceptNotFound, id)
	}
	return clone(c), nil
}

func matches(c *Concept, q string) bool {
	return strings.Contains(strings.ToLower(c.Code), q) ||
		strings.Contains(strings.ToLower(c.Display), q) ||
		strings.Contains(strings.ToLower(c.Definition), q)
}

func page(all []*Concept, limit, offset int) []*Concept {
	if offset >= len(all) {
		return []*Concept{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]*Concept, 0, end-offset)
	for _, c := range all[offset:end] {
		out = append(out, clone(c))
	}
	return out
}

func (r *MemoryRepo) Search(_ context.Context, query string, opts SearchOptions) ([]*Concept, int, error) {
	q := strings.ToLower(query)
	r.mu.RLock()
	var hits []*Concept
	for _, c := range r.byID {
		if c.Status != StatusActive || (opts.System != "" && c.System != opts.System) {
			continue
		}
		if matches(c, q) {
			hits = append(hits, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		ei, ej := strings.EqualFold(hits[i].Code, query), strings.EqualFold(hits[j].Code, query)
		if ei != ej {
			return ei
		}
		if hits[i].Display != hits[j].Display {
			return hits[i].Display < hits[j].Display
		}
		return hits[i].Code < hits[j].Code
	})
	return page(hits, opts.Limit, opts.Offset), len(hits), nil
}

func (r *MemoryRepo) ListBySystem(_ context.Context, system string, limit, offset int) ([]*Concept, int, error) {
	r.mu.RLock()
	var all []*Concept
	for _, c := range r.byID {
		if c.System == system {
			all = append(all, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return page(all, limit, offset), len(all), nil
}

func (r *MemoryRepo) CountBySystem(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range r.byID {
		if c.Status == StatusActive {
			counts[c.System]++
		}
	}
	return counts, nil
}

func (r *MemoryRepo) Upsert(_ context.Context, c *Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(c)
	return nil
}

func (r *MemoryRepo) upsertLocked(c *Concept) {
	now := r.now()
	if c.Status == "" {
		c.Status = StatusActive
	}
	key := conceptKey{c.System, c.Code}
	if existing, ok := r.byKey[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := clone(c)
	r.byKey[key] = stored
	r.byID[stored.ID] = stored
}

func (r *MemoryRepo) BulkInsert(_ context.Context, concepts []*Concept) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range concepts {
		r.upsertLocked(c)
	}
	return len(concepts), nil
}

package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"golden-seed/models"
)

type memoryState struct {
	candidates map[string]models.RawCandidate
	seeds      map[string]*models.SeedItem
	proposals  map[string]models.ReviewProposal
	snapshots  map[string]models.FinalSnapshot
	linkers    []models.LinkerReference
	runs       []models.ValidationRun
}

func newMemoryState() *memoryState {
	return &memoryState{
		candidates: map[string]models.RawCandidate{},
		seeds:      map[string]*models.SeedItem{},
		proposals:  map[string]models.ReviewProposal{},
		snapshots:  map[string]models.FinalSnapshot{},
	}
}

func (st *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range st.candidates {
		c.candidates[k] = cloneCandidate(v)
	}
	for k, v := range st.seeds {
		c.seeds[k] = v.Clone()
	}
	for k, v := range st.proposals {
		c.proposals[k] = cloneProposal(v)
	}
	for k, v := range st.snapshots {
		c.snapshots[k] = v
	}
	c.linkers = append([]models.LinkerReference(nil), st.linkers...)
	c.runs = append([]models.ValidationRun(nil), st.runs...)
	return c
}

func cloneCandidate(c models.RawCandidate) models.RawCandidate {
	c.EvidenceRefs = append([]models.EvidenceRef(nil), c.EvidenceRefs...)
	c.RawInterventions = append([]byte(nil), c.RawInterventions...)
	if c.ClassifiedAt != nil {
		t := *c.ClassifiedAt
		c.ClassifiedAt = &t
	}
	return c
}

func cloneProposal(p models.ReviewProposal) models.ReviewProposal {
	p.Patch = append(models.Patch(nil), p.Patch...)
	p.EvidenceRefs = append([]models.EvidenceRef(nil), p.EvidenceRefs...)
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		p.ReviewedAt = &t
	}
	return p
}

// MemoryStore keeps the pipeline in process memory. Transactions run on a
// cloned state that replaces the live one on success.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memoryState
	inTx  bool
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.Mutex{}, state: newMemoryState(), now: time.Now}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) FindCandidateByTrialID(_ context.Context, trialID string) (*models.RawCandidate, error) {
	defer m.lock()()
	var found *models.RawCandidate
	for _, c := range m.state.candidates {
		if !c.HasTrialID(trialID) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			cc := cloneCandidate(c)
			found = &cc
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *MemoryStore) InsertCandidate(_ context.Context, c *models.RawCandidate) (bool, error) {
	defer m.lock()()
	for _, existing := range m.state.candidates {
		if existing.PrimaryTrialID == c.PrimaryTrialID {
			return false, nil
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.state.candidates[c.ID] = cloneCandidate(*c)
	return true, nil
}

func (m *MemoryStore) UpdateCandidate(_ context.Context, c *models.RawCandidate) error {
	defer m.lock()()
	stored, ok := m.state.candidates[c.ID]
	if !ok {
		return ErrNotFound
	}
	// classification columns belong to the extractor
	c.ADCScore, c.ADCClass, c.ClassifiedAt = stored.ADCScore, stored.ADCClass, stored.ClassifiedAt
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = m.now()
	m.state.candidates[c.ID] = cloneCandidate(*c)
	return nil
}

func (m *MemoryStore) ListCandidates(_ context.Context, f CandidateFilter) ([]models.RawCandidate, error) {
	defer m.lock()()
	want := toSet(f.IDs)
	out := []models.RawCandidate{}
	for _, c := range m.state.candidates {
		if want != nil && !want[c.ID] {
			continue
		}
		if f.UnclassifiedOnly && c.IsClassified() {
			continue
		}
		out = append(out, cloneCandidate(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) SetCandidateClassification(_ context.Context, id string, score float64, label string, at time.Time) error {
	defer m.lock()()
	c, ok := m.state.candidates[id]
	if !ok {
		return ErrNotFound
	}
	c.ADCScore, c.ADCClass = score, label
	c.ClassifiedAt = &at
	m.state.candidates[id] = c
	return nil
}

func (m *MemoryStore) GetSeed(_ context.Context, id string) (*models.SeedItem, error) {
	defer m.lock()()
	s, ok := m.state.seeds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) FindSeedByCandidate(_ context.Context, candidateID string) (*models.SeedItem, error) {
	defer m.lock()()
	for _, s := range m.state.seeds {
		if s.SourceCandidateID == candidateID {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateSeed(_ context.Context, seed *models.SeedItem) error {
	defer m.lock()()
	if seed.SourceCandidateID != "" {
		for _, s := range m.state.seeds {
			if s.SourceCandidateID == seed.SourceCandidateID {
				return ErrConflict
			}
		}
	}
	if seed.ID == "" {
		seed.ID = uuid.NewString()
	}
	if _, ok := m.state.seeds[seed.ID]; ok {
		return ErrConflict
	}
	if seed.Version == 0 {
		seed.Version = 1
	}
	if seed.GateStatus == "" {
		seed.GateStatus = models.GateNeedsReview
	}
	now := m.now()
	seed.CreatedAt, seed.UpdatedAt = now, now
	m.state.seeds[seed.ID] = seed.Clone()
	return nil
}

func (m *MemoryStore) UpdateSeed(_ context.Context, seed *models.SeedItem) error {
	defer m.lock()()
	stored, ok := m.state.seeds[seed.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != seed.Version {
		return ErrVersionConflict
	}
	seed.Version++
	seed.CreatedAt = stored.CreatedAt
	seed.UpdatedAt = m.now()
	m.state.seeds[seed.ID] = seed.Clone()
	return nil
}

func (m *MemoryStore) ListSeeds(_ context.Context, f SeedFilter) ([]models.SeedItem, error) {
	defer m.lock()()
	want := toSet(f.IDs)
	out := []models.SeedItem{}
	for _, s := range m.state.seeds {
		if want != nil && !want[s.ID] {
			continue
		}
		if f.FinalOnly && !s.IsFinal {
			continue
		}
		out = append(out, *s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStore) CreateProposal(_ context.Context, p *models.ReviewProposal) error {
	defer m.lock()()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.EntityType == "" {
		p.EntityType = models.EntityTypeSeedItem
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.state.proposals[p.ID] = cloneProposal(*p)
	return nil
}

func (m *MemoryStore) GetProposal(_ context.Context, id string) (*models.ReviewProposal, error) {
	defer m.lock()()
	p, ok := m.state.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneProposal(p)
	return &c, nil
}

func (m *MemoryStore) DecideProposal(_ context.Context, p *models.ReviewProposal) error {
	defer m.lock()()
	stored, ok := m.state.proposals[p.ID]
	if !ok || stored.Status != models.StatusPending {
		return ErrVersionConflict
	}
	stored.Status = p.Status
	stored.ReviewedBy = p.ReviewedBy
	stored.ReviewedAt = p.ReviewedAt
	stored.Notes = p.Notes
	stored.UpdatedAt = m.now()
	m.state.proposals[p.ID] = cloneProposal(stored)
	return nil
}

func (m *MemoryStore) ListProposals(_ context.Context, f ProposalFilter) ([]models.ReviewProposal, error) {
	defer m.lock()()
	out := []models.ReviewProposal{}
	for _, p := range m.state.proposals {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.SeedID != "" && p.SeedID != f.SeedID {
			continue
		}
		if f.QueueType != "" && p.QueueType != f.QueueType {
			continue
		}
		out = append(out, cloneProposal(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStore) FindSnapshotBySeed(_ context.Context, seedID string) (*models.FinalSnapshot, error) {
	defer m.lock()()
	s, ok := m.state.snapshots[seedID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateSnapshot(_ context.Context, snap *models.FinalSnapshot) error {
	defer m.lock()()
	if _, ok := m.state.snapshots[snap.SeedID]; ok {
		return ErrConflict
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	snap.CreatedAt = m.now()
	m.state.snapshots[snap.SeedID] = *snap
	return nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, limit, offset int) ([]models.FinalSnapshot, error) {
	defer m.lock()()
	out := make([]models.FinalSnapshot, 0, len(m.state.snapshots))
	for _, s := range m.state.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromotedAt.Before(out[j].PromotedAt) })
	return paginate(out, limit, offset), nil
}

func (m *MemoryStore) ListLinkers(_ context.Context) ([]models.LinkerReference, error) {
	defer m.lock()()
	return append([]models.LinkerReference{}, m.state.linkers...), nil
}

func (m *MemoryStore) SeedLinkers(_ context.Context, linkers []models.LinkerReference) (int, error) {
	defer m.lock()()
	inserted := 0
	for _, l := range linkers {
		exists := false
		for _, have := range m.state.linkers {
			if strings.EqualFold(have.Name, l.Name) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		l.ID = uint(len(m.state.linkers) + 1)
		m.state.linkers = append(m.state.linkers, l)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) CreateValidationRun(_ context.Context, r *models.ValidationRun) error {
	defer m.lock()()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = m.now()
	if r.RunAt.IsZero() {
		r.RunAt = r.CreatedAt
	}
	m.state.runs = append(m.state.runs, *r)
	return nil
}

func (m *MemoryStore) ListValidationRuns(_ context.Context, limit int) ([]models.ValidationRun, error) {
	defer m.lock()()
	out := append([]models.ValidationRun{}, m.state.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) WithTx(_ context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &MemoryStore{mu: m.mu, state: m.state.clone(), inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golden-seed/models"
)

func TestMemoryStoreCandidates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	c := &models.RawCandidate{
		PrimaryTrialID: "NCT00000001",
		EvidenceRefs:   []models.EvidenceRef{models.TrialEvidence("NCT00000001"), models.TrialEvidence("NCT00000009")},
		DrugName:       "Trastuzumab deruxtecan",
	}
	inserted, err := store.InsertCandidate(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, c.ID)

	dup := &models.RawCandidate{PrimaryTrialID: "NCT00000001", DrugName: "duplicate"}
	inserted, err = store.InsertCandidate(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := store.FindCandidateByTrialID(ctx, "NCT00000009")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = store.FindCandidateByTrialID(ctx, "NCT99999999")
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Now()
	require.NoError(t, store.SetCandidateClassification(ctx, c.ID, 0.8, "adc", at))

	found.DrugName = "T-DXd"
	require.NoError(t, store.UpdateCandidate(ctx, found))

	list, err := store.ListCandidates(ctx, CandidateFilter{IDs: []string{c.ID}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T-DXd", list[0].DrugName)
	assert.Equal(t, "adc", list[0].ADCClass, "update must not clear the classification")

	unclassified, err := store.ListCandidates(ctx, CandidateFilter{UnclassifiedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unclassified)
}

func TestMemoryStoreSeedVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	seed := &models.SeedItem{SourceCandidateID: "cand-1", DrugName: "x"}
	require.NoError(t, store.CreateSeed(ctx, seed))
	assert.Equal(t, 1, seed.Version)
	assert.Equal(t, models.GateNeedsReview, seed.GateStatus)

	err := store.CreateSeed(ctx, &models.SeedItem{SourceCandidateID: "cand-1"})
	assert.ErrorIs(t, err, ErrConflict)

	a, err := store.GetSeed(ctx, seed.ID)
	require.NoError(t, err)
	b, err := store.GetSeed(ctx, seed.ID)
	require.NoError(t, err)

	a.DrugName = "first"
	require.NoError(t, store.UpdateSeed(ctx, a))
	assert.Equal(t, 2, a.Version)

	b.DrugName = "second"
	assert.ErrorIs(t, store.UpdateSeed(ctx, b), ErrVersionConflict)

	got, err := store.FindSeedByCandidate(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.DrugName)

	_, err = store.GetSeed(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDecideProposalOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := &models.ReviewProposal{SeedID: "s1", QueueType: models.QueueEnrichmentUpdate}
	require.NoError(t, store.CreateProposal(ctx, p))
	assert.Equal(t, models.StatusPending, p.Status)

	now := time.Now()
	p.Status, p.ReviewedBy, p.ReviewedAt = models.StatusRejected, "alice", &now
	require.NoError(t, store.DecideProposal(ctx, p))

	p.Status = models.StatusApproved
	assert.ErrorIs(t, store.DecideProposal(ctx, p), ErrVersionConflict)

	got, err := store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)

	pending, err := store.ListProposals(ctx, ProposalFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryStoreSnapshotUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.CreateSnapshot(ctx, &models.FinalSnapshot{SeedID: "s1", PromotedAt: time.Now()}))
	assert.ErrorIs(t, store.CreateSnapshot(ctx, &models.FinalSnapshot{SeedID: "s1"}), ErrConflict)

	snaps, err := store.ListSnapshots(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestMemoryStoreWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateSeed(ctx, &models.SeedItem{SourceCandidateID: "c1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	seeds, err := store.ListSeeds(ctx, SeedFilter{})
	require.NoError(t, err)
	assert.Empty(t, seeds)

	err = store.WithTx(ctx, func(tx Store) error {
		return tx.CreateSeed(ctx, &models.SeedItem{SourceCandidateID: "c1"})
	})
	require.NoError(t, err)

	seeds, err = store.ListSeeds(ctx, SeedFilter{})
	require.NoError(t, err)
	assert.Len(t, seeds, 1)
}

func TestMemoryStoreLinkersAndRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	lib := []models.LinkerReference{{Name: "mc-vc-PABC"}, {Name: "GGFG"}}
	n, err := store.SeedLinkers(ctx, lib)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.SeedLinkers(ctx, lib)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateValidationRun(ctx, &models.ValidationRun{RunAt: base.Add(48 * time.Hour), PassRate: 0.9}))
	require.NoError(t, store.CreateValidationRun(ctx, &models.ValidationRun{RunAt: base, PassRate: 0.7}))
	require.NoError(t, store.CreateValidationRun(ctx, &models.ValidationRun{RunAt: base.Add(24 * time.Hour), PassRate: 0.8}))

	runs, err := store.ListValidationRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 0.8, runs[0].PassRate)
	assert.Equal(t, 0.9, runs[1].PassRate)
}

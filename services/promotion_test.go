package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"golden-seed/models"
	"golden-seed/repository"
)

type recordingArchiver struct {
	mu       sync.Mutex
	archived []string
	err      error
}

func (a *recordingArchiver) ArchiveSnapshot(_ context.Context, snap *models.FinalSnapshot) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.archived = append(a.archived, snap.SeedID)
	return "s3://golden/" + snap.SeedID, nil
}

func readySeed() *models.SeedItem {
	return &models.SeedItem{
		DrugName:                  "Trastuzumab deruxtecan",
		ResolvedTargetSymbol:      "ERBB2",
		PayloadSMILESStandardized: "CCO",
		EvidenceRefs:              []models.EvidenceRef{models.TrialEvidence("NCT00000001")},
	}
}

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name    string
		seed    models.SeedItem
		missing []string
	}{
		{"all pass", *readySeed(), nil},
		{"blank target", models.SeedItem{ResolvedTargetSymbol: "  ", PayloadSMILESStandardized: "C", EvidenceRefs: []models.EvidenceRef{{ID: "x"}}}, []string{GateTargetResolved}},
		{"proxy payload counts as ready", models.SeedItem{ResolvedTargetSymbol: "ERBB2", IsProxyPayload: true, EvidenceRefs: []models.EvidenceRef{{ID: "x"}}}, nil},
		{"proxy flag counts as ready", models.SeedItem{ResolvedTargetSymbol: "ERBB2", ProxySmilesFlag: true, EvidenceRefs: []models.EvidenceRef{{ID: "x"}}}, nil},
		{"nothing", models.SeedItem{}, []string{GateTargetResolved, GateSmilesReady, GateEvidenceExists}},
		{"no evidence", models.SeedItem{ResolvedTargetSymbol: "ERBB2", PayloadSMILESStandardized: "C"}, []string{GateEvidenceExists}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.missing, EvaluateGates(&tt.seed).Missing())
		})
	}
}

func TestPromoteExactlyOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	seed := newSeed(t, store, readySeed())
	archiver := &recordingArchiver{}
	svc := NewPromotionService(store, archiver, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := svc.Promote(ctx, []string{seed.ID}, "curator")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Promoted)
	assert.Equal(t, 0, first.Failed)
	require.Contains(t, first.Snapshots, seed.ID)

	second, err := svc.Promote(ctx, []string{seed.ID}, "curator")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Promoted)
	assert.Equal(t, "Already promoted", second.Failures[seed.ID])

	snaps, err := store.ListSnapshots(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].TargetResolved)
	assert.True(t, snaps[0].SmilesReady)
	assert.True(t, snaps[0].EvidenceExists)
	assert.Equal(t, "curator", snaps[0].PromotedBy)

	var data models.SeedItem
	require.NoError(t, json.Unmarshal(snaps[0].SeedData, &data))
	assert.Equal(t, "ERBB2", data.ResolvedTargetSymbol)

	stored, err := store.GetSeed(ctx, seed.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFinal)
	assert.Equal(t, models.GateFinal, stored.GateStatus)
	assert.Equal(t, "curator", stored.FinalizedBy)
	assert.NotNil(t, stored.FinalizedAt)

	assert.Equal(t, []string{seed.ID}, archiver.archived)
}

func TestPromoteReportsPerSeedFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	ready := newSeed(t, store, readySeed())
	incomplete := newSeed(t, store, &models.SeedItem{DrugName: "ADC-2", ResolvedTargetSymbol: "TACSTD2"})
	svc := NewPromotionService(store, &recordingArchiver{err: errors.New("bucket unavailable")}, zaptest.NewLogger(t))

	res, err := svc.Promote(context.Background(), []string{ready.ID, incomplete.ID, "missing"}, "curator")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, "Gate failed: smiles_ready, evidence_exists", res.Failures[incomplete.ID])
	assert.Equal(t, "Seed not found", res.Failures["missing"])

	stored, err := store.GetSeed(context.Background(), incomplete.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsFinal)
}

func TestPromoteRequiresSeeds(t *testing.T) {
	svc := NewPromotionService(repository.NewMemoryStore(), nil, zaptest.NewLogger(t))
	_, err := svc.Promote(context.Background(), nil, "curator")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// failingSeedStore fails every read of one seed, also inside transactions.
type failingSeedStore struct {
	repository.Store
	seedID string
	err    error
}

func (f *failingSeedStore) GetSeed(ctx context.Context, id string) (*models.SeedItem, error) {
	if id == f.seedID && f.err != nil {
		return nil, f.err
	}
	return f.Store.GetSeed(ctx, id)
}

func (f *failingSeedStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(&failingSeedStore{Store: tx, seedID: f.seedID, err: f.err})
	})
}

func TestPromoteStoreErrorIsPerSeed(t *testing.T) {
	mem := repository.NewMemoryStore()
	ctx := context.Background()
	first, second := readySeed(), readySeed()
	require.NoError(t, mem.CreateSeed(ctx, first))
	require.NoError(t, mem.CreateSeed(ctx, second))

	store := &failingSeedStore{Store: mem, seedID: second.ID, err: errors.New("connection reset")}
	svc := NewPromotionService(store, nil, zaptest.NewLogger(t))

	res, err := svc.Promote(ctx, []string{first.ID, second.ID}, "curator")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.Snapshots[first.ID])
	assert.Contains(t, res.Failures[second.ID], "connection reset")

	// retry only the failed subset
	store.err = nil
	res, err = svc.Promote(ctx, []string{second.ID}, "curator")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Empty(t, res.Failures)
}

func TestPromoteStopsOnCancelledContext(t *testing.T) {
	store := repository.NewMemoryStore()
	seed := readySeed()
	require.NoError(t, store.CreateSeed(context.Background(), seed))
	svc := NewPromotionService(store, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Promote(ctx, []string{seed.ID}, "curator")
	assert.ErrorIs(t, err, context.Canceled)
}

package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/models"
	"golden-seed/providers"
	"golden-seed/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreBackend:           "memory",
		ChemistryWorkers:       2,
		MinStructureConfidence: 70,
		LookupCacheSize:        16,
		ScorePolicy:            config.ScorePolicyStale,
		ScoreMaxAge:            720 * time.Hour,
		ExtractDefaultLimit:    50,
	}
}

type fakeRegistry struct {
	studies []providers.Study
	err     error
	queries []providers.StudyQuery
}

func (f *fakeRegistry) SearchStudies(_ context.Context, q providers.StudyQuery) ([]providers.Study, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.studies, nil
}

func (f *fakeRegistry) Name() string { return "clinicaltrials.gov" }

type fakeCompounds struct {
	mu    sync.Mutex
	cids  map[string][]string
	props map[string]providers.Compound
	err   error
	calls int
}

func (f *fakeCompounds) LookupCIDs(_ context.Context, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cids[strings.ToLower(name)], nil
}

func (f *fakeCompounds) Properties(_ context.Context, cids []string) ([]providers.Compound, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []providers.Compound
	for _, id := range cids {
		if c, ok := f.props[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCompounds) Name() string { return "pubchem" }

func (f *fakeCompounds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeParser struct {
	results map[string]*providers.ParsedStructure
	err     error
}

func (f *fakeParser) Parse(_ context.Context, name string) (*providers.ParsedStructure, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[strings.ToLower(name)], nil
}

func (f *fakeParser) Name() string { return "opsin" }

func adcStudy(nctID, drug, description string) providers.Study {
	return providers.Study{
		NCTID:         nctID,
		BriefTitle:    "A Study of " + drug + " in HER2-Positive Breast Cancer",
		OverallStatus: "RECRUITING",
		Phases:        []string{"PHASE2"},
		Conditions:    []string{"Breast Cancer"},
		Interventions: []providers.Intervention{{Type: "DRUG", Name: drug, Description: description}},
	}
}

func newSeed(t *testing.T, store repository.Store, seed *models.SeedItem) *models.SeedItem {
	t.Helper()
	if seed.FieldVerified == nil {
		seed.FieldVerified = map[string]bool{}
	}
	require.NoError(t, store.CreateSeed(context.Background(), seed))
	return seed
}

func defaultLinkerLibrary(t *testing.T, store repository.Store) {
	t.Helper()
	_, err := store.SeedLinkers(context.Background(), []models.LinkerReference{
		{Name: "mc-vc-PABC", Family: "protease-cleavable dipeptide", SMILES: "CC(C)[C@@H](C(=O)N)NC(=O)CCCCCN1C(=O)C=CC1=O", Cleavable: true},
		{Name: "GGFG", Family: "protease-cleavable tetrapeptide", SMILES: "NCC(=O)NCC(=O)N[C@@H](CC1=CC=CC=C1)C(=O)NCC(=O)O", Cleavable: true},
		{Name: "SMCC", Family: "non-cleavable thioether", SMILES: "O=C(ON1C(=O)CCC1=O)C1CCC(CN2C(=O)C=CC2=O)CC1"},
	})
	require.NoError(t, err)
}

func dict() *dictionary.Dictionaries {
	return dictionary.Default()
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"golden-seed/providers"
)

func TestScoreCompoundMatch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		compound   providers.Compound
		candidates int
		want       int
	}{
		{"exact title single hit with key", "Exatecan", providers.Compound{Title: "exatecan", InChIKey: "K"}, 1, 100},
		{"title mismatch", "DXd", providers.Compound{Title: "Deruxtecan", InChIKey: "K"}, 1, 60},
		{"ambiguous hit", "MMAE", providers.Compound{Title: "MMAE"}, 4, 50},
		{"bare hit", "", providers.Compound{}, 2, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreCompoundMatch(tt.query, tt.compound, tt.candidates)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestScoreParsedMatch(t *testing.T) {
	assert.Equal(t, 0, ScoreParsedMatch(nil))
	assert.Equal(t, 40, ScoreParsedMatch(&providers.ParsedStructure{SMILES: "CCO"}))
	assert.Equal(t, 60, ScoreParsedMatch(&providers.ParsedStructure{SMILES: "CCO", InChIKey: "K"}))
}

func TestResolverFallsBackToParser(t *testing.T) {
	compounds := &fakeCompounds{}
	parser := &fakeParser{results: map[string]*providers.ParsedStructure{
		"2-aminoethanol": {SMILES: "NCCO", InChIKey: "HZAXFHJVJLSVMW-UHFFFAOYSA-N"},
	}}
	r, err := NewStructureResolver(testConfig(), compounds, parser, zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := r.Resolve(context.Background(), "2-aminoethanol")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "opsin", m.Source)
	assert.True(t, m.Secondary)
	assert.Equal(t, 60, m.Confidence)
	assert.True(t, r.Accept(m))

	m, err = r.Resolve(context.Background(), "no such thing")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.False(t, r.Accept(m))
}

func TestResolverDoesNotCacheUpstreamErrors(t *testing.T) {
	compounds := &fakeCompounds{err: errors.New("503")}
	r, err := NewStructureResolver(testConfig(), compounds, &fakeParser{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "MMAE")
	require.Error(t, err)

	compounds.mu.Lock()
	compounds.err = nil
	compounds.mu.Unlock()

	_, err = r.Resolve(context.Background(), "MMAE")
	require.NoError(t, err)
	assert.Equal(t, 2, compounds.callCount())
}

func TestResolverTreatsParserOutageAsMiss(t *testing.T) {
	compounds := &fakeCompounds{}
	parser := &fakeParser{err: errors.New("opsin 503")}
	r, err := NewStructureResolver(testConfig(), compounds, parser, zaptest.NewLogger(t))
	require.NoError(t, err)

	m, err := r.Resolve(context.Background(), "2-aminoethanol")
	require.NoError(t, err)
	assert.Nil(t, m)

	parser.err = nil
	parser.results = map[string]*providers.ParsedStructure{"2-aminoethanol": {SMILES: "NCCO", InChIKey: "K"}}
	m, err = r.Resolve(context.Background(), "2-aminoethanol")
	require.NoError(t, err)
	require.NotNil(t, m, "outage must not be cached as a miss")
	assert.Equal(t, "NCCO", m.SMILES)
}

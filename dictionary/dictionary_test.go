package dictionary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedTables(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, d.Targets)
	assert.NotEmpty(t, d.Payloads)
	assert.NotEmpty(t, d.Linkers)
	assert.NotEmpty(t, d.Antibodies)
	assert.Equal(t, "GENERIC_CLEAVABLE", d.GenericLinkerProxy().RefID)
	assert.Same(t, Default(), Default())
}

func TestScans(t *testing.T) {
	d := Default()
	tests := []struct {
		name        string
		corpus      string
		wantTarget  string
		wantPayload string
		wantLinker  string
	}{
		{
			name:        "trastuzumab deruxtecan",
			corpus:      NormalizeCorpus("Trastuzumab Deruxtecan (DS-8201a)", "HER2-positive breast cancer"),
			wantTarget:  "her2",
			wantPayload: "deruxtecan",
		},
		{
			name:        "vedotin with explicit linker",
			corpus:      NormalizeCorpus("Enfortumab vedotin", "Nectin-4 directed, val-cit linker"),
			wantTarget:  "nectin-4",
			wantPayload: "vedotin",
			wantLinker:  "val-cit",
		},
		{
			name:   "synonym glued to other letters is ignored",
			corpus: NormalizeCorpus("neurology study of gemcitabine"),
		},
		{
			name:   "empty corpus",
			corpus: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, _ := d.ScanTarget(tt.corpus)
			payload, _ := d.ScanPayload(tt.corpus)
			linker, _ := d.ScanLinker(tt.corpus)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantPayload, payload)
			assert.Equal(t, tt.wantLinker, linker)
		})
	}
}

func TestCanonicalization(t *testing.T) {
	d := Default()

	assert.Equal(t, "ERBB2", d.CanonicalTarget("HER2"))
	assert.Equal(t, "ERBB2", d.CanonicalTarget("erbb2"))
	assert.Equal(t, "TACSTD2", d.CanonicalTarget(" trop-2 "))
	assert.Equal(t, "GPRC5D", d.CanonicalTarget("gprc5d"))
	assert.Equal(t, "", d.CanonicalTarget("  "))

	family, exact := d.CanonicalPayload("deruxtecan")
	assert.Equal(t, "camptothecin", family)
	assert.Equal(t, "DXd", exact)

	family, exact = d.CanonicalPayload("novel-toxin-7")
	assert.Equal(t, "novel-toxin-7", family)
	assert.Empty(t, exact)

	family, name := d.CanonicalLinker("vc")
	assert.Equal(t, "protease-cleavable dipeptide", family)
	assert.Equal(t, "mc-vc-PABC", name)

	family, name = d.CanonicalLinker("click-linker")
	assert.Equal(t, "click-linker", family)
	assert.Empty(t, name)
}

func TestPayloadProxy(t *testing.T) {
	d := Default()

	p, ok := d.PayloadProxy("DXd")
	require.True(t, ok)
	assert.Equal(t, "Exatecan", p.ProxyName)
	assert.Equal(t, "151115", p.CID)
	assert.NotEmpty(t, p.SMILES)

	p, ok = d.PayloadProxy("", "unknown", "auristatin")
	require.True(t, ok)
	assert.Equal(t, "MMAE", p.ProxyName)

	_, ok = d.PayloadProxy("calicheamicin")
	assert.False(t, ok)
}

func TestAntibodyIdentity(t *testing.T) {
	d := Default()

	a, ok := d.AntibodyIdentity("Trastuzumab")
	require.True(t, ok)
	assert.Equal(t, "DB00072", a.Xrefs["drugbank"])

	_, ok = d.AntibodyIdentity("trastuzumab deruxtecan")
	assert.True(t, ok)

	_, ok = d.AntibodyIdentity("unknownumab")
	assert.False(t, ok)
}

func TestExtractAntibody(t *testing.T) {
	assert.Equal(t, "trastuzumab", ExtractAntibody("fam-trastuzumab deruxtecan-nxki"))
	assert.Equal(t, "sacituzumab", ExtractAntibody("sacituzumab govitecan"))
	assert.Equal(t, "", ExtractAntibody("paclitaxel and carboplatin"))
	assert.Equal(t, "", ExtractAntibody(""))
}

func TestClassify(t *testing.T) {
	d := Default()
	tests := []struct {
		text string
		want string
	}{
		{"Trastuzumab deruxtecan in HER2-low breast cancer", LabelADC},
		{"A novel antibody-drug conjugate XYZ-123", LabelADC},
		{"ADC targeting B7-H3", LabelADC},
		{"DXd-based payload study", LabelAmbiguous},
		{"Pembrolizumab plus chemotherapy", LabelNotADC},
		{"Paclitaxel weekly", LabelNotADC},
		{"", LabelNotADC},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := d.Classify(tt.text)
			assert.Equal(t, tt.want, c.Label, "score=%v signals=%v", c.Score, c.Signals)
		})
	}
}

func TestClassifyScoreBounds(t *testing.T) {
	d := Default()
	inputs := []string{
		"",
		"   ",
		"vaccine car-t chimeric antigen receptor",
		strings.Repeat("antibody-drug conjugate vedotin deruxtecan mmae val-cit trastuzumab ", 50),
		" —‑",
	}
	for _, in := range inputs {
		c := d.Classify(in)
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestNormalizeCorpus(t *testing.T) {
	assert.Equal(t, "anti-her2 adc", NormalizeCorpus("Anti‑HER2", "  ＡＤＣ "))
	assert.Equal(t, "", NormalizeCorpus())
	assert.Equal(t, "beta-glucuronide linker", NormalizeCorpus("β‐Glucuronide", "Linker"))
}

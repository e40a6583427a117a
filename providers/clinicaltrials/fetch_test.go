package clinicaltrials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"golden-seed/config"
	"golden-seed/providers"
)

func newTestFetcher(t *testing.T, srv *httptest.Server) *Fetcher {
	cfg := &config.Config{CTGovBaseURL: srv.URL, ExternalTimeout: 2 * time.Second}
	return NewFetcher(cfg, zaptest.NewLogger(t))
}

const pageOne = `{
  "studies": [{
    "protocolSection": {
      "identificationModule": {
        "nctId": "NCT00000001",
        "briefTitle": "T-DXd in HER2-low breast cancer",
        "secondaryIdInfos": [{"id": "NCT00000002"}, {"id": "EUCT-2024-1"}]
      },
      "statusModule": {"overallStatus": "RECRUITING"},
      "designModule": {"phases": ["PHASE3"]},
      "conditionsModule": {"conditions": ["Breast Cancer"]},
      "armsInterventionsModule": {"interventions": [
        {"type": "DRUG", "name": "Trastuzumab deruxtecan", "otherNames": ["DS-8201a"]}
      ]}
    }
  }],
  "nextPageToken": "p2"
}`

const pageTwo = `{
  "studies": [{
    "protocolSection": {
      "identificationModule": {"nctId": "NCT00000003", "briefTitle": "Second"},
      "statusModule": {"overallStatus": "COMPLETED"}
    }
  }]
}`

func TestSearchStudiesPaginates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/studies", r.URL.Path)
		assert.Equal(t, "adc AND breast cancer", r.URL.Query().Get("query.term"))
		assert.Equal(t, "RECRUITING,COMPLETED", r.URL.Query().Get("filter.overallStatus"))
		if r.URL.Query().Get("pageToken") == "p2" {
			fmt.Fprint(w, pageTwo)
			return
		}
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv)
	studies, err := f.SearchStudies(context.Background(), providers.StudyQuery{
		Term:     "adc AND breast cancer",
		Statuses: []string{"RECRUITING", "COMPLETED"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, studies, 2)
	assert.Equal(t, 2, calls)

	first := studies[0]
	assert.Equal(t, "NCT00000001", first.NCTID)
	assert.Equal(t, []string{"NCT00000002"}, first.SecondaryIDs)
	assert.Equal(t, []string{"PHASE3"}, first.Phases)
	require.Len(t, first.Interventions, 1)
	assert.Equal(t, "Trastuzumab deruxtecan", first.Interventions[0].Name)
	assert.Equal(t, "COMPLETED", studies[1].OverallStatus)
}

func TestSearchStudiesRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, pageOne)
	}))
	defer srv.Close()

	studies, err := newTestFetcher(t, srv).SearchStudies(context.Background(), providers.StudyQuery{Term: "adc", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, studies, 1)
}

func TestSearchStudiesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, srv).SearchStudies(context.Background(), providers.StudyQuery{Term: "adc"})
	require.Error(t, err)
	var statusErr *providers.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

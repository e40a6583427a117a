package pubchem

import (
	"context"
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

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/compound/name/exatecan/cids/JSON", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"IdentifierList":{"CID":[151115]}}`)
	})
	mux.HandleFunc("/compound/name/broken/cids/JSON", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/compound/cid/151115/property/"+properties+"/JSON", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"PropertyTable":{"Properties":[{"CID":151115,"Title":"Exatecan","SMILES":"CC1=C(F)C=C2","ConnectivitySMILES":"CC1=CC=C2","InChIKey":"ZVYVPGLRVWUPMP-FYSMJZIKSA-N"}]}}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"Fault":{"Code":"PUGREST.NotFound"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(t *testing.T) *Fetcher {
	srv := newTestServer(t)
	return NewFetcher(&config.Config{PubChemBaseURL: srv.URL, ExternalTimeout: 2 * time.Second}, zaptest.NewLogger(t))
}

func TestLookupCIDs(t *testing.T) {
	f := newTestFetcher(t)

	cids, err := f.LookupCIDs(context.Background(), "exatecan")
	require.NoError(t, err)
	assert.Equal(t, []string{"151115"}, cids)

	cids, err = f.LookupCIDs(context.Background(), "DXd")
	require.NoError(t, err)
	assert.Empty(t, cids)

	_, err = f.LookupCIDs(context.Background(), "broken")
	var statusErr *providers.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "pubchem", statusErr.Service)
}

func TestPropertiesMapsNewSMILESFields(t *testing.T) {
	f := newTestFetcher(t)

	compounds, err := f.Properties(context.Background(), []string{"151115"})
	require.NoError(t, err)
	require.Len(t, compounds, 1)
	c := compounds[0]
	assert.Equal(t, "151115", c.CID)
	assert.Equal(t, "Exatecan", c.Title)
	assert.Equal(t, "CC1=C(F)C=C2", c.IsomericSMILES)
	assert.Equal(t, "CC1=CC=C2", c.CanonicalSMILES)
	assert.NotEmpty(t, c.InChIKey)

	none, err := f.Properties(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

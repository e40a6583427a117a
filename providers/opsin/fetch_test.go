package opsin

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
)

func TestParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ethanol.json":
			fmt.Fprint(w, `{"status":"SUCCESS","smiles":"CCO","stdinchikey":"LFQSCWFLJHTTHZ-UHFFFAOYSA-N"}`)
		case "/teapot.json":
			w.WriteHeader(http.StatusTeapot)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"status":"FAILURE","message":"name not understood"}`)
		}
	}))
	defer srv.Close()

	f := NewFetcher(&config.Config{OpsinBaseURL: srv.URL, ExternalTimeout: 2 * time.Second}, zaptest.NewLogger(t))

	parsed, err := f.Parse(context.Background(), "ethanol")
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, "CCO", parsed.SMILES)
	assert.Equal(t, "LFQSCWFLJHTTHZ-UHFFFAOYSA-N", parsed.InChIKey)

	parsed, err = f.Parse(context.Background(), "DXd")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	_, err = f.Parse(context.Background(), "teapot")
	assert.Error(t, err)
}

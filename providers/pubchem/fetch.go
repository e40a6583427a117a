package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"golden-seed/config"
	"golden-seed/providers"
)

const (
	serviceName = "pubchem"
	properties  = "CanonicalSMILES,IsomericSMILES,InChIKey,Title"
)

// Fetcher talks to the PubChem PUG REST API.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
	client  *http.Client
}

// NewFetcher creates a PubChem client.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		BaseURL: strings.TrimRight(cfg.PubChemBaseURL, "/"),
		Logger:  logger,
		client:  &http.Client{Timeout: cfg.ExternalTimeout},
	}
}

func (f *Fetcher) Name() string {
	return serviceName
}

// LookupCIDs resolves an exact compound name. PubChem answers 404 for unknown names.
func (f *Fetcher) LookupCIDs(ctx context.Context, name string) (cids []string, err error) {
	ctx, span := otel.Tracer("golden-seed.providers").Start(ctx, "pubchem.Fetcher.LookupCIDs")
	span.SetAttributes(attribute.String("compound.name", name))
	defer func() {
		span.SetAttributes(attribute.Int("cids.count", len(cids)))
		providers.EndSpan(span, err)
	}()

	lookupURL := fmt.Sprintf("%s/compound/name/%s/cids/JSON", f.BaseURL, url.PathEscape(name))
	var out CIDResponse
	found, err := f.getJSON(ctx, lookupURL, &out)
	if err != nil || !found {
		return nil, err
	}
	for _, cid := range out.IdentifierList.CID {
		if cid > 0 {
			cids = append(cids, strconv.FormatInt(cid, 10))
		}
	}
	return cids, nil
}

// Properties fetches SMILES, InChIKey and title for the given CIDs.
func (f *Fetcher) Properties(ctx context.Context, cids []string) (compounds []providers.Compound, err error) {
	if len(cids) == 0 {
		return nil, nil
	}
	ctx, span := otel.Tracer("golden-seed.providers").Start(ctx, "pubchem.Fetcher.Properties")
	span.SetAttributes(attribute.StringSlice("cids", cids))
	defer func() { providers.EndSpan(span, err) }()

	propURL := fmt.Sprintf("%s/compound/cid/%s/property/%s/JSON", f.BaseURL, strings.Join(cids, ","), properties)
	var out PropertyResponse
	found, err := f.getJSON(ctx, propURL, &out)
	if err != nil || !found {
		return nil, err
	}
	for _, p := range out.PropertyTable.Properties {
		compounds = append(compounds, mapProperty(p))
	}
	return compounds, nil
}

func mapProperty(p Property) providers.Compound {
	c := providers.Compound{
		CID:             strconv.FormatInt(p.CID, 10),
		Title:           p.Title,
		CanonicalSMILES: p.CanonicalSMILES,
		IsomericSMILES:  p.IsomericSMILES,
		InChIKey:        p.InChIKey,
	}
	if c.CanonicalSMILES == "" {
		c.CanonicalSMILES = p.ConnectivitySMILES
	}
	if c.IsomericSMILES == "" {
		c.IsomericSMILES = p.SMILES
	}
	return c
}

// getJSON decodes a 200 response into out. A 404 reports found=false.
func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) (bool, error) {
	f.Logger.Debug("Calling PubChem API", zap.String("url", rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &providers.StatusError{Service: serviceName, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode pubchem response: %w", err)
	}
	return true, nil
}

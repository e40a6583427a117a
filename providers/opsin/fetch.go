package opsin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"golden-seed/config"
	"golden-seed/providers"
)

const serviceName = "opsin"

// Response is the JSON body of the OPSIN web service.
type Response struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	SMILES      string `json:"smiles"`
	StdInChIKey string `json:"stdinchikey"`
}

// Fetcher converts IUPAC names to structures via OPSIN.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
	client  *http.Client
}

func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		BaseURL: strings.TrimRight(cfg.OpsinBaseURL, "/"),
		Logger:  logger,
		client:  &http.Client{Timeout: cfg.ExternalTimeout},
	}
}

func (f *Fetcher) Name() string {
	return serviceName
}

// Parse returns nil when OPSIN cannot interpret the name.
func (f *Fetcher) Parse(ctx context.Context, name string) (parsed *providers.ParsedStructure, err error) {
	ctx, span := otel.Tracer("golden-seed.providers").Start(ctx, "opsin.Fetcher.Parse")
	span.SetAttributes(attribute.String("compound.name", name))
	defer func() {
		span.SetAttributes(attribute.Bool("parsed", parsed != nil))
		providers.EndSpan(span, err)
	}()

	parseURL := fmt.Sprintf("%s/%s.json", f.BaseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// OPSIN signals unparseable names with 404 and status FAILURE.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{Service: serviceName, StatusCode: resp.StatusCode}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode opsin response: %w", err)
	}
	if out.Status != "SUCCESS" || out.SMILES == "" {
		f.Logger.Debug("OPSIN could not parse name", zap.String("name", name), zap.String("message", out.Message))
		return nil, nil
	}
	return &providers.ParsedStructure{SMILES: out.SMILES, InChIKey: out.StdInChIKey}, nil
}

package clinicaltrials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"golden-seed/config"
	"golden-seed/providers"
)

const (
	serviceName = "clinicaltrials"
	maxPageSize = 100
)

var studyFields = strings.Join([]string{
	"NCTId", "BriefTitle", "OfficialTitle", "SecondaryIdInfo", "OverallStatus", "BriefSummary",
	"Condition", "Phase", "InterventionType", "InterventionName", "InterventionDescription", "InterventionOtherName",
}, ",")

var nctPattern = regexp.MustCompile(`^NCT\d{8}$`)

// Fetcher queries the ClinicalTrials.gov v2 search API.
type Fetcher struct {
	BaseURL string
	Logger  *zap.Logger
	client  *http.Client
}

// NewFetcher creates a registry client using the configured base URL and timeout.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		BaseURL: strings.TrimRight(cfg.CTGovBaseURL, "/"),
		Logger:  logger,
		client:  &http.Client{Timeout: cfg.ExternalTimeout},
	}
}

func (f *Fetcher) Name() string {
	return serviceName
}

// SearchStudies pages through /studies until q.Limit studies were collected
// or the registry has no more pages.
func (f *Fetcher) SearchStudies(ctx context.Context, q providers.StudyQuery) (studies []providers.Study, err error) {
	ctx, span := otel.Tracer("golden-seed.providers").Start(ctx, "clinicaltrials.Fetcher.SearchStudies")
	span.SetAttributes(attribute.String("query.term", q.Term), attribute.Int("query.limit", q.Limit))
	defer func() {
		span.SetAttributes(attribute.Int("studies.count", len(studies)))
		providers.EndSpan(span, err)
	}()

	log := f.Logger.With(zap.String("term", q.Term))
	log.Info("Searching trials registry")

	pageToken := ""
	for {
		pageSize := maxPageSize
		if q.Limit > 0 && q.Limit-len(studies) < pageSize {
			pageSize = q.Limit - len(studies)
		}
		page, err := f.fetchPage(ctx, q, pageSize, pageToken)
		if err != nil {
			return nil, err
		}
		for i := range page.Studies {
			studies = append(studies, mapStudy(&page.Studies[i]))
		}
		pageToken = page.NextPageToken
		if pageToken == "" || len(page.Studies) == 0 || (q.Limit > 0 && len(studies) >= q.Limit) {
			break
		}
	}
	if q.Limit > 0 && len(studies) > q.Limit {
		studies = studies[:q.Limit]
	}

	log.Info("Registry search completed", zap.Int("found_studies", len(studies)))
	return studies, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, q providers.StudyQuery, pageSize int, pageToken string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("query.term", q.Term)
	if len(q.Statuses) > 0 {
		params.Set("filter.overallStatus", strings.Join(q.Statuses, ","))
	}
	params.Set("fields", studyFields)
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	searchURL := fmt.Sprintf("%s/studies?%s", f.BaseURL, params.Encode())
	f.Logger.Debug("Calling registry API", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.StatusError{Service: serviceName, StatusCode: resp.StatusCode}
	}

	var page SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	return &page, nil
}

// mapStudy converts a registry record into the provider-neutral Study.
func mapStudy(rec *StudyRecord) providers.Study {
	ps := &rec.ProtocolSection
	s := providers.Study{
		NCTID:         strings.TrimSpace(ps.IdentificationModule.NCTID),
		BriefTitle:    ps.IdentificationModule.BriefTitle,
		OfficialTitle: ps.IdentificationModule.OfficialTitle,
		BriefSummary:  ps.DescriptionModule.BriefSummary,
		OverallStatus: ps.StatusModule.OverallStatus,
		Phases:        ps.DesignModule.Phases,
		Conditions:    ps.ConditionsModule.Conditions,
	}
	for _, sec := range ps.IdentificationModule.SecondaryIDInfos {
		id := strings.ToUpper(strings.TrimSpace(sec.ID))
		if nctPattern.MatchString(id) && id != s.NCTID {
			s.SecondaryIDs = append(s.SecondaryIDs, id)
		}
	}
	for _, iv := range ps.ArmsInterventionsModule.Interventions {
		s.Interventions = append(s.Interventions, providers.Intervention{
			Type:        iv.Type,
			Name:        iv.Name,
			Description: iv.Description,
			OtherNames:  iv.OtherNames,
		})
	}
	return s
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/models"
	"golden-seed/providers"
	"golden-seed/repository"
)

const (
	defaultCollectLimit = 50
	maxCollectLimit     = 1000
	unknownValue        = "Unknown"
)

// Study states the collector asks the registry for.
var collectStatuses = []string{"RECRUITING", "ACTIVE_NOT_RECRUITING", "COMPLETED"}

// CollectRequest is the input of one collection run.
type CollectRequest struct {
	Indication string
	Targets    []string
	Limit      int
}

// CollectResult counts the outcome of one collection run.
type CollectResult struct {
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	SkippedNoID int `json:"skipped_no_id"`
	TotalFound  int `json:"total_found"`
}

// CollectorService harvests raw candidates from the trials registry.
type CollectorService struct {
	Config   *config.Config
	Store    repository.Store
	Registry providers.Registry
	Dict     *dictionary.Dictionaries
	Logger   *zap.Logger
	limiter  *rate.Limiter
}

func NewCollectorService(cfg *config.Config, store repository.Store, registry providers.Registry, dict *dictionary.Dictionaries, logger *zap.Logger) *CollectorService {
	return &CollectorService{
		Config:   cfg,
		Store:    store,
		Registry: registry,
		Dict:     dict,
		Logger:   logger,
		limiter:  newLimiter(cfg.CTGovRPS),
	}
}

// Run queries the registry and upserts one raw candidate per primary trial ID.
func (s *CollectorService) Run(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	indication := strings.TrimSpace(req.Indication)
	if indication == "" {
		return nil, invalidInput("cancer type is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultCollectLimit
	}
	if limit > maxCollectLimit {
		limit = maxCollectLimit
	}

	query := BuildRegistryQuery(s.Dict.RegistryKeywords(), indication, req.Targets)
	log := s.Logger.With(zap.String("indication", indication), zap.Int("limit", limit))
	log.Info("Starting candidate collection", zap.String("query", query))

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	studies, err := s.Registry.SearchStudies(ctx, providers.StudyQuery{Term: query, Statuses: collectStatuses, Limit: limit})
	observeCall(s.Registry.Name(), start, err)
	if err != nil {
		log.Error("Registry search failed", zap.Error(err))
		return nil, &UpstreamError{Service: s.Registry.Name(), Err: err}
	}

	res := &CollectResult{TotalFound: len(studies)}
	folded := foldStudies(studies)
	if n := len(studies) - len(folded); n > 0 {
		log.Info("Folded studies sharing a trial ID", zap.Int("folded", n))
	}
	for i := range folded {
		cand := s.candidateFromStudy(&folded[i])
		if cand.PrimaryTrialID == "" {
			res.SkippedNoID++
			countItem(stageCollect, "skipped_no_id")
			continue
		}
		outcome, err := s.upsert(ctx, cand)
		if err != nil {
			log.Error("Candidate upsert failed", zap.String("nct_id", cand.PrimaryTrialID), zap.Error(err))
			return nil, err
		}
		countItem(stageCollect, outcome)
		switch outcome {
		case "inserted":
			res.Inserted++
			newCandidates.Inc()
		case "updated":
			res.Updated++
		default:
			res.Unchanged++
		}
	}

	log.Info("Candidate collection completed",
		zap.Int("total_found", res.TotalFound),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped_no_id", res.SkippedNoID))
	return res, nil
}

// upsert is keyed on the primary trial ID appearing in any stored evidence list.
func (s *CollectorService) upsert(ctx context.Context, cand *models.RawCandidate) (string, error) {
	existing, err := s.Store.FindCandidateByTrialID(ctx, cand.PrimaryTrialID)
	if errors.Is(err, repository.ErrNotFound) {
		var inserted bool
		inserted, err = s.Store.InsertCandidate(ctx, cand)
		if err != nil {
			return "", err
		}
		if inserted {
			return "inserted", nil
		}
		// lost a race against a concurrent run; fall through to the update path
		existing, err = s.Store.FindCandidateByTrialID(ctx, cand.PrimaryTrialID)
	}
	if err != nil {
		return "", err
	}

	if !applyCandidateUpdate(existing, cand) {
		return "unchanged", nil
	}
	if err := s.Store.UpdateCandidate(ctx, existing); err != nil {
		return "", err
	}
	return "updated", nil
}

// applyCandidateUpdate copies the mutable fields of fresh onto stored and
// reports whether anything changed.
func applyCandidateUpdate(stored, fresh *models.RawCandidate) bool {
	merged := models.MergeEvidence(stored.EvidenceRefs, fresh.EvidenceRefs...)
	changed := len(merged) != len(stored.EvidenceRefs) ||
		stored.Source != fresh.Source ||
		stored.DrugName != fresh.DrugName ||
		stored.InterventionSummary != fresh.InterventionSummary ||
		!jsonEqual(stored.RawInterventions, fresh.RawInterventions) ||
		stored.Conditions != fresh.Conditions ||
		stored.TargetGuess != fresh.TargetGuess ||
		stored.AntibodyGuess != fresh.AntibodyGuess ||
		stored.LinkerGuess != fresh.LinkerGuess ||
		stored.PayloadGuess != fresh.PayloadGuess ||
		stored.ClinicalPhase != fresh.ClinicalPhase ||
		stored.OverallStatus != fresh.OverallStatus ||
		stored.MatchScore != fresh.MatchScore
	if !changed {
		return false
	}
	stored.EvidenceRefs = merged
	stored.Source = fresh.Source
	stored.DrugName = fresh.DrugName
	stored.InterventionSummary = fresh.InterventionSummary
	stored.RawInterventions = fresh.RawInterventions
	stored.Conditions = fresh.Conditions
	stored.TargetGuess = fresh.TargetGuess
	stored.AntibodyGuess = fresh.AntibodyGuess
	stored.LinkerGuess = fresh.LinkerGuess
	stored.PayloadGuess = fresh.PayloadGuess
	stored.ClinicalPhase = fresh.ClinicalPhase
	stored.OverallStatus = fresh.OverallStatus
	stored.MatchScore = fresh.MatchScore
	return true
}

// jsonEqual compares documents semantically; jsonb does not keep key order.
func jsonEqual(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// foldStudies merges studies that repeat a trial ID into one, keeping the
// order in which IDs first appear. The merge does not depend on the order
// the registry returned the duplicates in.
func foldStudies(studies []providers.Study) []providers.Study {
	groups := make(map[string][]providers.Study)
	var order []string
	var out []providers.Study
	for _, st := range studies {
		id := strings.ToUpper(strings.TrimSpace(st.NCTID))
		if id == "" {
			out = append(out, st)
			continue
		}
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], st)
	}
	for _, id := range order {
		out = append(out, mergeStudies(groups[id]))
	}
	return out
}

func mergeStudies(group []providers.Study) providers.Study {
	if len(group) == 1 {
		return group[0]
	}
	keys := make([]string, len(group))
	for i := range group {
		raw, _ := json.Marshal(group[i])
		keys[i] = string(raw)
	}
	idx := make([]int, len(group))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	merged := group[idx[0]]
	merged.SecondaryIDs = append([]string(nil), merged.SecondaryIDs...)
	merged.Phases = append([]string(nil), merged.Phases...)
	merged.Conditions = append([]string(nil), merged.Conditions...)
	merged.Interventions = append([]providers.Intervention(nil), merged.Interventions...)
	for _, i := range idx[1:] {
		st := group[i]
		if merged.OfficialTitle == "" {
			merged.OfficialTitle = st.OfficialTitle
		}
		if merged.BriefSummary == "" {
			merged.BriefSummary = st.BriefSummary
		}
		merged.SecondaryIDs = appendUnique(merged.SecondaryIDs, st.SecondaryIDs...)
		merged.Phases = appendUnique(merged.Phases, st.Phases...)
		merged.Conditions = appendUnique(merged.Conditions, st.Conditions...)
		for _, iv := range st.Interventions {
			if !hasIntervention(merged.Interventions, iv) {
				merged.Interventions = append(merged.Interventions, iv)
			}
		}
	}
	return merged
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func hasIntervention(ivs []providers.Intervention, iv providers.Intervention) bool {
	for _, x := range ivs {
		if strings.EqualFold(x.Type, iv.Type) && strings.EqualFold(x.Name, iv.Name) && x.Description == iv.Description {
			return true
		}
	}
	return false
}

// candidateFromStudy never fails; missing data degrades to empty or Unknown fields.
func (s *CollectorService) candidateFromStudy(st *providers.Study) *models.RawCandidate {
	primaryID := strings.ToUpper(strings.TrimSpace(st.NCTID))
	cand := &models.RawCandidate{
		Source:         s.Registry.Name(),
		PrimaryTrialID: primaryID,
		DrugName:       unknownValue,
		Conditions:     strings.Join(st.Conditions, "; "),
		ClinicalPhase:  strings.Join(st.Phases, "/"),
		OverallStatus:  st.OverallStatus,
	}
	if primaryID != "" {
		refs := []models.EvidenceRef{models.TrialEvidence(primaryID)}
		for _, id := range st.SecondaryIDs {
			refs = append(refs, models.TrialEvidence(id))
		}
		cand.EvidenceRefs = models.MergeEvidence(nil, refs...)
	}

	iv := primaryIntervention(st.Interventions)
	var ivText []string
	if iv != nil {
		if name := strings.TrimSpace(iv.Name); name != "" {
			cand.DrugName = name
		}
		ivText = append(append(ivText, iv.Name, iv.Description), iv.OtherNames...)
	}
	cand.InterventionSummary = joinNonEmpty("\n", st.BriefTitle, iv.describe(), st.BriefSummary)
	if raw, err := json.Marshal(st.Interventions); err == nil && len(st.Interventions) > 0 {
		cand.RawInterventions = datatypes.JSON(raw)
	}

	corpus := dictionary.NormalizeCorpus(append(ivText, st.BriefTitle, st.OfficialTitle)...)
	if t, ok := s.Dict.ScanTarget(corpus); ok {
		cand.TargetGuess = s.Dict.CanonicalTarget(t)
	}
	cand.AntibodyGuess = dictionary.ExtractAntibody(corpus)
	if l, ok := s.Dict.ScanLinker(corpus); ok {
		cand.LinkerGuess = l
	}
	if p, ok := s.Dict.ScanPayload(corpus); ok {
		cand.PayloadGuess = p
	}
	cand.MatchScore = MatchScore(s.Dict, strings.Join(ivText, " "))
	return cand
}

type intervention providers.Intervention

func (iv *intervention) describe() string {
	if iv == nil {
		return ""
	}
	parts := []string{iv.Name}
	if len(iv.OtherNames) > 0 {
		parts = append(parts, "("+strings.Join(iv.OtherNames, ", ")+")")
	}
	if iv.Description != "" {
		parts = append(parts, "- "+iv.Description)
	}
	return strings.Join(parts, " ")
}

// primaryIntervention prefers drug and biological interventions.
func primaryIntervention(ivs []providers.Intervention) *intervention {
	for i := range ivs {
		switch strings.ToUpper(ivs[i].Type) {
		case "DRUG", "BIOLOGICAL", "COMBINATION_PRODUCT":
			return (*intervention)(&ivs[i])
		}
	}
	if len(ivs) > 0 {
		return (*intervention)(&ivs[0])
	}
	return nil
}

// MatchScore rates how clearly intervention text describes an ADC. The
// result lies in [0.5,1].
func MatchScore(dict *dictionary.Dictionaries, interventionText string) float64 {
	score := 0.5
	corpus := dictionary.NormalizeCorpus(interventionText)
	if dict.HasConjugateTerm(corpus) {
		score += 0.3
	}
	_, payload := dict.ScanPayload(corpus)
	_, linker := dict.ScanLinker(corpus)
	if payload || linker || dictionary.ExtractAntibody(corpus) != "" {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// BuildRegistryQuery combines the ADC keyword group, the indication and the
// optional target group.
func BuildRegistryQuery(keywords []string, indication string, targets []string) string {
	groups := []string{orGroup(keywords), "(" + quoteTerm(indication) + ")"}
	if tg := orGroup(targets); tg != "" {
		groups = append(groups, tg)
	}
	out := groups[:0]
	for _, g := range groups {
		if g != "" && g != "()" {
			out = append(out, g)
		}
	}
	return strings.Join(out, " AND ")
}

func orGroup(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, quoteTerm(t))
		}
	}
	if len(quoted) == 0 {
		return ""
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func quoteTerm(t string) string {
	t = strings.TrimSpace(strings.ReplaceAll(t, `"`, ""))
	if strings.ContainsAny(t, " -") {
		return `"` + t + `"`
	}
	return t
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

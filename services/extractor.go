package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/models"
	"golden-seed/repository"
)

const sourceExtractor = "component_extractor"

// ExtractRequest selects candidates either by ID or as the newest unclassified ones.
type ExtractRequest struct {
	CandidateIDs []string
	ProcessAll   bool
	Limit        int
}

// ExtractResult counts the outcome of one extraction run.
type ExtractResult struct {
	Processed        int               `json:"processed"`
	SeedsCreated     int               `json:"seeds_created"`
	ProposalsCreated int               `json:"proposals_created"`
	SkippedNotADC    int               `json:"skipped_not_adc"`
	Failed           map[string]string `json:"failed"`
}

// Components are the canonical fields resolved from one candidate's free text.
type Components struct {
	ResolvedTargetSymbol string `json:"resolved_target_symbol"`
	AntibodyName         string `json:"antibody_name"`
	LinkerFamily         string `json:"linker_family"`
	LinkerName           string `json:"linker_name"`
	PayloadFamily        string `json:"payload_family"`
	PayloadExactName     string `json:"payload_exact_name"`
}

// ExtractorService turns raw candidates into seeds and proposals.
type ExtractorService struct {
	Config *config.Config
	Store  repository.Store
	Dict   *dictionary.Dictionaries
	Logger *zap.Logger
	now    func() time.Time
}

func NewExtractorService(cfg *config.Config, store repository.Store, dict *dictionary.Dictionaries, logger *zap.Logger) *ExtractorService {
	return &ExtractorService{Config: cfg, Store: store, Dict: dict, Logger: logger, now: time.Now}
}

// Run processes the selected candidates one at a time. Item failures are
// reported in the result and never abort the batch.
func (s *ExtractorService) Run(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	filter := repository.CandidateFilter{IDs: req.CandidateIDs}
	switch {
	case len(req.CandidateIDs) > 0:
	case req.ProcessAll:
		filter.UnclassifiedOnly = true
		filter.Limit = req.Limit
		if filter.Limit <= 0 {
			filter.Limit = s.Config.ExtractDefaultLimit
		}
	default:
		return nil, invalidInput("candidate_ids or process_all is required")
	}

	candidates, err := s.Store.ListCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	res := &ExtractResult{Failed: map[string]string{}}
	found := make(map[string]bool, len(candidates))
	for i := range candidates {
		found[candidates[i].ID] = true
	}
	for _, id := range req.CandidateIDs {
		if !found[id] {
			res.Failed[id] = "Candidate not found"
			countItem(stageExtract, "failed")
		}
	}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cand := &candidates[i]
		res.Processed++
		outcome, err := s.extractOne(ctx, cand)
		if err != nil {
			s.Logger.Error("Extraction failed", zap.String("candidate_id", cand.ID), zap.Error(err))
			res.Failed[cand.ID] = err.Error()
			countItem(stageExtract, "failed")
			continue
		}
		countItem(stageExtract, outcome)
		switch outcome {
		case "skipped_not_adc":
			res.SkippedNotADC++
		case "seed_created":
			res.SeedsCreated++
			res.ProposalsCreated++
		case "proposal_created":
			res.ProposalsCreated++
		}
	}

	s.Logger.Info("Component extraction completed",
		zap.Int("processed", res.Processed),
		zap.Int("seeds_created", res.SeedsCreated),
		zap.Int("proposals_created", res.ProposalsCreated),
		zap.Int("skipped_not_adc", res.SkippedNotADC),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

func (s *ExtractorService) extractOne(ctx context.Context, cand *models.RawCandidate) (string, error) {
	log := s.Logger.With(zap.String("candidate_id", cand.ID), zap.String("nct_id", cand.PrimaryTrialID))
	corpus := candidateCorpus(cand)

	class, err := s.classify(ctx, cand, corpus)
	if err != nil {
		return "", err
	}
	if class.Label == dictionary.LabelNotADC {
		log.Debug("Candidate classified as not ADC", zap.Float64("score", class.Score))
		return "skipped_not_adc", nil
	}

	comp := s.Extract(cand)

	seed, err := s.Store.FindSeedByCandidate(ctx, cand.ID)
	if err == nil {
		return "proposal_created", s.proposeUpdate(ctx, seed, cand, comp, class.Score)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	created, err := s.createSeed(ctx, cand, comp, class.Score)
	if errors.Is(err, repository.ErrConflict) {
		// a concurrent run created the seed first
		seed, err = s.Store.FindSeedByCandidate(ctx, cand.ID)
		if err != nil {
			return "", err
		}
		return "proposal_created", s.proposeUpdate(ctx, seed, cand, comp, class.Score)
	}
	if err != nil {
		return "", err
	}
	log.Info("Seed created from candidate", zap.String("seed_id", created.ID))
	return "seed_created", nil
}

func candidateCorpus(c *models.RawCandidate) string {
	return dictionary.NormalizeCorpus(c.DrugName, c.InterventionSummary, string(c.RawInterventions))
}

// classify applies the configured score policy and stores fresh scores.
func (s *ExtractorService) classify(ctx context.Context, cand *models.RawCandidate, corpus string) (dictionary.Classification, error) {
	if !needsClassification(s.Config.ScorePolicy, cand, s.now(), s.Config.ScoreMaxAge) {
		return dictionary.Classification{Score: cand.ADCScore, Label: cand.ADCClass}, nil
	}
	class := s.Dict.Classify(corpus)
	at := s.now()
	if err := s.Store.SetCandidateClassification(ctx, cand.ID, class.Score, class.Label, at); err != nil {
		return class, err
	}
	cand.ADCScore, cand.ADCClass, cand.ClassifiedAt = class.Score, class.Label, &at
	return class, nil
}

func needsClassification(policy string, cand *models.RawCandidate, now time.Time, maxAge time.Duration) bool {
	if !cand.IsClassified() {
		return true
	}
	switch policy {
	case config.ScorePolicyReuse:
		return false
	case config.ScorePolicyRecompute:
		return true
	}
	if cand.ClassifiedAt == nil || cand.UpdatedAt.After(*cand.ClassifiedAt) {
		return true
	}
	return maxAge > 0 && now.Sub(*cand.ClassifiedAt) > maxAge
}

// Extract resolves canonical components from the candidate's text, falling
// back to the hints captured at harvest time.
func (s *ExtractorService) Extract(cand *models.RawCandidate) Components {
	corpus := candidateCorpus(cand)
	var comp Components

	targetHint := cand.TargetGuess
	if t, ok := s.Dict.ScanTarget(corpus); ok {
		targetHint = t
	}
	comp.ResolvedTargetSymbol = s.Dict.CanonicalTarget(targetHint)

	comp.AntibodyName = dictionary.ExtractAntibody(corpus)
	if comp.AntibodyName == "" {
		comp.AntibodyName = cand.AntibodyGuess
	}

	payloadTok := cand.PayloadGuess
	if p, ok := s.Dict.ScanPayload(corpus); ok {
		payloadTok = p
	}
	if payloadTok != "" {
		comp.PayloadFamily, comp.PayloadExactName = s.Dict.CanonicalPayload(payloadTok)
	}

	linkerTok := cand.LinkerGuess
	if l, ok := s.Dict.ScanLinker(corpus); ok {
		linkerTok = l
	}
	if linkerTok == "" && payloadTok != "" {
		if p, ok := s.Dict.PayloadFor(payloadTok); ok {
			linkerTok = p.ImpliedLinker
		}
	}
	if linkerTok != "" {
		comp.LinkerFamily, comp.LinkerName = s.Dict.CanonicalLinker(linkerTok)
		if comp.LinkerName == "" {
			comp.LinkerName = linkerTok
		}
	}
	return comp
}

func (c Components) changes(seed *models.SeedItem, drugName string) models.Patch {
	values := []struct {
		field models.SeedField
		value string
	}{
		{models.FieldDrugName, drugName},
		{models.FieldResolvedTargetSymbol, c.ResolvedTargetSymbol},
		{models.FieldAntibodyName, c.AntibodyName},
		{models.FieldLinkerFamily, c.LinkerFamily},
		{models.FieldLinkerName, c.LinkerName},
		{models.FieldPayloadFamily, c.PayloadFamily},
		{models.FieldPayloadExactName, c.PayloadExactName},
	}
	var patch models.Patch
	for _, v := range values {
		if v.value == "" {
			continue
		}
		var old any
		if seed != nil {
			old, _ = seed.Get(v.field)
		}
		patch = append(patch, models.FieldChange{Field: v.field, Old: old, New: v.value, Source: sourceExtractor})
	}
	return patch
}

func (s *ExtractorService) createSeed(ctx context.Context, cand *models.RawCandidate, comp Components, score float64) (*models.SeedItem, error) {
	seed := &models.SeedItem{
		SourceCandidateID:    cand.ID,
		DrugName:             cand.DrugName,
		ResolvedTargetSymbol: comp.ResolvedTargetSymbol,
		AntibodyName:         comp.AntibodyName,
		LinkerFamily:         comp.LinkerFamily,
		LinkerName:           comp.LinkerName,
		PayloadFamily:        comp.PayloadFamily,
		PayloadExactName:     comp.PayloadExactName,
		FieldVerified:        map[string]bool{},
		EvidenceRefs:         models.MergeEvidence(nil, cand.EvidenceRefs...),
		GateStatus:           models.GateNeedsReview,
	}
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.CreateSeed(ctx, seed); err != nil {
			return err
		}
		patch := append(comp.changes(nil, cand.DrugName), models.FieldChange{
			Field:  models.MetaNote,
			New:    fmt.Sprintf("new seed created from candidate %s", cand.ID),
			Source: sourceExtractor,
		})
		return tx.CreateProposal(ctx, &models.ReviewProposal{
			SeedID:       seed.ID,
			QueueType:    models.QueueNewSeedAudit,
			Source:       sourceExtractor,
			Patch:        patch,
			Confidence:   clampUnit(score),
			EvidenceRefs: cand.EvidenceRefs,
		})
	})
	if err != nil {
		return nil, err
	}
	return seed, nil
}

// proposeUpdate never writes the seed; the review mediator decides.
func (s *ExtractorService) proposeUpdate(ctx context.Context, seed *models.SeedItem, cand *models.RawCandidate, comp Components, score float64) error {
	patch := append(comp.changes(seed, cand.DrugName), models.FieldChange{
		Field:  models.MetaNote,
		New:    fmt.Sprintf("re-extracted from candidate %s", cand.ID),
		Source: sourceExtractor,
	})
	return s.Store.CreateProposal(ctx, &models.ReviewProposal{
		SeedID:       seed.ID,
		QueueType:    models.QueueTypeFor(seed),
		Source:       sourceExtractor,
		Patch:        patch,
		Confidence:   clampUnit(score),
		EvidenceRefs: cand.EvidenceRefs,
	})
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

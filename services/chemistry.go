package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/models"
	"golden-seed/repository"
)

// Chemistry resolution modes.
const (
	ModePayload  = "payload"
	ModeLinker   = "linker"
	ModeAntibody = "antibody"
	ModeAll      = "all"
)

const sourceChemistry = "chemistry_resolver"

// ChemistryRequest selects seeds and the structural families to resolve.
type ChemistryRequest struct {
	SeedIDs []string
	Mode    string
}

// ChemistryResult aggregates outcomes across all processed seeds.
type ChemistryResult struct {
	Processed        int               `json:"processed"`
	ExactFound       int               `json:"exact_found"`
	ProxiesProposed  int               `json:"proxies_proposed"`
	AntibodiesFound  int               `json:"antibodies_found"`
	ProposalsCreated int               `json:"proposals_created"`
	Failed           map[string]string `json:"failed"`
}

func (r *ChemistryResult) add(o seedOutcome) {
	r.ExactFound += o.exact
	r.ProxiesProposed += o.proxies
	r.AntibodiesFound += o.antibodies
	if o.proposed {
		r.ProposalsCreated++
	}
}

type seedOutcome struct {
	exact, proxies, antibodies int
	proposed                   bool
	// failure names a family that could not be resolved while the others
	// were still proposed.
	failure string
}

// ChemistryService enriches seeds with structures and identities. Every
// outcome becomes a proposal; seeds are never written here.
type ChemistryService struct {
	Config   *config.Config
	Store    repository.Store
	Resolver *StructureResolver
	Dict     *dictionary.Dictionaries
	Logger   *zap.Logger
}

func NewChemistryService(cfg *config.Config, store repository.Store, resolver *StructureResolver, dict *dictionary.Dictionaries, logger *zap.Logger) *ChemistryService {
	return &ChemistryService{Config: cfg, Store: store, Resolver: resolver, Dict: dict, Logger: logger}
}

// ValidMode reports whether mode names a known resolution family.
func ValidMode(mode string) bool {
	switch mode {
	case ModePayload, ModeLinker, ModeAntibody, ModeAll:
		return true
	}
	return false
}

// Run resolves the selected seeds on a bounded worker pool.
func (s *ChemistryService) Run(ctx context.Context, req ChemistryRequest) (*ChemistryResult, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeAll
	}
	if !ValidMode(mode) {
		return nil, invalidInput("unknown mode %q", req.Mode)
	}
	ids := uniqueIDs(req.SeedIDs)
	if len(ids) == 0 {
		return nil, invalidInput("seed_ids is required")
	}

	var linkers []models.LinkerReference
	if mode == ModeLinker || mode == ModeAll {
		var err error
		if linkers, err = s.Store.ListLinkers(ctx); err != nil {
			return nil, err
		}
	}

	res := &ChemistryResult{}
	failures := newFailureSet()
	var mu sync.Mutex

	err := forEachBounded(ctx, s.Config.ChemistryWorkers, ids, func(ctx context.Context, id string) {
		out, err := s.resolveSeed(ctx, id, mode, linkers)
		mu.Lock()
		defer mu.Unlock()
		res.Processed++
		if err != nil {
			failures.add(id, err.Error())
			countItem(stageChemistry, "failed")
			return
		}
		res.add(out)
		if out.failure != "" {
			failures.add(id, out.failure)
			countItem(stageChemistry, "partial")
		} else if out.proposed {
			countItem(stageChemistry, "proposed")
		} else {
			countItem(stageChemistry, "nothing_to_propose")
		}
	})
	if err != nil {
		return nil, err
	}
	res.Failed = failures.snapshot()

	s.Logger.Info("Chemistry resolution completed",
		zap.String("mode", mode),
		zap.Int("processed", res.Processed),
		zap.Int("exact_found", res.ExactFound),
		zap.Int("proxies_proposed", res.ProxiesProposed),
		zap.Int("antibodies_found", res.AntibodiesFound),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// seedPatch accumulates the changes proposed for one seed.
type seedPatch struct {
	seed       *models.SeedItem
	patch      models.Patch
	evidence   []models.EvidenceRef
	proxyRefs  []models.EvidenceRef
	confidence float64
}

func (p *seedPatch) set(field models.SeedField, value any, source string, confidence float64) {
	old, _ := p.seed.Get(field)
	p.patch = append(p.patch, models.FieldChange{Field: field, Old: old, New: value, Source: source})
	if len(p.patch) == 1 || confidence < p.confidence {
		p.confidence = confidence
	}
}

func (s *ChemistryService) resolveSeed(ctx context.Context, id, mode string, linkers []models.LinkerReference) (seedOutcome, error) {
	var out seedOutcome
	seed, err := s.Store.GetSeed(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return out, errors.New("Seed not found")
	}
	if err != nil {
		return out, err
	}
	if seed.IsFinal {
		return out, errors.New("Seed is final")
	}
	log := s.Logger.With(zap.String("seed_id", seed.ID))
	p := &seedPatch{seed: seed}

	if mode == ModePayload || mode == ModeAll {
		if err := s.resolvePayload(ctx, p, &out); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("Payload lookup failed", zap.Error(err))
			out.failure = fmt.Sprintf("payload lookup failed: %v", err)
		}
	}
	if mode == ModeLinker || mode == ModeAll {
		s.resolveLinker(p, linkers, &out)
	}
	if mode == ModeAntibody || mode == ModeAll {
		s.resolveAntibody(p, &out)
	}

	if len(p.proxyRefs) > 0 {
		p.set(models.FieldProxyEvidence, models.MergeEvidence(seed.ProxyEvidence, p.proxyRefs...), sourceChemistry, p.confidence)
	}
	if len(p.patch) == 0 {
		return out, nil
	}

	err = s.Store.CreateProposal(ctx, &models.ReviewProposal{
		SeedID:       seed.ID,
		QueueType:    models.QueueTypeFor(seed),
		Source:       sourceChemistry,
		Patch:        p.patch,
		Confidence:   clampUnit(p.confidence),
		EvidenceRefs: append(p.evidence, p.proxyRefs...),
	})
	if err != nil {
		return out, err
	}
	out.proposed = true
	log.Info("Chemistry proposal created",
		zap.Int("fields", len(p.patch)),
		zap.Int("exact", out.exact),
		zap.Int("proxies", out.proxies))
	return out, nil
}

func payloadLookupName(seed *models.SeedItem) string {
	if n := strings.TrimSpace(seed.PayloadExactName); n != "" {
		return n
	}
	return strings.TrimSpace(seed.PayloadFamily)
}

func (s *ChemistryService) resolvePayload(ctx context.Context, p *seedPatch, out *seedOutcome) error {
	seed := p.seed
	name := payloadLookupName(seed)
	if name == "" || seed.PayloadSMILESStandardized != "" {
		return nil
	}

	match, err := s.Resolver.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if s.Resolver.Accept(match) {
		conf := float64(match.Confidence) / 100
		p.set(models.FieldPayloadSMILESStandardized, match.SMILES, match.Source, conf)
		if match.CID != "" {
			p.set(models.FieldPayloadCID, match.CID, match.Source, conf)
		}
		if match.InChIKey != "" {
			p.set(models.FieldPayloadInChIKey, match.InChIKey, match.Source, conf)
		}
		p.set(models.FieldIsProxyPayload, false, match.Source, conf)
		if match.CID != "" {
			p.evidence = append(p.evidence, compoundEvidence(match.CID, fmt.Sprintf("%s match for %q (confidence %d)", match.Source, name, match.Confidence)))
		}
		out.exact++
		return nil
	}

	proxy, ok := s.Dict.PayloadProxy(seed.PayloadExactName, seed.PayloadFamily)
	if !ok {
		return nil
	}
	const conf = 0.5
	p.set(models.FieldPayloadSMILESStandardized, proxy.SMILES, sourceProxyTable, conf)
	if proxy.CID != "" {
		p.set(models.FieldPayloadCID, proxy.CID, sourceProxyTable, conf)
	}
	p.set(models.FieldIsProxyPayload, true, sourceProxyTable, conf)
	p.set(models.FieldProxySmilesFlag, true, sourceProxyTable, conf)
	ref := compoundEvidence(proxy.CID, fmt.Sprintf("%s used as proxy for %s: %s", proxy.ProxyName, name, proxy.Note))
	ref.Type = models.EvidenceProxy
	p.proxyRefs = append(p.proxyRefs, ref)
	out.proxies++
	return nil
}

const (
	sourceProxyTable    = "proxy_table"
	sourceLinkerLibrary = "linker_library"
	sourceAntibodyTable = "antibody_table"
)

func compoundEvidence(cid, note string) models.EvidenceRef {
	ref := models.EvidenceRef{Type: "PUBCHEM", ID: cid, Note: note}
	if cid != "" {
		ref.URL = "https://pubchem.ncbi.nlm.nih.gov/compound/" + cid
	}
	return ref
}

func (s *ChemistryService) resolveLinker(p *seedPatch, linkers []models.LinkerReference, out *seedOutcome) {
	seed := p.seed
	if seed.LinkerSMILES != "" {
		return
	}
	if ref, conf, ok := matchLinker(linkers, seed.LinkerName, seed.LinkerFamily); ok {
		p.set(models.FieldLinkerSMILES, ref.SMILES, sourceLinkerLibrary, conf)
		p.set(models.FieldLinkerRefID, strconv.FormatUint(uint64(ref.ID), 10), sourceLinkerLibrary, conf)
		p.set(models.FieldIsProxyLinker, false, sourceLinkerLibrary, conf)
		if seed.LinkerName == "" {
			p.set(models.FieldLinkerName, ref.Name, sourceLinkerLibrary, conf)
		}
		out.exact++
		return
	}

	proxy := s.Dict.GenericLinkerProxy()
	const conf = 0.3
	p.set(models.FieldLinkerSMILES, proxy.SMILES, sourceProxyTable, conf)
	p.set(models.FieldLinkerRefID, proxy.RefID, sourceProxyTable, conf)
	p.set(models.FieldIsProxyLinker, true, sourceProxyTable, conf)
	p.proxyRefs = append(p.proxyRefs, models.EvidenceRef{
		Type: models.EvidenceProxy,
		ID:   proxy.RefID,
		Note: fmt.Sprintf("%s used as proxy linker: %s", proxy.ProxyName, proxy.Note),
	})
	out.proxies++
}

// matchLinker tries a fuzzy name match first, then an exact family match.
func matchLinker(lib []models.LinkerReference, name, family string) (models.LinkerReference, float64, bool) {
	if key := fuzzyKey(name); key != "" {
		for _, l := range lib {
			if lk := fuzzyKey(l.Name); lk == key {
				return l, 0.9, true
			}
		}
		for _, l := range lib {
			lk := fuzzyKey(l.Name)
			if len(lk) >= 3 && len(key) >= 3 && (strings.Contains(lk, key) || strings.Contains(key, lk)) {
				return l, 0.8, true
			}
		}
	}
	if f := strings.TrimSpace(family); f != "" {
		for _, l := range lib {
			if l.SMILES != "" && strings.EqualFold(l.Family, f) {
				return l, 0.7, true
			}
		}
	}
	return models.LinkerReference{}, 0, false
}

func fuzzyKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *ChemistryService) resolveAntibody(p *seedPatch, out *seedOutcome) {
	seed := p.seed
	if seed.AntibodyName == "" || seed.AntibodyCanonicalName != "" {
		return
	}
	ab, ok := s.Dict.AntibodyIdentity(seed.AntibodyName)
	if !ok {
		return
	}
	p.set(models.FieldAntibodyCanonicalName, ab.Canonical, sourceAntibodyTable, 1)
	p.set(models.FieldAntibodyFormat, ab.Format, sourceAntibodyTable, 1)
	if len(ab.Xrefs) > 0 {
		p.set(models.FieldAntibodyXrefs, ab.Xrefs, sourceAntibodyTable, 1)
	}
	p.set(models.FieldIsProxyAntibody, false, sourceAntibodyTable, 1)
	out.antibodies++
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

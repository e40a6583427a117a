package services

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"golden-seed/config"
	"golden-seed/dictionary"
	"golden-seed/providers"
)

// StructureMatch is a resolved payload structure with its confidence in [0,100].
type StructureMatch struct {
	Source     string `json:"source"`
	Query      string `json:"query"`
	Title      string `json:"title,omitempty"`
	CID        string `json:"cid,omitempty"`
	SMILES     string `json:"smiles"`
	InChIKey   string `json:"inchikey,omitempty"`
	Confidence int    `json:"confidence"`
	// Secondary marks a nomenclature parser result.
	Secondary  bool   `json:"secondary"`
}

// Parser results carrying a SMILES score at least this much.
const minParsedConfidence = 40

// StructureResolver looks names up in the compound database and falls back
// to the nomenclature parser. Hits and misses are cached.
type StructureResolver struct {
	Compounds     providers.CompoundService
	Parser        providers.NameParser
	Logger        *zap.Logger
	MinConfidence int

	compoundLimiter *rate.Limiter
	parserLimiter   *rate.Limiter
	cache           *lru.Cache[string, *StructureMatch]
}

func NewStructureResolver(cfg *config.Config, compounds providers.CompoundService, parser providers.NameParser, logger *zap.Logger) (*StructureResolver, error) {
	size := cfg.LookupCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, *StructureMatch](size)
	if err != nil {
		return nil, err
	}
	return &StructureResolver{
		Compounds:       compounds,
		Parser:          parser,
		Logger:          logger,
		MinConfidence:   cfg.MinStructureConfidence,
		compoundLimiter: newLimiter(cfg.PubChemRPS),
		parserLimiter:   newLimiter(cfg.OpsinRPS),
		cache:           cache,
	}, nil
}

// Resolve returns the best match for name, or nil when no source knows it.
// An error means the compound service failed and nothing was cached.
func (r *StructureResolver) Resolve(ctx context.Context, name string) (*StructureMatch, error) {
	key := dictionary.NormalizeCorpus(name)
	if key == "" {
		return nil, nil
	}
	if m, ok := r.cache.Get(key); ok {
		return m, nil
	}

	best, err := r.lookupCompound(ctx, name)
	if err != nil {
		return nil, err
	}
	if !r.Accept(best) && r.Parser != nil {
		parsed, err := r.lookupParser(ctx, name)
		if err != nil {
			// The parser is secondary: its outage degrades to a miss, which
			// is not cached so the next run asks again.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.Logger.Warn("Nomenclature parser failed, using compound result only", zap.String("name", name), zap.Error(err))
			return best, nil
		}
		if parsed != nil && (best == nil || r.Accept(parsed) || parsed.Confidence > best.Confidence) {
			best = parsed
		}
	}

	r.cache.Add(key, best)
	return best, nil
}

// Accept reports whether m is confident enough to be proposed as an exact
// structure. Parser results are usable below the primary threshold.
func (r *StructureResolver) Accept(m *StructureMatch) bool {
	if m == nil || m.SMILES == "" {
		return false
	}
	if m.Secondary {
		return m.Confidence >= min(r.MinConfidence, minParsedConfidence)
	}
	return m.Confidence >= r.MinConfidence
}

func (r *StructureResolver) lookupCompound(ctx context.Context, name string) (*StructureMatch, error) {
	if err := r.compoundLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	cids, err := r.Compounds.LookupCIDs(ctx, name)
	observeCall(r.Compounds.Name(), start, err)
	if err != nil {
		return nil, &UpstreamError{Service: r.Compounds.Name(), Err: err}
	}
	if len(cids) == 0 {
		return nil, nil
	}

	fetch := cids
	if len(fetch) > 5 {
		fetch = fetch[:5]
	}
	if err := r.compoundLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	start = time.Now()
	compounds, err := r.Compounds.Properties(ctx, fetch)
	observeCall(r.Compounds.Name(), start, err)
	if err != nil {
		return nil, &UpstreamError{Service: r.Compounds.Name(), Err: err}
	}

	var best *StructureMatch
	for _, c := range compounds {
		smiles := c.IsomericSMILES
		if smiles == "" {
			smiles = c.CanonicalSMILES
		}
		if smiles == "" {
			continue
		}
		m := &StructureMatch{
			Source:     r.Compounds.Name(),
			Query:      name,
			Title:      c.Title,
			CID:        c.CID,
			SMILES:     smiles,
			InChIKey:   c.InChIKey,
			Confidence: ScoreCompoundMatch(name, c, len(cids)),
		}
		if best == nil || m.Confidence > best.Confidence {
			best = m
		}
	}
	return best, nil
}

func (r *StructureResolver) lookupParser(ctx context.Context, name string) (*StructureMatch, error) {
	if err := r.parserLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	parsed, err := r.Parser.Parse(ctx, name)
	observeCall(r.Parser.Name(), start, err)
	if err != nil {
		return nil, &UpstreamError{Service: r.Parser.Name(), Err: err}
	}
	if parsed == nil || parsed.SMILES == "" {
		return nil, nil
	}
	return &StructureMatch{
		Source:     r.Parser.Name(),
		Query:      name,
		SMILES:     parsed.SMILES,
		InChIKey:   parsed.InChIKey,
		Confidence: ScoreParsedMatch(parsed),
		Secondary:  true,
	}, nil
}

// ScoreCompoundMatch scores a compound database hit within [0,100].
func ScoreCompoundMatch(query string, c providers.Compound, candidates int) int {
	score := 10
	if q := strings.TrimSpace(query); q != "" && strings.EqualFold(strings.TrimSpace(c.Title), q) {
		score += 40
	}
	if candidates == 1 {
		score += 30
	}
	if c.InChIKey != "" {
		score += 20
	}
	return min(score, 100)
}

// ScoreParsedMatch scores a nomenclature parser result within [0,60].
func ScoreParsedMatch(p *providers.ParsedStructure) int {
	if p == nil {
		return 0
	}
	score := 10
	if p.SMILES != "" {
		score += 30
	}
	if p.InChIKey != "" {
		score += 20
	}
	return score
}

package dictionary

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// TargetEntry maps a canonical gene symbol to the synonyms seen in free text.
type TargetEntry struct {
	Symbol   string   `yaml:"symbol"`
	Synonyms []string `yaml:"synonyms"`
}

// PayloadEntry describes a payload term group.
type PayloadEntry struct {
	Terms         []string `yaml:"terms"`
	Family        string   `yaml:"family"`
	ExactName     string   `yaml:"exact_name"`
	ImpliedLinker string   `yaml:"implied_linker"`
}

// LinkerEntry describes a linker term group.
type LinkerEntry struct {
	Terms  []string `yaml:"terms"`
	Family string   `yaml:"family"`
	Name   string   `yaml:"name"`
}

// ProxyEntry is a documented stand-in structure.
type ProxyEntry struct {
	Names     []string `yaml:"names"`
	ProxyName string   `yaml:"proxy_name"`
	CID       string   `yaml:"cid"`
	RefID     string   `yaml:"ref_id"`
	SMILES    string   `yaml:"smiles"`
	Note      string   `yaml:"note"`
}

// AntibodyEntry is a curated antibody identity.
type AntibodyEntry struct {
	Name      string            `yaml:"name"`
	Canonical string            `yaml:"canonical"`
	Format    string            `yaml:"format"`
	Xrefs     map[string]string `yaml:"xrefs"`
}

// Terms holds the vocabulary used by the registry query and the classifier.
type Terms struct {
	Conjugate   []string `yaml:"conjugate"`
	INNSuffixes []string `yaml:"inn_suffixes"`
	Negative    []string `yaml:"negative"`
}

type proxyTables struct {
	Payloads []ProxyEntry `yaml:"payloads"`
	Linker   ProxyEntry   `yaml:"linker"`
}

// Dictionaries bundles every lookup table. It is immutable after Load.
type Dictionaries struct {
	Targets        []TargetEntry
	Payloads       []PayloadEntry
	Linkers        []LinkerEntry
	PayloadProxies []ProxyEntry
	LinkerProxy    ProxyEntry
	Antibodies     []AntibodyEntry
	Terms          Terms

	matchers map[string]*regexp.Regexp
}

var (
	defaultOnce sync.Once
	defaultDict *Dictionaries
	defaultErr  error
)

// Default returns the embedded dictionaries, parsed once.
func Default() *Dictionaries {
	defaultOnce.Do(func() {
		defaultDict, defaultErr = Load()
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded dictionaries are invalid: %v", defaultErr))
	}
	return defaultDict
}

// Load parses the embedded YAML tables.
func Load() (*Dictionaries, error) {
	d := &Dictionaries{matchers: map[string]*regexp.Regexp{}}
	var proxies proxyTables

	files := []struct {
		name string
		out  any
	}{
		{"data/targets.yaml", &d.Targets},
		{"data/payloads.yaml", &d.Payloads},
		{"data/linkers.yaml", &d.Linkers},
		{"data/proxies.yaml", &proxies},
		{"data/antibodies.yaml", &d.Antibodies},
		{"data/terms.yaml", &d.Terms},
	}
	for _, f := range files {
		raw, err := dataFS.ReadFile(f.name)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, f.out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	d.PayloadProxies = proxies.Payloads
	d.LinkerProxy = proxies.Linker

	if err := d.validate(); err != nil {
		return nil, err
	}
	d.compile()
	return d, nil
}

func (d *Dictionaries) validate() error {
	if len(d.Targets) == 0 || len(d.Payloads) == 0 || len(d.Linkers) == 0 {
		return fmt.Errorf("target, payload and linker tables must not be empty")
	}
	for _, t := range d.Targets {
		if t.Symbol == "" || len(t.Synonyms) == 0 {
			return fmt.Errorf("target entry %q has no symbol or synonyms", t.Symbol)
		}
	}
	for _, p := range d.PayloadProxies {
		if p.ProxyName == "" || p.SMILES == "" || len(p.Names) == 0 {
			return fmt.Errorf("payload proxy %q is incomplete", p.ProxyName)
		}
	}
	if d.LinkerProxy.RefID == "" || d.LinkerProxy.SMILES == "" {
		return fmt.Errorf("linker proxy is incomplete")
	}
	if len(d.Terms.Conjugate) == 0 {
		return fmt.Errorf("conjugate terms must not be empty")
	}
	return nil
}

func (d *Dictionaries) compile() {
	add := func(terms []string) {
		for _, t := range terms {
			t = strings.ToLower(t)
			if _, ok := d.matchers[t]; !ok {
				d.matchers[t] = termPattern(t)
			}
		}
	}
	for _, t := range d.Targets {
		add(t.Synonyms)
	}
	for _, p := range d.Payloads {
		add(p.Terms)
	}
	for _, l := range d.Linkers {
		add(l.Terms)
	}
	add(d.Terms.Conjugate)
	add(d.Terms.INNSuffixes)
	add(d.Terms.Negative)
}

// termPattern matches t only when it is not glued to other letters or digits.
func termPattern(t string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^a-z0-9])` + regexp.QuoteMeta(t) + `(?:$|[^a-z0-9])`)
}

func (d *Dictionaries) contains(corpus, term string) bool {
	term = strings.ToLower(term)
	re, ok := d.matchers[term]
	if !ok {
		re = termPattern(term)
	}
	return re.MatchString(corpus)
}

func (d *Dictionaries) containsAny(corpus string, terms []string) (string, bool) {
	for _, t := range terms {
		if d.contains(corpus, t) {
			return t, true
		}
	}
	return "", false
}

// ScanTarget returns the first target synonym found in the lowercase corpus.
func (d *Dictionaries) ScanTarget(corpus string) (string, bool) {
	for _, t := range d.Targets {
		if term, ok := d.containsAny(corpus, t.Synonyms); ok {
			return term, true
		}
	}
	return "", false
}

// ScanPayload returns the first payload term found in the lowercase corpus.
func (d *Dictionaries) ScanPayload(corpus string) (string, bool) {
	for _, p := range d.Payloads {
		if term, ok := d.containsAny(corpus, p.Terms); ok {
			return term, true
		}
	}
	return "", false
}

// ScanLinker returns the first linker term found in the lowercase corpus.
func (d *Dictionaries) ScanLinker(corpus string) (string, bool) {
	for _, l := range d.Linkers {
		if term, ok := d.containsAny(corpus, l.Terms); ok {
			return term, true
		}
	}
	return "", false
}

// CanonicalTarget maps a synonym to its gene symbol, or uppercases the hint.
func (d *Dictionaries) CanonicalTarget(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return ""
	}
	for _, t := range d.Targets {
		if strings.EqualFold(t.Symbol, h) {
			return t.Symbol
		}
		for _, s := range t.Synonyms {
			if s == h {
				return t.Symbol
			}
		}
	}
	return strings.ToUpper(strings.TrimSpace(hint))
}

// PayloadFor returns the payload entry owning token.
func (d *Dictionaries) PayloadFor(token string) (PayloadEntry, bool) {
	tok := strings.ToLower(strings.TrimSpace(token))
	for _, p := range d.Payloads {
		if strings.EqualFold(p.ExactName, tok) {
			return p, true
		}
		for _, t := range p.Terms {
			if t == tok {
				return p, true
			}
		}
	}
	return PayloadEntry{}, false
}

// CanonicalPayload returns the family and exact name for a payload token.
// Unknown tokens are passed through as the family.
func (d *Dictionaries) CanonicalPayload(token string) (family, exact string) {
	if p, ok := d.PayloadFor(token); ok {
		return p.Family, p.ExactName
	}
	return strings.TrimSpace(token), ""
}

// LinkerFor returns the linker entry owning token.
func (d *Dictionaries) LinkerFor(token string) (LinkerEntry, bool) {
	tok := strings.ToLower(strings.TrimSpace(token))
	for _, l := range d.Linkers {
		if strings.EqualFold(l.Name, tok) {
			return l, true
		}
		for _, t := range l.Terms {
			if t == tok {
				return l, true
			}
		}
	}
	return LinkerEntry{}, false
}

// CanonicalLinker returns the family and display name for a linker token.
// Unknown tokens are passed through as the family.
func (d *Dictionaries) CanonicalLinker(token string) (family, name string) {
	if l, ok := d.LinkerFor(token); ok {
		return l.Family, l.Name
	}
	return strings.TrimSpace(token), ""
}

// PayloadProxy looks up a stand-in for the first name that has one.
func (d *Dictionaries) PayloadProxy(names ...string) (ProxyEntry, bool) {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		for _, p := range d.PayloadProxies {
			for _, pn := range p.Names {
				if pn == n {
					return p, true
				}
			}
		}
	}
	return ProxyEntry{}, false
}

// GenericLinkerProxy returns the non-specific cleavable linker stand-in.
func (d *Dictionaries) GenericLinkerProxy() ProxyEntry {
	return d.LinkerProxy
}

// AntibodyIdentity matches a free-text antibody name against the curated table.
// Both the bare INN stem ("trastuzumab") and longer names are accepted.
func (d *Dictionaries) AntibodyIdentity(name string) (AntibodyEntry, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return AntibodyEntry{}, false
	}
	for _, a := range d.Antibodies {
		if n == a.Name || strings.HasPrefix(n, a.Name+" ") || strings.HasPrefix(n, a.Name+"-") {
			return a, true
		}
	}
	return AntibodyEntry{}, false
}

// RegistryKeywords returns the ADC terminology OR-group used to query the registry.
func (d *Dictionaries) RegistryKeywords() []string {
	out := make([]string, 0, len(d.Terms.Conjugate)+len(d.Terms.INNSuffixes))
	out = append(out, d.Terms.Conjugate...)
	out = append(out, d.Terms.INNSuffixes...)
	return out
}

// HasConjugateTerm reports whether text names the ADC modality explicitly.
func (d *Dictionaries) HasConjugateTerm(text string) bool {
	_, ok := d.containsAny(NormalizeCorpus(text), d.Terms.Conjugate)
	return ok
}

var antibodyPattern = regexp.MustCompile(`\b([a-z]{3,}mab)\b`)

// ExtractAntibody returns the first "...mab" name in the lowercase corpus.
func ExtractAntibody(corpus string) string {
	m := antibodyPattern.FindStringSubmatch(corpus)
	if m == nil {
		return ""
	}
	return m[1]
}

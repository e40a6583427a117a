package providers

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Study is a registry record reduced to what the candidate collector reads.
type Study struct {
	NCTID         string         `json:"nct_id"`
	SecondaryIDs  []string       `json:"secondary_ids,omitempty"`
	BriefTitle    string         `json:"brief_title"`
	OfficialTitle string         `json:"official_title,omitempty"`
	BriefSummary  string         `json:"brief_summary,omitempty"`
	OverallStatus string         `json:"overall_status"`
	Phases        []string       `json:"phases,omitempty"`
	Conditions    []string       `json:"conditions,omitempty"`
	Interventions []Intervention `json:"interventions,omitempty"`
}

// Intervention is one arm intervention of a study.
type Intervention struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	OtherNames  []string `json:"other_names,omitempty"`
}

// StudyQuery describes a registry search.
type StudyQuery struct {
	Term     string
	Statuses []string
	Limit    int
}

// Registry is a read-only clinical trials search API.
type Registry interface {
	SearchStudies(ctx context.Context, q StudyQuery) ([]Study, error)
	Name() string
}

// Compound is a structure record from the compound database.
type Compound struct {
	CID             string `json:"cid"`
	Title           string `json:"title"`
	CanonicalSMILES string `json:"canonical_smiles"`
	IsomericSMILES  string `json:"isomeric_smiles"`
	InChIKey        string `json:"inchikey"`
}

// CompoundService resolves names to compound identifiers and structures.
// A name without matches yields an empty slice and no error.
type CompoundService interface {
	LookupCIDs(ctx context.Context, name string) ([]string, error)
	Properties(ctx context.Context, cids []string) ([]Compound, error)
	Name() string
}

// ParsedStructure is the output of a nomenclature parser.
type ParsedStructure struct {
	SMILES   string `json:"smiles"`
	InChIKey string `json:"inchikey"`
}

// NameParser converts systematic chemical names into structures.
// An unparseable name yields nil and no error.
type NameParser interface {
	Parse(ctx context.Context, name string) (*ParsedStructure, error)
	Name() string
}

// StatusError is returned when an upstream API answers with an unexpected status.
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// EndSpan records err on the span before ending it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

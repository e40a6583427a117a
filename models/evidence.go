package models

import "fmt"

// Evidence reference types.
const (
	EvidenceNCT   = "NCT"
	EvidenceProxy = "PROXY"
)

// EvidenceRef points at an external record backing a candidate or seed.
type EvidenceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	URL  string `json:"url,omitempty"`
	Note string `json:"note,omitempty"`
}

// TrialEvidence builds the canonical evidence entry for a registry trial ID.
func TrialEvidence(nctID string) EvidenceRef {
	return EvidenceRef{
		Type: EvidenceNCT,
		ID:   nctID,
		URL:  fmt.Sprintf("https://clinicaltrials.gov/study/%s", nctID),
	}
}

// MergeEvidence appends refs that are not yet present (by type and ID) and returns a new slice.
func MergeEvidence(existing []EvidenceRef, add ...EvidenceRef) []EvidenceRef {
	out := make([]EvidenceRef, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, ref := range append(append([]EvidenceRef{}, existing...), add...) {
		key := ref.Type + "|" + ref.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

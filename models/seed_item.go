package models

import (
	"time"
)

// Gate states of a seed.
const (
	GateNeedsReview = "needs_review"
	GateFinal       = "final"
)

// SeedItem is the curated, mutable working record for one ADC.
type SeedItem struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Version is bumped on every write and checked on update.
	Version int `json:"version" gorm:"not null;default:1"`

	SourceCandidateID string `json:"source_candidate_id" gorm:"type:uuid;uniqueIndex"`

	DrugName             string `json:"drug_name"`
	ResolvedTargetSymbol string `json:"resolved_target_symbol" gorm:"column:resolved_target_symbol;index"`

	AntibodyName          string            `json:"antibody_name"`
	AntibodyCanonicalName string            `json:"antibody_canonical_name"`
	AntibodyFormat        string            `json:"antibody_format"`
	AntibodyXrefs         map[string]string `json:"antibody_xrefs" gorm:"serializer:json;type:jsonb"`

	LinkerName   string `json:"linker_name"`
	LinkerFamily string `json:"linker_family"`
	LinkerSMILES string `json:"linker_smiles" gorm:"column:linker_smiles;type:text"`
	LinkerRefID  string `json:"linker_ref_id" gorm:"column:linker_ref_id"`

	PayloadFamily             string `json:"payload_family"`
	PayloadExactName          string `json:"payload_exact_name"`
	PayloadSMILESStandardized string `json:"payload_smiles_standardized" gorm:"column:payload_smiles_standardized;type:text"`
	PayloadCID                string `json:"payload_cid" gorm:"column:payload_cid"`
	PayloadInChIKey           string `json:"payload_inchikey" gorm:"column:payload_inchikey"`

	IsProxyPayload  bool          `json:"is_proxy_payload"`
	IsProxyLinker   bool          `json:"is_proxy_linker"`
	IsProxyAntibody bool          `json:"is_proxy_antibody"`
	ProxySmilesFlag bool          `json:"proxy_smiles_flag"`
	ProxyEvidence   []EvidenceRef `json:"proxy_evidence" gorm:"serializer:json;type:jsonb"`

	FieldVerified map[string]bool `json:"field_verified" gorm:"serializer:json;type:jsonb"`
	EvidenceRefs  []EvidenceRef   `json:"evidence_refs" gorm:"serializer:json;type:jsonb"`

	GateStatus  string     `json:"gate_status" gorm:"index;default:'needs_review'"`
	IsFinal     bool       `json:"is_final" gorm:"index"`
	FinalizedBy string     `json:"finalized_by,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

func (SeedItem) TableName() string { return "golden_seeds" }

// IsVerified reports whether the field is locked against automated writes.
func (s *SeedItem) IsVerified(field SeedField) bool {
	return s.FieldVerified[string(field)]
}

// IsManuallyVerified reports whether any field of the seed carries the verified lock.
func (s *SeedItem) IsManuallyVerified() bool {
	for _, v := range s.FieldVerified {
		if v {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s *SeedItem) Clone() *SeedItem {
	c := *s
	if s.AntibodyXrefs != nil {
		c.AntibodyXrefs = make(map[string]string, len(s.AntibodyXrefs))
		for k, v := range s.AntibodyXrefs {
			c.AntibodyXrefs[k] = v
		}
	}
	if s.FieldVerified != nil {
		c.FieldVerified = make(map[string]bool, len(s.FieldVerified))
		for k, v := range s.FieldVerified {
			c.FieldVerified[k] = v
		}
	}
	c.ProxyEvidence = append([]EvidenceRef(nil), s.ProxyEvidence...)
	c.EvidenceRefs = append([]EvidenceRef(nil), s.EvidenceRefs...)
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}

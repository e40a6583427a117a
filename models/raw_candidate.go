package models

import (
	"time"

	"gorm.io/datatypes"
)

// RawCandidate is a trial record harvested from the registry, keyed by its primary trial ID.
type RawCandidate struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Source         string        `json:"source" gorm:"index"`
	PrimaryTrialID string        `json:"primary_trial_id" gorm:"uniqueIndex;not null"`
	EvidenceRefs   []EvidenceRef `json:"evidence_refs" gorm:"serializer:json;type:jsonb"`

	DrugName            string         `json:"drug_name"`
	InterventionSummary string         `json:"intervention_summary" gorm:"type:text"`
	RawInterventions    datatypes.JSON `json:"raw_interventions" gorm:"type:jsonb"`
	Conditions          string         `json:"conditions,omitempty"`

	// Heuristic hints captured at harvest time; empty when nothing matched.
	TargetGuess   string `json:"target_guess,omitempty"`
	AntibodyGuess string `json:"antibody_guess,omitempty"`
	LinkerGuess   string `json:"linker_guess,omitempty"`
	PayloadGuess  string `json:"payload_guess,omitempty"`

	ClinicalPhase string  `json:"clinical_phase,omitempty"`
	OverallStatus string  `json:"overall_status,omitempty"`
	MatchScore    float64 `json:"match_score"`

	// Written only by the component extractor.
	ADCScore     float64    `json:"adc_score" gorm:"column:adc_score"`
	ADCClass     string     `json:"adc_class" gorm:"column:adc_class;index"`
	ClassifiedAt *time.Time `json:"classified_at,omitempty"`
}

func (RawCandidate) TableName() string { return "golden_candidates" }

// TrialIDs returns every NCT identifier in the evidence list, primary first.
func (c *RawCandidate) TrialIDs() []string {
	ids := []string{}
	if c.PrimaryTrialID != "" {
		ids = append(ids, c.PrimaryTrialID)
	}
	for _, ref := range c.EvidenceRefs {
		if ref.Type == EvidenceNCT && ref.ID != c.PrimaryTrialID {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// HasTrialID reports whether id is referenced by the candidate.
func (c *RawCandidate) HasTrialID(id string) bool {
	for _, tid := range c.TrialIDs() {
		if tid == id {
			return true
		}
	}
	return false
}

// IsClassified reports whether the extractor has stored an ADC label.
func (c *RawCandidate) IsClassified() bool {
	return c.ADCClass != ""
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// FinalSnapshot is the immutable promoted copy of a seed.
type FinalSnapshot struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SeedID   string         `json:"seed_id" gorm:"type:uuid;uniqueIndex;not null"`
	SeedData datatypes.JSON `json:"seed_data" gorm:"type:jsonb;not null"`

	DrugName             string `json:"drug_name"`
	ResolvedTargetSymbol string `json:"resolved_target_symbol"`
	PayloadSMILES        string `json:"payload_smiles" gorm:"column:payload_smiles;type:text"`

	TargetResolved bool `json:"target_resolved"`
	SmilesReady    bool `json:"smiles_ready"`
	EvidenceExists bool `json:"evidence_exists"`

	PromotedBy string    `json:"promoted_by"`
	PromotedAt time.Time `json:"promoted_at"`
}

func (FinalSnapshot) TableName() string { return "golden_final_snapshots" }

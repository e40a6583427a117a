package models

import "time"

// Proposal statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Queue types.
const (
	QueueNewSeedAudit     = "new_seed_audit"
	QueueEnrichmentUpdate = "enrichment_update"
	QueueVerifiedUpdate   = "verified_update_proposal"
	EntityTypeSeedItem    = "seed_item"
)

// ReviewProposal is a pending field-level change request against one seed.
type ReviewProposal struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	SeedID     string `json:"seed_id" gorm:"type:uuid;index;not null"`
	EntityType string `json:"entity_type" gorm:"default:'seed_item'"`
	QueueType  string `json:"queue_type" gorm:"index"`
	Source     string `json:"source"`

	Patch        Patch         `json:"patch" gorm:"serializer:json;type:jsonb"`
	Confidence   float64       `json:"confidence"`
	EvidenceRefs []EvidenceRef `json:"evidence_refs" gorm:"serializer:json;type:jsonb"`

	Status     string     `json:"status" gorm:"index;default:'pending'"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	Notes      string     `json:"notes,omitempty" gorm:"type:text"`
}

func (ReviewProposal) TableName() string { return "golden_review_queue" }

// IsPending reports whether the proposal still awaits a decision.
func (p *ReviewProposal) IsPending() bool {
	return p.Status == StatusPending
}

// QueueTypeFor routes an automated proposal by the seed's verification state.
func QueueTypeFor(seed *SeedItem) string {
	if seed != nil && seed.IsManuallyVerified() {
		return QueueVerifiedUpdate
	}
	return QueueEnrichmentUpdate
}

package repository

import (
	"context"
	"errors"
	"time"

	"golden-seed/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// CandidateFilter selects raw candidates for the extractor.
type CandidateFilter struct {
	IDs              []string
	UnclassifiedOnly bool
	Limit            int
}

// SeedFilter selects seeds.
type SeedFilter struct {
	IDs       []string
	FinalOnly bool
	Limit     int
	Offset    int
}

// ProposalFilter selects review proposals, newest first.
type ProposalFilter struct {
	Status    string
	SeedID    string
	QueueType string
	Limit     int
	Offset    int
}

// Store is the structured record store behind every pipeline stage.
type Store interface {
	// FindCandidateByTrialID returns the candidate whose evidence list references trialID.
	FindCandidateByTrialID(ctx context.Context, trialID string) (*models.RawCandidate, error)
	// InsertCandidate inserts c unless its primary trial ID is already stored.
	InsertCandidate(ctx context.Context, c *models.RawCandidate) (bool, error)
	UpdateCandidate(ctx context.Context, c *models.RawCandidate) error
	ListCandidates(ctx context.Context, f CandidateFilter) ([]models.RawCandidate, error)
	SetCandidateClassification(ctx context.Context, id string, score float64, label string, at time.Time) error

	GetSeed(ctx context.Context, id string) (*models.SeedItem, error)
	FindSeedByCandidate(ctx context.Context, candidateID string) (*models.SeedItem, error)
	// CreateSeed fails with ErrConflict when the source candidate already has a seed.
	CreateSeed(ctx context.Context, s *models.SeedItem) error
	// UpdateSeed writes s if the stored version equals s.Version and bumps it.
	UpdateSeed(ctx context.Context, s *models.SeedItem) error
	ListSeeds(ctx context.Context, f SeedFilter) ([]models.SeedItem, error)

	CreateProposal(ctx context.Context, p *models.ReviewProposal) error
	GetProposal(ctx context.Context, id string) (*models.ReviewProposal, error)
	// DecideProposal moves a pending proposal to p.Status. It fails with
	// ErrVersionConflict when the stored proposal is no longer pending.
	DecideProposal(ctx context.Context, p *models.ReviewProposal) error
	ListProposals(ctx context.Context, f ProposalFilter) ([]models.ReviewProposal, error)

	FindSnapshotBySeed(ctx context.Context, seedID string) (*models.FinalSnapshot, error)
	// CreateSnapshot fails with ErrConflict when the seed already has a snapshot.
	CreateSnapshot(ctx context.Context, s *models.FinalSnapshot) error
	ListSnapshots(ctx context.Context, limit, offset int) ([]models.FinalSnapshot, error)

	ListLinkers(ctx context.Context) ([]models.LinkerReference, error)
	// SeedLinkers inserts library entries whose name is not yet present.
	SeedLinkers(ctx context.Context, linkers []models.LinkerReference) (int, error)

	CreateValidationRun(ctx context.Context, r *models.ValidationRun) error
	ListValidationRuns(ctx context.Context, limit int) ([]models.ValidationRun, error)

	// WithTx runs fn against a transactional view of the store.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

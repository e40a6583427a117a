package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"golden-seed/models"
)

// GormStore persists the pipeline in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. Driver errors are translated so unique violations
// surface as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) *GormStore {
	db.Config.TranslateError = true
	return &GormStore{db: db}
}

// Migrate creates or updates every pipeline table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.RawCandidate{},
		&models.SeedItem{},
		&models.ReviewProposal{},
		&models.FinalSnapshot{},
		&models.LinkerReference{},
		&models.ValidationRun{},
	)
}

func wrap(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(ErrConflict, msg)
	}
	return errors.Wrap(err, msg)
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

var candidateMutableColumns = []string{
	"source", "evidence_refs", "drug_name", "intervention_summary", "raw_interventions", "conditions",
	"target_guess", "antibody_guess", "linker_guess", "payload_guess",
	"clinical_phase", "overall_status", "match_score", "updated_at",
}

func (s *GormStore) FindCandidateByTrialID(ctx context.Context, trialID string) (*models.RawCandidate, error) {
	contains, err := json.Marshal([]models.EvidenceRef{{Type: models.EvidenceNCT, ID: trialID}})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode evidence filter")
	}
	var c models.RawCandidate
	err = s.db.WithContext(ctx).
		Where("primary_trial_id = ?", trialID).
		Or("evidence_refs @> ?::jsonb", string(contains)).
		Order("created_at ASC").
		First(&c).Error
	if err != nil {
		return nil, wrap(err, "failed to find candidate by trial id")
	}
	return &c, nil
}

func (s *GormStore) InsertCandidate(ctx context.Context, c *models.RawCandidate) (bool, error) {
	ensureID(&c.ID)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "primary_trial_id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, wrap(res.Error, "failed to insert candidate")
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) UpdateCandidate(ctx context.Context, c *models.RawCandidate) error {
	c.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(c).Select(candidateMutableColumns).Updates(c)
	if res.Error != nil {
		return wrap(res.Error, "failed to update candidate")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListCandidates(ctx context.Context, f CandidateFilter) ([]models.RawCandidate, error) {
	q := s.db.WithContext(ctx).Model(&models.RawCandidate{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.UnclassifiedOnly {
		q = q.Where("adc_class IS NULL OR adc_class = ''")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []models.RawCandidate
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list candidates")
	}
	return out, nil
}

func (s *GormStore) SetCandidateClassification(ctx context.Context, id string, score float64, label string, at time.Time) error {
	// UpdateColumns leaves updated_at alone so staleness checks stay meaningful.
	res := s.db.WithContext(ctx).Model(&models.RawCandidate{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"adc_score": score, "adc_class": label, "classified_at": at})
	if res.Error != nil {
		return wrap(res.Error, "failed to store classification")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetSeed(ctx context.Context, id string) (*models.SeedItem, error) {
	var seed models.SeedItem
	if err := s.db.WithContext(ctx).First(&seed, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "failed to get seed")
	}
	return &seed, nil
}

func (s *GormStore) FindSeedByCandidate(ctx context.Context, candidateID string) (*models.SeedItem, error) {
	var seed models.SeedItem
	if err := s.db.WithContext(ctx).First(&seed, "source_candidate_id = ?", candidateID).Error; err != nil {
		return nil, wrap(err, "failed to find seed by candidate")
	}
	return &seed, nil
}

func (s *GormStore) CreateSeed(ctx context.Context, seed *models.SeedItem) error {
	ensureID(&seed.ID)
	if seed.Version == 0 {
		seed.Version = 1
	}
	if seed.GateStatus == "" {
		seed.GateStatus = models.GateNeedsReview
	}
	return wrap(s.db.WithContext(ctx).Create(seed).Error, "failed to create seed")
}

func (s *GormStore) UpdateSeed(ctx context.Context, seed *models.SeedItem) error {
	prev := seed.Version
	seed.Version = prev + 1
	seed.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(&models.SeedItem{}).
		Where("id = ? AND version = ?", seed.ID, prev).
		Select("*").Omit("id", "created_at").
		Updates(seed)
	if res.Error != nil {
		seed.Version = prev
		return wrap(res.Error, "failed to update seed")
	}
	if res.RowsAffected == 0 {
		seed.Version = prev
		if _, err := s.GetSeed(ctx, seed.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *GormStore) ListSeeds(ctx context.Context, f SeedFilter) ([]models.SeedItem, error) {
	q := s.db.WithContext(ctx).Model(&models.SeedItem{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.FinalOnly {
		q = q.Where("is_final = ?", true)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []models.SeedItem
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list seeds")
	}
	return out, nil
}

func (s *GormStore) CreateProposal(ctx context.Context, p *models.ReviewProposal) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.EntityType == "" {
		p.EntityType = models.EntityTypeSeedItem
	}
	return wrap(s.db.WithContext(ctx).Create(p).Error, "failed to create proposal")
}

func (s *GormStore) GetProposal(ctx context.Context, id string) (*models.ReviewProposal, error) {
	var p models.ReviewProposal
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "failed to get proposal")
	}
	return &p, nil
}

func (s *GormStore) DecideProposal(ctx context.Context, p *models.ReviewProposal) error {
	res := s.db.WithContext(ctx).Model(&models.ReviewProposal{}).
		Where("id = ? AND status = ?", p.ID, models.StatusPending).
		Updates(map[string]any{
			"status":      p.Status,
			"reviewed_by": p.ReviewedBy,
			"reviewed_at": p.ReviewedAt,
			"notes":       p.Notes,
		})
	if res.Error != nil {
		return wrap(res.Error, "failed to decide proposal")
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *GormStore) ListProposals(ctx context.Context, f ProposalFilter) ([]models.ReviewProposal, error) {
	q := s.db.WithContext(ctx).Model(&models.ReviewProposal{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SeedID != "" {
		q = q.Where("seed_id = ?", f.SeedID)
	}
	if f.QueueType != "" {
		q = q.Where("queue_type = ?", f.QueueType)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []models.ReviewProposal
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list proposals")
	}
	return out, nil
}

func (s *GormStore) FindSnapshotBySeed(ctx context.Context, seedID string) (*models.FinalSnapshot, error) {
	var snap models.FinalSnapshot
	if err := s.db.WithContext(ctx).First(&snap, "seed_id = ?", seedID).Error; err != nil {
		return nil, wrap(err, "failed to find snapshot")
	}
	return &snap, nil
}

func (s *GormStore) CreateSnapshot(ctx context.Context, snap *models.FinalSnapshot) error {
	ensureID(&snap.ID)
	return wrap(s.db.WithContext(ctx).Create(snap).Error, "failed to create snapshot")
}

func (s *GormStore) ListSnapshots(ctx context.Context, limit, offset int) ([]models.FinalSnapshot, error) {
	q := s.db.WithContext(ctx).Model(&models.FinalSnapshot{})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []models.FinalSnapshot
	if err := q.Order("promoted_at ASC").Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list snapshots")
	}
	return out, nil
}

func (s *GormStore) ListLinkers(ctx context.Context) ([]models.LinkerReference, error) {
	var out []models.LinkerReference
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list linkers")
	}
	return out, nil
}

func (s *GormStore) SeedLinkers(ctx context.Context, linkers []models.LinkerReference) (int, error) {
	if len(linkers) == 0 {
		return 0, nil
	}
	rows := make([]models.LinkerReference, len(linkers))
	for i, l := range linkers {
		l.ID = 0
		rows[i] = l
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, wrap(res.Error, "failed to seed linker library")
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) CreateValidationRun(ctx context.Context, r *models.ValidationRun) error {
	ensureID(&r.ID)
	if r.RunAt.IsZero() {
		r.RunAt = time.Now()
	}
	return wrap(s.db.WithContext(ctx).Create(r).Error, "failed to create validation run")
}

func (s *GormStore) ListValidationRuns(ctx context.Context, limit int) ([]models.ValidationRun, error) {
	q := s.db.WithContext(ctx).Model(&models.ValidationRun{}).Order("run_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.ValidationRun
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap(err, "failed to list validation runs")
	}
	// chronological order for trend lines
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

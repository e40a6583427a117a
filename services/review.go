package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"golden-seed/models"
	"golden-seed/repository"
)

// Optimistic seed writes are retried this many times before giving up.
const maxApproveAttempts = 3

// ApproveResult reports which patch fields reached the seed.
type ApproveResult struct {
	ProposalID    string   `json:"proposal_id"`
	SeedID        string   `json:"seed_id"`
	UpdatedFields []string `json:"updated_fields"`
	SkippedFields []string `json:"skipped_fields"`
}

// ReviewService is the only writer of curated seed fields.
type ReviewService struct {
	Store  repository.Store
	Logger *zap.Logger
	now    func() time.Time
}

func NewReviewService(store repository.Store, logger *zap.Logger) *ReviewService {
	return &ReviewService{Store: store, Logger: logger, now: time.Now}
}

// Approve applies a pending proposal to its seed. Verified fields and
// metadata keys are never written. Finalized seeds are frozen, so their
// proposals stay pending until rejected.
func (s *ReviewService) Approve(ctx context.Context, id, approver, comment string) (*ApproveResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidInput("review_id is required")
	}
	var res *ApproveResult
	var err error
	for attempt := 1; attempt <= maxApproveAttempts; attempt++ {
		res, err = s.approveOnce(ctx, id, approver, comment)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
		s.Logger.Warn("Seed changed during approval, retrying",
			zap.String("proposal_id", id), zap.Int("attempt", attempt))
	}
	if err != nil {
		countItem(stageReview, "approve_failed")
		return nil, err
	}
	countItem(stageReview, "approved")
	s.Logger.Info("Proposal approved",
		zap.String("proposal_id", res.ProposalID),
		zap.String("seed_id", res.SeedID),
		zap.Strings("updated_fields", res.UpdatedFields),
		zap.Strings("skipped_fields", res.SkippedFields))
	return res, nil
}

func (s *ReviewService) approveOnce(ctx context.Context, id, approver, comment string) (*ApproveResult, error) {
	var res *ApproveResult
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		p, err := s.pending(ctx, tx, id)
		if err != nil {
			return err
		}
		seed, err := tx.GetSeed(ctx, p.SeedID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSeedNotFound
		}
		if err != nil {
			return err
		}
		if seed.IsFinal {
			return ErrSeedFinal
		}

		res = &ApproveResult{ProposalID: p.ID, SeedID: seed.ID, UpdatedFields: []string{}, SkippedFields: []string{}}
		for _, ch := range p.Patch {
			if ch.Field.IsMetadata() {
				continue
			}
			if seed.IsVerified(ch.Field) {
				res.SkippedFields = append(res.SkippedFields, string(ch.Field))
				continue
			}
			if err := seed.Set(ch.Field, ch.New); err != nil {
				return invalidInput("proposal %s: %v", p.ID, err)
			}
			res.UpdatedFields = append(res.UpdatedFields, string(ch.Field))
		}
		// stamped even when every field was skipped
		if err := tx.UpdateSeed(ctx, seed); err != nil {
			return err
		}

		notes := comment
		if len(res.SkippedFields) > 0 {
			notes = strings.TrimSpace(fmt.Sprintf("%s [skipped verified fields: %s]", notes, strings.Join(res.SkippedFields, ", ")))
		}
		return s.decide(ctx, tx, p, models.StatusApproved, approver, notes)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reject closes a pending proposal without touching its seed.
func (s *ReviewService) Reject(ctx context.Context, id, rejecter, comment string) (*models.ReviewProposal, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidInput("review_id is required")
	}
	var out *models.ReviewProposal
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		p, err := s.pending(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.decide(ctx, tx, p, models.StatusRejected, rejecter, comment); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		countItem(stageReview, "reject_failed")
		return nil, err
	}
	countItem(stageReview, "rejected")
	s.Logger.Info("Proposal rejected", zap.String("proposal_id", out.ID), zap.String("seed_id", out.SeedID))
	return out, nil
}

func (s *ReviewService) pending(ctx context.Context, tx repository.Store, id string) (*models.ReviewProposal, error) {
	p, err := tx.GetProposal(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsPending() {
		return nil, ErrAlreadyDecided
	}
	return p, nil
}

func (s *ReviewService) decide(ctx context.Context, tx repository.Store, p *models.ReviewProposal, status, by, notes string) error {
	at := s.now()
	p.Status = status
	p.ReviewedBy = by
	p.ReviewedAt = &at
	p.Notes = notes
	err := tx.DecideProposal(ctx, p)
	if errors.Is(err, repository.ErrVersionConflict) {
		// someone else decided it between our read and write
		return ErrAlreadyDecided
	}
	return err
}

// SetVerified locks or unlocks fields of a seed against automated writes.
func (s *ReviewService) SetVerified(ctx context.Context, seedID string, fields []string, verified bool, by string) (*models.SeedItem, error) {
	if len(fields) == 0 {
		return nil, invalidInput("fields is required")
	}
	for _, f := range fields {
		if sf := models.SeedField(f); !sf.Valid() || sf.IsMetadata() {
			return nil, invalidInput("unknown seed field %q", f)
		}
	}

	var out *models.SeedItem
	var err error
	for attempt := 1; attempt <= maxApproveAttempts; attempt++ {
		out, err = s.setVerifiedOnce(ctx, seedID, fields, verified)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Seed verification changed",
		zap.String("seed_id", seedID),
		zap.Strings("fields", fields),
		zap.Bool("verified", verified),
		zap.String("by", by))
	return out, nil
}

func (s *ReviewService) setVerifiedOnce(ctx context.Context, seedID string, fields []string, verified bool) (*models.SeedItem, error) {
	seed, err := s.GetSeed(ctx, seedID)
	if err != nil {
		return nil, err
	}
	if seed.IsFinal {
		return nil, ErrSeedFinal
	}
	if seed.FieldVerified == nil {
		seed.FieldVerified = map[string]bool{}
	}
	for _, f := range fields {
		if verified {
			seed.FieldVerified[f] = true
		} else {
			delete(seed.FieldVerified, f)
		}
	}
	if err := s.Store.UpdateSeed(ctx, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// List returns proposals of the review queue, newest first.
func (s *ReviewService) List(ctx context.Context, f repository.ProposalFilter) ([]models.ReviewProposal, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.Store.ListProposals(ctx, f)
}

func (s *ReviewService) GetSeed(ctx context.Context, id string) (*models.SeedItem, error) {
	seed, err := s.Store.GetSeed(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSeedNotFound
	}
	return seed, err
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"golden-seed/models"
	"golden-seed/repository"
)

// Gate names reported in promotion failures.
const (
	GateTargetResolved = "target_resolved"
	GateSmilesReady    = "smiles_ready"
	GateEvidenceExists = "evidence_exists"
)

// Archiver copies promoted snapshots to durable storage.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, snap *models.FinalSnapshot) (string, error)
}

// PromoteResult aggregates one promotion call.
type PromoteResult struct {
	Promoted  int               `json:"promoted"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures"`
	Snapshots map[string]string `json:"snapshots"`
}

// GateReport holds the three promotion gates of a seed.
type GateReport struct {
	TargetResolved bool `json:"target_resolved"`
	SmilesReady    bool `json:"smiles_ready"`
	EvidenceExists bool `json:"evidence_exists"`
}

// EvaluateGates computes the gates for seed.
func EvaluateGates(seed *models.SeedItem) GateReport {
	return GateReport{
		TargetResolved: strings.TrimSpace(seed.ResolvedTargetSymbol) != "",
		SmilesReady:    strings.TrimSpace(seed.PayloadSMILESStandardized) != "" || seed.IsProxyPayload || seed.ProxySmilesFlag,
		EvidenceExists: len(seed.EvidenceRefs) > 0,
	}
}

// Missing lists the failed gates in fixed order.
func (g GateReport) Missing() []string {
	var out []string
	if !g.TargetResolved {
		out = append(out, GateTargetResolved)
	}
	if !g.SmilesReady {
		out = append(out, GateSmilesReady)
	}
	if !g.EvidenceExists {
		out = append(out, GateEvidenceExists)
	}
	return out
}

// PromotionService freezes seeds that pass every gate into final snapshots.
type PromotionService struct {
	Store    repository.Store
	Archiver Archiver
	Logger   *zap.Logger
	now      func() time.Time
}

// NewPromotionService accepts a nil archiver when archiving is disabled.
func NewPromotionService(store repository.Store, archiver Archiver, logger *zap.Logger) *PromotionService {
	return &PromotionService{Store: store, Archiver: archiver, Logger: logger, now: time.Now}
}

// Promote evaluates every seed independently. Store failures are reported
// per seed; only a cancelled context aborts the batch.
func (s *PromotionService) Promote(ctx context.Context, seedIDs []string, promotedBy string) (*PromoteResult, error) {
	ids := uniqueIDs(seedIDs)
	if len(ids) == 0 {
		return nil, invalidInput("seed_ids is required")
	}
	res := &PromoteResult{Failures: map[string]string{}, Snapshots: map[string]string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, reason, err := s.promoteOne(ctx, id, promotedBy)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.Logger.Error("Promotion failed", zap.String("seed_id", id), zap.Error(err))
			reason = "Store error: " + err.Error()
		}
		if reason != "" {
			res.Failed++
			res.Failures[id] = reason
			countItem(stagePromote, "failed")
			continue
		}
		res.Promoted++
		res.Snapshots[id] = snap.ID
		countItem(stagePromote, "promoted")
		s.archive(ctx, snap)
	}
	s.Logger.Info("Promotion completed",
		zap.Int("promoted", res.Promoted),
		zap.Int("failed", res.Failed),
		zap.String("promoted_by", promotedBy))
	return res, nil
}

// promoteOne returns a failure reason for item-level conditions and an
// error only when the store itself fails.
func (s *PromotionService) promoteOne(ctx context.Context, id, promotedBy string) (*models.FinalSnapshot, string, error) {
	var snap *models.FinalSnapshot
	var reason string
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		seed, err := tx.GetSeed(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			reason = "Seed not found"
			return nil
		}
		if err != nil {
			return err
		}
		gates := EvaluateGates(seed)
		if missing := gates.Missing(); len(missing) > 0 {
			reason = "Gate failed: " + strings.Join(missing, ", ")
			return nil
		}
		if _, err := tx.FindSnapshotBySeed(ctx, id); err == nil {
			reason = "Already promoted"
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		data, err := json.Marshal(seed)
		if err != nil {
			return err
		}
		snap = &models.FinalSnapshot{
			SeedID:               seed.ID,
			SeedData:             datatypes.JSON(data),
			DrugName:             seed.DrugName,
			ResolvedTargetSymbol: seed.ResolvedTargetSymbol,
			PayloadSMILES:        seed.PayloadSMILESStandardized,
			TargetResolved:       gates.TargetResolved,
			SmilesReady:          gates.SmilesReady,
			EvidenceExists:       gates.EvidenceExists,
			PromotedBy:           promotedBy,
			PromotedAt:           now,
		}
		if err := tx.CreateSnapshot(ctx, snap); err != nil {
			return err
		}
		seed.IsFinal = true
		seed.GateStatus = models.GateFinal
		seed.FinalizedBy = promotedBy
		seed.FinalizedAt = &now
		return tx.UpdateSeed(ctx, seed)
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		// unique index on seed_id: a concurrent call promoted it first
		return nil, "Already promoted", nil
	case errors.Is(err, repository.ErrVersionConflict):
		return nil, "Seed changed during promotion", nil
	case err != nil:
		return nil, "", err
	}
	return snap, reason, nil
}

func (s *PromotionService) archive(ctx context.Context, snap *models.FinalSnapshot) {
	if s.Archiver == nil {
		return
	}
	link, err := s.Archiver.ArchiveSnapshot(ctx, snap)
	if err != nil {
		s.Logger.Error("Snapshot archive failed", zap.String("seed_id", snap.SeedID), zap.Error(err))
		return
	}
	s.Logger.Info("Snapshot archived", zap.String("seed_id", snap.SeedID), zap.String("link", link))
}

package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"golden-seed/models"
	"golden-seed/repository"
)

// TrendPoint is one validation run projected for charting.
type TrendPoint struct {
	RunAt         time.Time `json:"run_at"`
	GoldenSetSize int       `json:"golden_set_size"`
	PassRate      float64   `json:"pass_rate"`
	MeanScore     float64   `json:"mean_score"`
}

// Trend summarises the most recent validation runs in chronological order.
type Trend struct {
	Runs             []TrendPoint `json:"runs"`
	Count            int          `json:"count"`
	LatestPassRate   float64      `json:"latest_pass_rate"`
	PassRateDelta    float64      `json:"pass_rate_delta"`
	FinalSnapshots   int          `json:"final_snapshots"`
	PendingProposals int          `json:"pending_proposals"`
}

// TrendService records and projects validation runs.
type TrendService struct {
	Store  repository.Store
	Logger *zap.Logger
}

func NewTrendService(store repository.Store, logger *zap.Logger) *TrendService {
	return &TrendService{Store: store, Logger: logger}
}

// Record stores one validation run.
func (s *TrendService) Record(ctx context.Context, run *models.ValidationRun) error {
	if run.GoldenSetSize < 0 {
		return invalidInput("golden_set_size must not be negative")
	}
	if run.PassRate < 0 || run.PassRate > 1 {
		return invalidInput("pass_rate must be within [0,1]")
	}
	if err := s.Store.CreateValidationRun(ctx, run); err != nil {
		return err
	}
	s.Logger.Info("Validation run recorded",
		zap.String("run_id", run.ID),
		zap.Int("golden_set_size", run.GoldenSetSize),
		zap.Float64("pass_rate", run.PassRate))
	return nil
}

// Trend projects the last limit runs.
func (s *TrendService) Trend(ctx context.Context, limit int) (*Trend, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	runs, err := s.Store.ListValidationRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	t := &Trend{Runs: make([]TrendPoint, 0, len(runs)), Count: len(runs)}
	for _, r := range runs {
		t.Runs = append(t.Runs, TrendPoint{
			RunAt:         r.RunAt,
			GoldenSetSize: r.GoldenSetSize,
			PassRate:      r.PassRate,
			MeanScore:     r.MeanScore,
		})
	}
	if n := len(runs); n > 0 {
		t.LatestPassRate = runs[n-1].PassRate
		if n > 1 {
			t.PassRateDelta = runs[n-1].PassRate - runs[n-2].PassRate
		}
	}

	snaps, err := s.Store.ListSnapshots(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	t.FinalSnapshots = len(snaps)
	pending, err := s.Store.ListProposals(ctx, repository.ProposalFilter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	t.PendingProposals = len(pending)
	return t, nil
}

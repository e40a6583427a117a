package models

import "time"

// ValidationRun records one scoring validation run against the golden set.
type ValidationRun struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	RunAt         time.Time `json:"run_at" gorm:"index"`
	GoldenSetSize int       `json:"golden_set_size"`
	PassRate      float64   `json:"pass_rate"`
	MeanScore     float64   `json:"mean_score"`
	Notes         string    `json:"notes,omitempty" gorm:"type:text"`
}

func (ValidationRun) TableName() string { return "golden_validation_runs" }

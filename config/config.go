package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Score policies for the ADC-likelihood classification of raw candidates.
const (
	ScorePolicyReuse     = "reuse"
	ScorePolicyRecompute = "recompute"
	ScorePolicyStale     = "stale"
)

// Config holds every configuration value read from the environment.
type Config struct {
	StoreBackend string `envconfig:"STORE_BACKEND" default:"postgres"`

	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"golden"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Trials registry (ClinicalTrials.gov v2)
	CTGovBaseURL string  `envconfig:"CTGOV_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`
	CTGovRPS     float64 `envconfig:"CTGOV_RPS" default:"3"`

	// Compound structure service and nomenclature parser
	PubChemBaseURL string  `envconfig:"PUBCHEM_BASE_URL" default:"https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
	PubChemRPS     float64 `envconfig:"PUBCHEM_RPS" default:"5"`
	OpsinBaseURL   string  `envconfig:"OPSIN_BASE_URL" default:"https://opsin.ch.cam.ac.uk/opsin"`
	OpsinRPS       float64 `envconfig:"OPSIN_RPS" default:"2"`

	ExternalTimeout        time.Duration `envconfig:"EXTERNAL_TIMEOUT" default:"20s"`
	ChemistryWorkers       int           `envconfig:"CHEMISTRY_WORKERS" default:"3"`
	MinStructureConfidence int           `envconfig:"MIN_STRUCTURE_CONFIDENCE" default:"70"`
	LookupCacheSize        int           `envconfig:"LOOKUP_CACHE_SIZE" default:"512"`

	ScorePolicy         string        `envconfig:"SCORE_POLICY" default:"stale"`
	ScoreMaxAge         time.Duration `envconfig:"SCORE_MAX_AGE" default:"720h"`
	ExtractDefaultLimit int           `envconfig:"EXTRACT_DEFAULT_LIMIT" default:"50"`

	// Scheduled candidate collection, disabled when CRON_SCHEDULE is empty.
	CronSchedule   string `envconfig:"CRON_SCHEDULE"`
	CronIndication string `envconfig:"CRON_INDICATION" default:"breast cancer"`
	CronLimit      int    `envconfig:"CRON_LIMIT" default:"100"`

	// Final snapshot archive, disabled when SNAPSHOT_S3_BUCKET is empty.
	SnapshotS3Key    string `envconfig:"SNAPSHOT_S3_KEY"`
	SnapshotS3Secret string `envconfig:"SNAPSHOT_S3_SECRET"`
	SnapshotS3URL    string `envconfig:"SNAPSHOT_S3_URL"`
	SnapshotS3Region string `envconfig:"SNAPSHOT_S3_REGION" default:"eu-central-1"`
	SnapshotS3Bucket string `envconfig:"SNAPSHOT_S3_BUCKET"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled reports whether promoted snapshots are copied to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c.SnapshotS3Bucket != ""
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DBHost == "" || c.DBUser == "" {
			return fmt.Errorf("postgres backend requires DB_HOST and DB_USER")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.ScorePolicy {
	case ScorePolicyReuse, ScorePolicyRecompute, ScorePolicyStale:
	default:
		return fmt.Errorf("unknown SCORE_POLICY %q", c.ScorePolicy)
	}
	if c.MinStructureConfidence < 0 || c.MinStructureConfidence > 100 {
		return fmt.Errorf("MIN_STRUCTURE_CONFIDENCE must be within [0,100], got %d", c.MinStructureConfidence)
	}
	if c.ChemistryWorkers <= 0 {
		return fmt.Errorf("CHEMISTRY_WORKERS must be positive")
	}
	if c.ArchiveEnabled() && (c.SnapshotS3URL == "" || c.SnapshotS3Key == "") {
		return fmt.Errorf("SNAPSHOT_S3_BUCKET requires SNAPSHOT_S3_URL and SNAPSHOT_S3_KEY")
	}
	return nil
}

// Load reads the configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.ScorePolicy = strings.ToLower(strings.TrimSpace(c.ScorePolicy))
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

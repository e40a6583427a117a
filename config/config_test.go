package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, ScorePolicyStale, cfg.ScorePolicy)
	assert.Equal(t, 20*time.Second, cfg.ExternalTimeout)
	assert.Equal(t, 70, cfg.MinStructureConfidence)
	assert.Equal(t, "https://clinicaltrials.gov/api/v2", cfg.CTGovBaseURL)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			StoreBackend:           "memory",
			ScorePolicy:            ScorePolicyReuse,
			MinStructureConfidence: 70,
			ChemistryWorkers:       2,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid memory config", mutate: func(c *Config) {}},
		{name: "postgres without host", mutate: func(c *Config) { c.StoreBackend = "postgres" }, wantErr: "DB_HOST"},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "mongo" }, wantErr: "STORE_BACKEND"},
		{name: "unknown policy", mutate: func(c *Config) { c.ScorePolicy = "sometimes" }, wantErr: "SCORE_POLICY"},
		{name: "confidence out of range", mutate: func(c *Config) { c.MinStructureConfidence = 101 }, wantErr: "MIN_STRUCTURE_CONFIDENCE"},
		{name: "no workers", mutate: func(c *Config) { c.ChemistryWorkers = 0 }, wantErr: "CHEMISTRY_WORKERS"},
		{name: "bucket without endpoint", mutate: func(c *Config) { c.SnapshotS3Bucket = "golden" }, wantErr: "SNAPSHOT_S3_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN(t *testing.T) {
	c := Config{DBHost: "db", DBUser: "golden", DBPassword: "secret", DBName: "golden", DBPort: 5433}
	assert.Equal(t, "host=db user=golden password=secret dbname=golden port=5433 sslmode=disable", c.DSN())
}

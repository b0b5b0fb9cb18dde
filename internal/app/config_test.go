package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
	"github.com/yungbote/surveytrends-backend/internal/services/gate"
)

const partitionsYAML = `
catalog: catalog
default_dataset: tracking
partitions:
  - name: catalog
    driver: sqlite
    dsn: "file:catalog?mode=memory"
  - name: p2024
    driver: sqlite
    dsn: "file:${SURVEY_TEST_DIR}/p2024.db"
datasets:
  tracking: [catalog, p2024]
resolver:
  bonus_keywords:
    aprova: 3
  suggestion_limit: 3
aggregation:
  weight_pattern: "(?i)^fator"
  demographic_fields: [UF, SEXO]
`

func TestLoadConfig_FromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partitions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(partitionsYAML), 0o600))

	t.Setenv("SURVEY_TEST_DIR", dir)
	t.Setenv("PARTITIONS_FILE", path)
	t.Setenv("AGGREGATE_QUERY_TIMEOUT", "45")
	t.Setenv("PARTITION_RETRY_ATTEMPTS", "5")
	t.Setenv("AGGREGATE_STRICT_PARTITIONS", "false")
	t.Setenv("BACKEND_MODE", "active")
	t.Setenv("BACKEND_FALLBACK", "true")

	cfg, err := LoadConfig(logger.NewTest(t))
	require.NoError(t, err)

	require.Len(t, cfg.Partitions.Partitions, 2)
	assert.Equal(t, "file:"+dir+"/p2024.db", cfg.Partitions.Partitions[1].DSN)
	assert.Equal(t, []string{"catalog", "p2024"}, cfg.Partitions.Datasets["tracking"])

	assert.Equal(t, map[string]float64{"aprova": 3}, cfg.Resolver.BonusKeywords)
	assert.Equal(t, 3, cfg.Resolver.SuggestionLimit)
	assert.Equal(t, "(?i)^fator", cfg.Aggregate.WeightPattern)
	assert.Equal(t, []string{"UF", "SEXO"}, cfg.Aggregate.DemographicFields)

	assert.Equal(t, 45*time.Second, cfg.Aggregate.Options.QueryTimeout)
	assert.Equal(t, 5, cfg.Aggregate.Options.RetryAttempts)
	assert.False(t, cfg.Aggregate.Options.Strict)
	assert.Equal(t, gate.Policy{Mode: gate.ModeActive, Fallback: true}, cfg.Policy)
}

func TestLoadConfig_SinglePartitionFallback(t *testing.T) {
	t.Setenv("PARTITIONS_FILE", "")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")

	cfg, err := LoadConfig(logger.NewTest(t))
	require.NoError(t, err)
	require.Len(t, cfg.Partitions.Partitions, 1)
	assert.Equal(t, "default", cfg.Partitions.Catalog)
	assert.Equal(t, "file::memory:", cfg.Partitions.Partitions[0].DSN)
	assert.True(t, cfg.Aggregate.Options.Strict)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadConfig_RejectsUnknownMode(t *testing.T) {
	t.Setenv("PARTITIONS_FILE", "")
	t.Setenv("BACKEND_MODE", "both")
	_, err := LoadConfig(logger.NewTest(t))
	assert.Error(t, err)
}

func TestLoadConfig_BadPartitionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partitions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog: missing\npartitions: []\n"), 0o600))
	t.Setenv("PARTITIONS_FILE", path)
	_, err := LoadConfig(logger.NewTest(t))
	assert.Error(t, err)
}

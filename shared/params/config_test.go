package params_test

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"testing"

	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestMainnetConfig_PoolPercentagesSumToOne(t *testing.T) {
	c := params.MainnetConfig()
	sum := c.Rewards.BasePoolPercentage + c.Rewards.PerformancePoolPercentage
	assert.Equal(t, true, math.Abs(1.0-sum) < 1e-9)
}

func TestCopy_IsIndependent(t *testing.T) {
	c := params.MainnetConfig()
	cp := c.Copy()
	cp.Assignment.MaxBatches = 1
	cp.AllowedOrigins = append(cp.AllowedOrigins, "http://localhost:8080")
	assert.Equal(t, 100, c.Assignment.MaxBatches)
	assert.Equal(t, 0, len(c.AllowedOrigins))
}

func TestOverrideCoordinatorConfig(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	c := params.CoordinatorConfig().Copy()
	c.Assignment.BlocksPerBatch = 3
	params.OverrideCoordinatorConfig(c)
	assert.Equal(t, 3, params.CoordinatorConfig().Assignment.BlocksPerBatch)
}

func TestTotalBlocks(t *testing.T) {
	c := params.AssignmentConfig{BlocksPerBatch: 10, MaxBatches: 100}
	assert.Equal(t, 1000, c.TotalBlocks())
}

func TestLoadConfigFile(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
PORT: 8091
STORE_BACKEND: "memory"
ASSIGNMENT:
  BLOCKS_PER_BATCH: 4
  MAX_BATCHES: 5
  LOOKBACK_DAYS: 7
  CANARY_PERCENTAGE: 0.2
`)
	require.NoError(t, ioutil.WriteFile(path, content, 0644))
	require.NoError(t, params.LoadConfigFile(path))

	c := params.CoordinatorConfig()
	assert.Equal(t, 8091, c.HTTPPort)
	assert.Equal(t, params.StoreBackendMemory, c.StoreBackend)
	assert.Equal(t, 20, c.Assignment.TotalBlocks())
	// Untouched keys keep mainnet defaults.
	assert.Equal(t, 10000.0, c.Rewards.DailyEmissions)
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	err := params.LoadConfigFile("/nonexistent/config.yaml")
	assert.ErrorContains(t, "could not read config file", err)
}

// Package params defines the coordinator network configuration: the daily
// throughput and lottery knobs, the reward model, authentication windows and
// the operational settings the node boots with.
package params

import (
	"time"

	"github.com/mohae/deepcopy"
)

// AssignmentConfig holds the daily lottery parameters.
type AssignmentConfig struct {
	BlocksPerBatch   int     `yaml:"BLOCKS_PER_BATCH" json:"blocksPerBatch"`
	MaxBatches       int     `yaml:"MAX_BATCHES" json:"maxBatches"`
	LookbackDays     int     `yaml:"LOOKBACK_DAYS" json:"lookbackDays"`
	CanaryPercentage float64 `yaml:"CANARY_PERCENTAGE" json:"canaryPercentage"`
}

// TotalBlocks is the fixed per-day throughput budget.
func (c *AssignmentConfig) TotalBlocks() int {
	return c.BlocksPerBatch * c.MaxBatches
}

// RewardConfig holds the two-pool reward model parameters. The struct is
// embedded verbatim in every RewardDistribution, so its json form is part
// of the committed payloads.
type RewardConfig struct {
	DailyEmissions             float64 `yaml:"DAILY_EMISSIONS" json:"dailyEmissions"`
	BasePoolPercentage         float64 `yaml:"BASE_POOL_PERCENTAGE" json:"basePoolPercentage"`
	PerformancePoolPercentage  float64 `yaml:"PERFORMANCE_POOL_PERCENTAGE" json:"performancePoolPercentage"`
	PerformanceLookbackDays    int     `yaml:"PERFORMANCE_LOOKBACK_DAYS" json:"performanceLookbackDays"`
	MinBlocksForActive         int     `yaml:"MIN_BLOCKS_FOR_ACTIVE" json:"minBlocksForActive"`
	ReputationFloor            float64 `yaml:"REPUTATION_FLOOR" json:"reputationFloor"`
	CanaryFailureCooldownHours int     `yaml:"CANARY_FAILURE_COOLDOWN_HOURS" json:"canaryFailureCooldownHours"`
	CanaryPenalty              float64 `yaml:"CANARY_PENALTY" json:"canaryPenalty"`
}

// NetworkConfig defines the complete configuration of a coordinator node.
type NetworkConfig struct {
	ConfigName string `yaml:"CONFIG_NAME"`

	// HTTP boundary.
	HTTPHost       string        `yaml:"HOST"`
	HTTPPort       int           `yaml:"PORT"`
	AdminKey       string        `yaml:"ADMIN_KEY"`
	AllowedOrigins []string      `yaml:"ALLOWED_ORIGINS"`
	AuthClockSkew  time.Duration `yaml:"AUTH_CLOCK_SKEW"`

	// Persistence.
	StoreBackend string `yaml:"STORE_BACKEND"`
	DBPath       string `yaml:"DB_PATH"`

	// Scheduler.
	SchedulerEnabled      bool   `yaml:"SCHEDULER_ENABLED"`
	SchedulerStartCron    string `yaml:"SCHEDULER_START_CRON"`
	SchedulerFinalizeCron string `yaml:"SCHEDULER_FINALIZE_CRON"`
	SchedulerTimezone     string `yaml:"SCHEDULER_TIMEZONE"`

	Assignment AssignmentConfig `yaml:"ASSIGNMENT"`
	Rewards    RewardConfig     `yaml:"REWARDS"`
}

// Store backend names accepted by STORE_BACKEND.
const (
	StoreBackendMemory  = "memory"
	StoreBackendDurable = "durable"
)

var coordinatorConfig = MainnetConfig()

// CoordinatorConfig retrieves the coordinator node config.
func CoordinatorConfig() *NetworkConfig {
	return coordinatorConfig
}

// OverrideCoordinatorConfig by replacing the config. The preferred pattern
// is to call CoordinatorConfig(), change the specific parameters, and then
// call OverrideCoordinatorConfig(c).
func OverrideCoordinatorConfig(c *NetworkConfig) {
	coordinatorConfig = c
}

// Copy returns a deep copy of the config object.
func (c *NetworkConfig) Copy() *NetworkConfig {
	config := deepcopy.Copy(*c).(NetworkConfig)
	return &config
}

// SetupTestConfigCleanup preserves the global config and restores it when
// the test and all its subtests complete.
func SetupTestConfigCleanup(t testingTB) {
	prev := coordinatorConfig
	t.Cleanup(func() {
		coordinatorConfig = prev
	})
}

// testingTB is the subset of testing.TB needed for config cleanup, declared
// here so the package does not import testing.
type testingTB interface {
	Cleanup(func())
}

package params

import "time"

// MainnetConfig returns the default coordinator configuration.
func MainnetConfig() *NetworkConfig {
	return mainnetNetworkConfig.Copy()
}

var mainnetNetworkConfig = &NetworkConfig{
	ConfigName: "mainnet",

	HTTPHost:      "127.0.0.1",
	HTTPPort:      3000,
	AuthClockSkew: 30 * time.Second,

	StoreBackend: StoreBackendDurable,

	SchedulerEnabled:      false,
	SchedulerStartCron:    "5 0 * * *",
	SchedulerFinalizeCron: "55 23 * * *",
	SchedulerTimezone:     "UTC",

	Assignment: AssignmentConfig{
		BlocksPerBatch:   10,
		MaxBatches:       100,
		LookbackDays:     7,
		CanaryPercentage: 0.05,
	},
	Rewards: RewardConfig{
		DailyEmissions:             10000,
		BasePoolPercentage:         0.3,
		PerformancePoolPercentage:  0.7,
		PerformanceLookbackDays:    7,
		MinBlocksForActive:         1,
		ReputationFloor:            0.3,
		CanaryFailureCooldownHours: 24,
		CanaryPenalty:              0.2,
	},
}

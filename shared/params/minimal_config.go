package params

// MinimalConfig returns a small-throughput configuration suitable for
// tests and local development: a handful of blocks per day, aggressive
// canary coverage and the memory store backend.
func MinimalConfig() *NetworkConfig {
	c := MainnetConfig()
	c.ConfigName = "minimal"
	c.StoreBackend = StoreBackendMemory
	c.Assignment = AssignmentConfig{
		BlocksPerBatch:   2,
		MaxBatches:       3,
		LookbackDays:     7,
		CanaryPercentage: 0.1,
	}
	c.Rewards.DailyEmissions = 100
	return c
}

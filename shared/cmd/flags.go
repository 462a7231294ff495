// Package cmd defines the command line flags shared by the coordinator binaries.
package cmd

import (
	"github.com/urfave/cli/v2"
)

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// DataDirFlag defines a path on disk.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the database and snapshots",
		Value: DefaultDataDir(),
	}
	// EnableTracingFlag defines a flag to enable request tracing.
	EnableTracingFlag = &cli.BoolFlag{
		Name:  "enable-tracing",
		Usage: "Enable request tracing.",
	}
	// TracingProcessNameFlag defines a flag to specify a process name.
	TracingProcessNameFlag = &cli.StringFlag{
		Name:  "tracing-process-name",
		Usage: "The name to apply to tracing tag \"process_name\"",
	}
	// TracingEndpointFlag flag defines the http endpoint for serving traces to Jaeger.
	TracingEndpointFlag = &cli.StringFlag{
		Name:  "tracing-endpoint",
		Usage: "Tracing endpoint defines where coordinator traces are exposed to Jaeger.",
		Value: "http://127.0.0.1:14268/api/traces",
	}
	// TraceSampleFractionFlag defines a flag to indicate what fraction of
	// requests are sampled for tracing.
	TraceSampleFractionFlag = &cli.Float64Flag{
		Name:  "trace-sample-fraction",
		Usage: "Indicate what fraction of requests are sampled for tracing.",
		Value: 0.20,
	}
	// DisableMonitoringFlag defines a flag to disable the metrics collection.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable monitoring service.",
	}
	// MonitoringHostFlag defines the host used by the prometheus service.
	MonitoringHostFlag = &cli.StringFlag{
		Name:  "monitoring-host",
		Usage: "Host used for listening and responding metrics for prometheus.",
		Value: "127.0.0.1",
	}
	// MonitoringPortFlag defines the port used by the prometheus service.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listening and respond metrics for prometheus.",
		Value: 8080,
	}
	// HTTPHostFlag defines the address for the coordinator API.
	HTTPHostFlag = &cli.StringFlag{
		Name:    "http-host",
		Usage:   "Host on which the coordinator HTTP API listens.",
		Value:   "127.0.0.1",
		EnvVars: []string{"HOST"},
	}
	// HTTPPortFlag defines the port for the coordinator API.
	HTTPPortFlag = &cli.IntFlag{
		Name:    "http-port",
		Usage:   "Port on which the coordinator HTTP API listens.",
		Value:   3000,
		EnvVars: []string{"PORT"},
	}
	// HTTPCorsDomainFlag defines the origins allowed to reach the API across origins.
	HTTPCorsDomainFlag = &cli.StringFlag{
		Name:  "http-cors-domain",
		Usage: "Comma separated list of domains from which to accept cross origin requests.",
		Value: "*",
	}
	// AdminKeyFlag guards the operator endpoints. Admin endpoints are refused
	// entirely when the key is unset.
	AdminKeyFlag = &cli.StringFlag{
		Name:    "admin-key",
		Usage:   "Shared secret required by the day lifecycle and snapshot endpoints.",
		EnvVars: []string{"ADMIN_KEY"},
	}
	// StoreBackendFlag selects the persistence backend.
	StoreBackendFlag = &cli.StringFlag{
		Name:    "store-backend",
		Usage:   "Persistence backend to use. Supported values are: memory, durable.",
		Value:   "durable",
		EnvVars: []string{"STORE_BACKEND"},
	}
	// DBPathFlag overrides the database file location.
	DBPathFlag = &cli.StringFlag{
		Name:    "db-path",
		Usage:   "Path of the database file. Defaults to coordinator.db inside the data directory.",
		EnvVars: []string{"DB_PATH"},
	}
	// SchedulerEnabledFlag turns the cron driven day lifecycle on.
	SchedulerEnabledFlag = &cli.BoolFlag{
		Name:    "scheduler",
		Usage:   "Run the cron scheduler that starts and finalizes days automatically.",
		EnvVars: []string{"SCHEDULER_ENABLED"},
	}
	// SchedulerStartCronFlag defines when a new day is started.
	SchedulerStartCronFlag = &cli.StringFlag{
		Name:    "scheduler-start-cron",
		Usage:   "Cron expression for starting the day.",
		Value:   "5 0 * * *",
		EnvVars: []string{"SCHEDULER_START_CRON"},
	}
	// SchedulerFinalizeCronFlag defines when the active day is finalized.
	SchedulerFinalizeCronFlag = &cli.StringFlag{
		Name:    "scheduler-finalize-cron",
		Usage:   "Cron expression for finalizing the day.",
		Value:   "55 23 * * *",
		EnvVars: []string{"SCHEDULER_FINALIZE_CRON"},
	}
	// SchedulerTimezoneFlag defines the location the cron expressions are evaluated in.
	SchedulerTimezoneFlag = &cli.StringFlag{
		Name:    "scheduler-timezone",
		Usage:   "IANA timezone name for the scheduler.",
		Value:   "UTC",
		EnvVars: []string{"SCHEDULER_TIMEZONE"},
	}
	// ForceClearDB removes any previously stored data at the data directory.
	ForceClearDB = &cli.BoolFlag{
		Name:  "force-clear-db",
		Usage: "Clear any previously stored data at the data directory",
	}
	// ClearDB prompts user to see if they want to remove any previously stored data at the data directory.
	ClearDB = &cli.BoolFlag{
		Name:  "clear-db",
		Usage: "Prompt for clearing any previously stored data at the data directory",
	}
	// LogFormat specifies the log output format.
	LogFormat = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd.",
		Value: "text",
	}
	// MaxGoroutines specifies the maximum amount of goroutines tolerated, before a status check fails.
	MaxGoroutines = &cli.IntFlag{
		Name:  "max-goroutines",
		Usage: "Specifies the upper limit of goroutines running before a status check fails",
		Value: 5000,
	}
	// LogFileName specifies the log output file name.
	LogFileName = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Specify log file name, relative or absolute",
	}
	// ConfigFileFlag specifies the filepath to load flag values.
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config-file",
		Usage: "The filepath to a yaml file with flag values",
	}
	// NetworkConfigFileFlag specifies the filepath to load network config values.
	NetworkConfigFileFlag = &cli.StringFlag{
		Name:  "network-config-file",
		Usage: "The path to a YAML file with network config values",
	}
	// MinimalConfigFlag enables the minimal network config.
	MinimalConfigFlag = &cli.BoolFlag{
		Name:  "minimal-config",
		Usage: "Use minimal config with smaller day throughput, suitable for local testing",
	}
	// RPCMaxPageSizeFlag defines the maximum numbers of entries returned per page in paginated responses.
	RPCMaxPageSizeFlag = &cli.IntFlag{
		Name:  "rpc-max-page-size",
		Usage: "Max number of items returned per page in paginated API responses",
	}
)

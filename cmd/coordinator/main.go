// Package main defines the AI4ALL coordinator server. The coordinator runs
// the network's daily epoch: it locks the contributor roster, hands out
// deterministic work assignments, accepts authenticated block submissions
// and finalizes a cryptographically committed reward distribution.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ai4all-network/coordinator/coordinator/node"
	"github.com/ai4all-network/coordinator/shared/cmd"
	"github.com/ai4all-network/coordinator/shared/logutil"
	"github.com/ai4all-network/coordinator/shared/version"
	joonix "github.com/joonix/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var log = logrus.WithField("prefix", "main")

func startCoordinator(cliCtx *cli.Context) error {
	coordinator, err := node.New(cliCtx)
	if err != nil {
		return err
	}
	coordinator.Start()
	return nil
}

var appFlags = []cli.Flag{
	cmd.MinimalConfigFlag,
	cmd.RPCMaxPageSizeFlag,
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.EnableTracingFlag,
	cmd.TracingProcessNameFlag,
	cmd.TracingEndpointFlag,
	cmd.TraceSampleFractionFlag,
	cmd.DisableMonitoringFlag,
	cmd.MonitoringHostFlag,
	cmd.MonitoringPortFlag,
	cmd.MaxGoroutines,
	cmd.LogFileName,
	cmd.LogFormat,
	cmd.ClearDB,
	cmd.ForceClearDB,
	cmd.ConfigFileFlag,
	cmd.NetworkConfigFileFlag,
	cmd.HTTPHostFlag,
	cmd.HTTPPortFlag,
	cmd.HTTPCorsDomainFlag,
	cmd.AdminKeyFlag,
	cmd.StoreBackendFlag,
	cmd.DBPathFlag,
	cmd.SchedulerEnabledFlag,
	cmd.SchedulerStartCronFlag,
	cmd.SchedulerFinalizeCronFlag,
	cmd.SchedulerTimezoneFlag,
}

func init() {
	appFlags = cmd.WrapFlags(appFlags)
}

func main() {
	app := cli.App{}
	app.Name = "coordinator"
	app.Usage = "launches an AI4ALL coordinator server that runs the network's daily work and reward epoch."
	app.Version = version.GetVersion()
	app.Flags = appFlags
	app.Action = startCoordinator
	app.Commands = []*cli.Command{
		replayCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		// Load any flags from file, if specified.
		if ctx.IsSet(cmd.ConfigFileFlag.Name) {
			if err := altsrc.InitInputSourceWithContext(
				appFlags,
				altsrc.NewYamlSourceFromFlagFunc(
					cmd.ConfigFileFlag.Name))(ctx); err != nil {
				return err
			}
		}

		verbosity := ctx.String(cmd.VerbosityFlag.Name)
		level, err := logrus.ParseLevel(verbosity)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		format := ctx.String(cmd.LogFormat.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			// If persistent log files are written - we disable the log messages coloring because
			// the colors are ANSI codes and seen as Gibberish in the log files.
			formatter.DisableColors = ctx.String(cmd.LogFileName.Name) != ""
			logrus.SetFormatter(formatter)
		case "fluentd":
			f := joonix.NewFormatter()
			logrus.SetFormatter(f)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		logFileName := ctx.String(cmd.LogFileName.Name)
		if logFileName != "" {
			if err := logutil.ConfigurePersistentLogging(logFileName, format); err != nil {
				log.WithError(err).Error("Failed to configuring logging to disk.")
			}
		}

		runtime.GOMAXPROCS(runtime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

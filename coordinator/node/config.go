package node

import (
	"time"

	"github.com/ai4all-network/coordinator/async"
	"github.com/ai4all-network/coordinator/shared/cmd"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
)

var debounceFileChangesInterval = time.Second

// configureNetwork resolves the active network config from, in increasing
// precedence: the built-in defaults, the minimal config, the network config
// file and explicit command line or environment overrides.
func configureNetwork(cliCtx *cli.Context) error {
	if cliCtx.Bool(cmd.MinimalConfigFlag.Name) {
		params.OverrideCoordinatorConfig(params.MinimalConfig())
	}
	if cliCtx.IsSet(cmd.NetworkConfigFileFlag.Name) {
		if err := params.LoadConfigFile(cliCtx.String(cmd.NetworkConfigFileFlag.Name)); err != nil {
			return err
		}
	}
	applyFlagOverrides(cliCtx)
	return nil
}

// applyFlagOverrides copies explicitly set command line values on top of the
// active network config. Flag defaults do not count as explicit, so values
// from a config file survive unless the operator overrides them.
func applyFlagOverrides(cliCtx *cli.Context) {
	c := params.CoordinatorConfig().Copy()
	if cliCtx.IsSet(cmd.HTTPHostFlag.Name) {
		c.HTTPHost = cliCtx.String(cmd.HTTPHostFlag.Name)
	}
	if cliCtx.IsSet(cmd.HTTPPortFlag.Name) {
		c.HTTPPort = cliCtx.Int(cmd.HTTPPortFlag.Name)
	}
	if cliCtx.IsSet(cmd.HTTPCorsDomainFlag.Name) {
		c.AllowedOrigins = splitCommaSeparated(cliCtx.String(cmd.HTTPCorsDomainFlag.Name))
	}
	if cliCtx.IsSet(cmd.AdminKeyFlag.Name) {
		c.AdminKey = cliCtx.String(cmd.AdminKeyFlag.Name)
	}
	if cliCtx.IsSet(cmd.StoreBackendFlag.Name) {
		c.StoreBackend = cliCtx.String(cmd.StoreBackendFlag.Name)
	}
	if cliCtx.IsSet(cmd.DBPathFlag.Name) {
		c.DBPath = cliCtx.String(cmd.DBPathFlag.Name)
	}
	if cliCtx.IsSet(cmd.SchedulerEnabledFlag.Name) {
		c.SchedulerEnabled = cliCtx.Bool(cmd.SchedulerEnabledFlag.Name)
	}
	if cliCtx.IsSet(cmd.SchedulerStartCronFlag.Name) {
		c.SchedulerStartCron = cliCtx.String(cmd.SchedulerStartCronFlag.Name)
	}
	if cliCtx.IsSet(cmd.SchedulerFinalizeCronFlag.Name) {
		c.SchedulerFinalizeCron = cliCtx.String(cmd.SchedulerFinalizeCronFlag.Name)
	}
	if cliCtx.IsSet(cmd.SchedulerTimezoneFlag.Name) {
		c.SchedulerTimezone = cliCtx.String(cmd.SchedulerTimezoneFlag.Name)
	}
	params.OverrideCoordinatorConfig(c)
}

// Listen for changes to the network config file so lottery and reward
// parameters can be tuned without a restart. This uses the fsnotify library
// to listen for file-system changes and debounces these events to ensure we
// can handle bursts of events fired in a short time-span.
func (n *CoordinatorNode) watchNetworkConfigFile(cliCtx *cli.Context) {
	if !cliCtx.IsSet(cmd.NetworkConfigFileFlag.Name) {
		return
	}
	configFile := cliCtx.String(cmd.NetworkConfigFileFlag.Name)
	go func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.WithError(err).Error("Could not initialize file watcher")
			return
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				log.WithError(err).Error("Could not close file watcher")
			}
		}()
		if err := watcher.Add(configFile); err != nil {
			log.WithError(err).Errorf("Could not add file %s to file watcher", configFile)
			return
		}
		fileChangesChan := make(chan interface{}, 100)
		defer close(fileChangesChan)

		go async.Debounce(n.ctx, debounceFileChangesInterval, fileChangesChan, func(event interface{}) {
			ev, ok := event.(fsnotify.Event)
			if !ok {
				log.Errorf("Type %T is not a valid file system event", event)
				return
			}
			if err := params.LoadConfigFile(ev.Name); err != nil {
				log.WithError(err).Errorf("Could not reload network config at path: %s", ev.Name)
				return
			}
			applyFlagOverrides(cliCtx)
			log.WithField("config-file", ev.Name).Info(
				"Applied updated network config. Server address and store backend changes take effect on restart",
			)
		})
		for {
			select {
			case event := <-watcher.Events:
				// If the file was modified, we reload the network config from
				// the new contents and re-apply the explicit flag overrides.
				if event.Op&fsnotify.Write == fsnotify.Write {
					fileChangesChan <- event
				}
			case err := <-watcher.Errors:
				log.WithError(err).Errorf("Could not watch for file changes for: %s", configFile)
			case <-n.ctx.Done():
				return
			}
		}
	}()
}

// Package node is the main process for the AI4ALL coordinator. It handles
// the lifecycle of the entire system and registers services to a service
// registry.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/ai4all-network/coordinator/coordinator/db"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/rpc"
	"github.com/ai4all-network/coordinator/coordinator/scheduler"
	"github.com/ai4all-network/coordinator/shared"
	"github.com/ai4all-network/coordinator/shared/cmd"
	"github.com/ai4all-network/coordinator/shared/event"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/prometheus"
	"github.com/ai4all-network/coordinator/shared/tracing"
	"github.com/ai4all-network/coordinator/shared/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// CoordinatorNode defines a struct that handles the services running the
// AI4ALL coordinator. It handles the lifecycle of the entire system and
// registers services to a service registry.
type CoordinatorNode struct {
	cliCtx    *cli.Context
	ctx       context.Context
	cancel    context.CancelFunc
	services  *shared.ServiceRegistry
	lock      sync.RWMutex
	stop      chan struct{} // Channel to wait for termination notifications.
	db        db.Database
	eventFeed *event.Feed[events.Notification]
}

// New creates a new node instance, sets up configuration options, and registers
// every required service to the node.
func New(cliCtx *cli.Context) (*CoordinatorNode, error) {
	serviceName := "coordinator"
	if name := cliCtx.String(cmd.TracingProcessNameFlag.Name); name != "" {
		serviceName = name
	}
	if err := tracing.Setup(
		serviceName,
		cliCtx.String(cmd.TracingEndpointFlag.Name),
		cliCtx.Float64(cmd.TraceSampleFractionFlag.Name),
		cliCtx.Bool(cmd.EnableTracingFlag.Name),
	); err != nil {
		return nil, err
	}

	cmd.ConfigureCoordinator(cliCtx)

	if err := configureNetwork(cliCtx); err != nil {
		return nil, err
	}

	registry := shared.NewServiceRegistry()

	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &CoordinatorNode{
		cliCtx:    cliCtx,
		ctx:       ctx,
		cancel:    cancel,
		services:  registry,
		stop:      make(chan struct{}),
		eventFeed: new(event.Feed[events.Notification]),
	}

	if err := node.startDB(cliCtx); err != nil {
		return nil, err
	}

	node.watchNetworkConfigFile(cliCtx)

	if err := node.registerDayService(); err != nil {
		return nil, err
	}

	if params.CoordinatorConfig().SchedulerEnabled {
		if err := node.registerSchedulerService(); err != nil {
			return nil, err
		}
	}

	if err := node.registerRPCService(); err != nil {
		return nil, err
	}

	if !cliCtx.Bool(cmd.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(cliCtx); err != nil {
			return nil, err
		}
	}

	return node, nil
}

// EventFeed delivers every committed event batch to its subscribers.
func (n *CoordinatorNode) EventFeed() *event.Feed[events.Notification] {
	return n.eventFeed
}

// Start the CoordinatorNode and kicks off every registered service.
func (n *CoordinatorNode) Start() {
	n.lock.Lock()

	log.WithFields(logrus.Fields{
		"version": version.GetVersion(),
	}).Info("Starting coordinator node")

	n.services.StartAll()

	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the coordinator node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *CoordinatorNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping coordinator node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
	}
	n.cancel()
	close(n.stop)
}

func (n *CoordinatorNode) startDB(cliCtx *cli.Context) error {
	netCfg := params.CoordinatorConfig()
	backend := netCfg.StoreBackend
	dbPath := netCfg.DBPath
	if dbPath == "" {
		dbPath = cliCtx.String(cmd.DataDirFlag.Name)
	}
	if dbPath == "" && backend == params.StoreBackendDurable {
		return errors.New("could not determine your system's HOME path, please specify a --datadir you wish to use for the coordinator data")
	}
	clearDB := cliCtx.Bool(cmd.ClearDB.Name)
	forceClearDB := cliCtx.Bool(cmd.ForceClearDB.Name)

	log.WithFields(logrus.Fields{
		"backend":       backend,
		"database-path": dbPath,
	}).Info("Checking DB")

	d, err := db.NewDB(backend, dbPath)
	if err != nil {
		return err
	}
	clearDBConfirmed := false
	if clearDB && !forceClearDB {
		actionText := "This will delete your coordinator database stored in your data directory. " +
			"The event log, day snapshots and balances will be removed - do you want to proceed? (Y/N)"
		deniedText := "Database will not be deleted. No changes have been made."
		clearDBConfirmed, err = cmd.ConfirmAction(actionText, deniedText)
		if err != nil {
			return err
		}
	}
	if clearDBConfirmed || forceClearDB {
		log.Warning("Removing database")
		if err := d.ClearDB(); err != nil {
			return errors.Wrap(err, "could not clear database")
		}
		d, err = db.NewDB(backend, dbPath)
		if err != nil {
			return errors.Wrap(err, "could not create new database")
		}
	}

	n.db = d
	return nil
}

func (n *CoordinatorNode) registerDayService() error {
	svc, err := day.NewService(n.ctx, &day.Config{
		Database:    n.db,
		EventFeed:   n.eventFeed,
		MaxRoutines: n.cliCtx.Int(cmd.MaxGoroutines.Name),
	})
	if err != nil {
		return errors.Wrap(err, "could not register day service")
	}
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerSchedulerService() error {
	var daySvc *day.Service
	if err := n.services.FetchService(&daySvc); err != nil {
		return err
	}
	netCfg := params.CoordinatorConfig()
	svc, err := scheduler.NewService(n.ctx, &scheduler.Config{
		Lifecycle:    daySvc,
		StartSpec:    netCfg.SchedulerStartCron,
		FinalizeSpec: netCfg.SchedulerFinalizeCron,
		Timezone:     netCfg.SchedulerTimezone,
	})
	if err != nil {
		return errors.Wrap(err, "could not register scheduler service")
	}
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerRPCService() error {
	var daySvc *day.Service
	if err := n.services.FetchService(&daySvc); err != nil {
		return err
	}
	netCfg := params.CoordinatorConfig()
	if netCfg.AdminKey == "" {
		log.Warn("Running without an admin key, the day lifecycle endpoints will refuse every request")
	}
	svc, err := rpc.NewService(n.ctx, &rpc.Config{
		Host:           netCfg.HTTPHost,
		Port:           netCfg.HTTPPort,
		AdminKey:       netCfg.AdminKey,
		AllowedOrigins: netCfg.AllowedOrigins,
		Database:       n.db,
		Day:            daySvc,
		EventFeed:      n.eventFeed,
	})
	if err != nil {
		return errors.Wrap(err, "could not register RPC service")
	}
	return n.services.RegisterService(svc)
}

func (n *CoordinatorNode) registerPrometheusService(cliCtx *cli.Context) error {
	service := prometheus.NewService(
		fmt.Sprintf("%s:%d", cliCtx.String(cmd.MonitoringHostFlag.Name), cliCtx.Int(cmd.MonitoringPortFlag.Name)),
		n.services,
	)
	hook := prometheus.NewLogrusCollector()
	logrus.AddHook(hook)
	return n.services.RegisterService(service)
}

func splitCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

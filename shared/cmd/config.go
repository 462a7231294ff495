package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "cmd")

// defaultMaxPageSize bounds paginated API responses unless overridden.
const defaultMaxPageSize = 500

// Flags is a struct to represent which shared settings the coordinator uses at runtime.
type Flags struct {
	MinimalConfig  bool // MinimalConfig uses the test friendly network parameters.
	MaxRPCPageSize int  // MaxRPCPageSize caps page sizes in paginated API requests.
}

var sharedConfig *Flags

// Get retrieves the shared cmd config.
func Get() *Flags {
	if sharedConfig == nil {
		return &Flags{MaxRPCPageSize: defaultMaxPageSize}
	}
	return sharedConfig
}

// Init sets the global config equal to the config that is passed in.
func Init(c *Flags) {
	sharedConfig = c
}

// InitWithReset sets the global config and returns a function that is used to
// reset the configuration.
func InitWithReset(c *Flags) func() {
	resetFunc := func() {
		Init(nil)
	}
	Init(c)
	return resetFunc
}

// ConfigureCoordinator sets the global config based on what flags are enabled
// for the coordinator node.
func ConfigureCoordinator(ctx *cli.Context) {
	complete := Get()
	if ctx.Bool(MinimalConfigFlag.Name) {
		log.Warn("Using minimal config")
		complete.MinimalConfig = true
	}
	if ctx.IsSet(RPCMaxPageSizeFlag.Name) {
		complete.MaxRPCPageSize = ctx.Int(RPCMaxPageSizeFlag.Name)
		log.Warnf("Starting with max API page size of %d", complete.MaxRPCPageSize)
	}
	Init(complete)
}

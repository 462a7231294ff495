package cmd

import (
	"flag"
	"testing"

	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/urfave/cli/v2"
)

func TestOverrideConfig(t *testing.T) {
	cfg := &Flags{
		MinimalConfig: true,
	}
	reset := InitWithReset(cfg)
	defer reset()
	c := Get()
	assert.Equal(t, true, c.MinimalConfig)
}

func TestDefaultConfig(t *testing.T) {
	c := Get()
	assert.Equal(t, false, c.MinimalConfig)
	assert.Equal(t, defaultMaxPageSize, c.MaxRPCPageSize)
}

func TestConfigureCoordinator(t *testing.T) {
	reset := InitWithReset(nil)
	defer reset()
	app := cli.App{}
	set := flag.NewFlagSet("test", 0)
	set.Bool(MinimalConfigFlag.Name, true, "test")
	set.Int(RPCMaxPageSizeFlag.Name, 0, "test")
	if err := set.Set(RPCMaxPageSizeFlag.Name, "100"); err != nil {
		t.Fatal(err)
	}
	context := cli.NewContext(&app, set, nil)
	ConfigureCoordinator(context)
	c := Get()
	assert.Equal(t, true, c.MinimalConfig)
	assert.Equal(t, 100, c.MaxRPCPageSize)
}

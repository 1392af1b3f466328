package main

import (
	"fmt"
	"os"

	"github.com/cuemby/meshstate/pkg/config"
	"github.com/cuemby/meshstate/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var v *viper.Viper

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "meshstate",
	Short: "meshstate - shared state, watchers, and task distribution for a process group",
	Long: `meshstate coordinates a group of cooperating processes: a shared,
namespaced state tree with atomic mutations, a watcher service for
observing changes, a task proxy and worker pool for distributing work,
and a supervisor for keeping external processes alive.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"meshstate version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	v = config.Bind(rootCmd.PersistentFlags())
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startServerCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(stateCmd)
}

func initLogging() {
	cfg := config.Load(v)
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/internal/gridlog"
	"github.com/relaylab/gridfault/pkg/gridio"
	"github.com/relaylab/gridfault/pkg/network"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"

	log          *gridlog.Logger
	baseOverride *baseunits.Base
)

var rootCmd = &cobra.Command{
	Use:     "gridfault",
	Short:   "Power-grid fault simulation and relay-localization toolkit",
	Long:    `gridfault solves power flow over a transmission network, injects symmetrical-components faults, and localizes them using independent impedance-based and topology-based detectors.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := gridlog.LevelInfo
		if verbose {
			level = gridlog.LevelDebug
		}
		log = gridlog.New(gridlog.Config{Level: level, Format: gridlog.Format(logFormat)})

		if cfgFile != "" {
			base, err := baseunits.LoadFile(cfgFile)
			if err != nil {
				return fmt.Errorf("--base: %w", err)
			}
			baseOverride = base
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "base", "", "base configuration YAML file (default built-in values)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(faultCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(demoCmd)
}

// loadFixture loads a grid fixture. When --base is set, its base
// (built-in defaults plus the --base file's fields) replaces whatever
// base the fixture file itself specifies.
func loadFixture(path string) (*network.Network, error) {
	return gridio.LoadFixtureWithBase(path, baseOverride)
}

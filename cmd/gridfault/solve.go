package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaylab/gridfault/pkg/admittance"
	"github.com/relaylab/gridfault/pkg/gridio"
	"github.com/relaylab/gridfault/pkg/powerflow"
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Args:  cobra.NoArgs,
	Short: "Run Newton-Raphson power flow over a grid fixture",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().String("fixture", "", "path to the YAML grid fixture (required)")
	solveCmd.Flags().Int("max-iterations", 0, "override max NR iterations (0 = default)")
	solveCmd.Flags().Float64("tolerance", 0, "override mismatch tolerance (0 = default)")
	_ = solveCmd.MarkFlagRequired("fixture")
}

func runSolve(cmd *cobra.Command, args []string) error {
	fixturePath, _ := cmd.Flags().GetString("fixture")
	maxIter, _ := cmd.Flags().GetInt("max-iterations")
	tol, _ := cmd.Flags().GetFloat64("tolerance")

	net, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}

	cfg := powerflow.DefaultConfig()
	if maxIter > 0 {
		cfg.MaxIterations = maxIter
	}
	if tol > 0 {
		cfg.Tolerance = tol
	}

	cache := admittance.NewCache(net, log)
	res, err := powerflow.Solve(net, cache, cfg, log)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	fmt.Printf("converged=%v iterations=%d max_mismatch=%.3e\n\n", res.Converged, res.Iterations, res.MaxMismatch)

	fmt.Println("Bus voltages:")
	for _, key := range net.BusKeysSorted() {
		bus, _ := net.Bus(key)
		fmt.Printf("  bus %-4d %-20s %s\n", bus.Key, bus.Name, gridio.FormatVoltagePhasor(bus.VoltagePU, bus.AngleRad))
	}

	fmt.Println("\nLine flows:")
	for _, key := range net.LineKeysSorted() {
		l, _ := net.Line(key)
		fmt.Printf("  line %-4d %d -> %-4d %8.3f MW  loading=%5.1f%%\n", l.Key, l.From, l.To, l.PowerFlowMW, l.LoadingPercent())
	}

	return nil
}

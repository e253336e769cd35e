package powerflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/pkg/admittance"
	"github.com/relaylab/gridfault/pkg/network"
	"github.com/relaylab/gridfault/pkg/powerflow"
)

type PowerFlowSuite struct {
	suite.Suite
}

func (s *PowerFlowSuite) buildTwoBus() *network.Network {
	base := baseunits.Default()
	net := network.New("two-bus", base)

	slack := network.NewBus(1, "slack", network.RoleSlack, 220)
	require.NoError(s.T(), net.AddBus(slack))

	load := network.NewBus(2, "load", network.RoleLoad, 220)
	load.PLoad, load.QLoad = 20, 5
	require.NoError(s.T(), net.AddBus(load))

	require.NoError(s.T(), net.AddLine(network.NewLine(1, 1, 2, 20, base)))
	return net
}

func (s *PowerFlowSuite) TestConvergesOnSimpleRadialSystem() {
	net := s.buildTwoBus()
	cache := admittance.NewCache(net, nil)

	res, err := powerflow.Solve(net, cache, powerflow.DefaultConfig(), nil)
	require.NoError(s.T(), err)
	require.True(s.T(), res.Converged)
	require.Less(s.T(), res.MaxMismatch, powerflow.DefaultConfig().Tolerance)

	loadBus, _ := net.Bus(2)
	require.Less(s.T(), loadBus.VoltagePU, 1.0)
	require.Greater(s.T(), loadBus.VoltagePU, 0.9)
}

func (s *PowerFlowSuite) TestLineFlowApproximatesLoadDemand() {
	net := s.buildTwoBus()
	cache := admittance.NewCache(net, nil)

	_, err := powerflow.Solve(net, cache, powerflow.DefaultConfig(), nil)
	require.NoError(s.T(), err)

	line, _ := net.Line(1)
	// Flow into the load bus should be close to the 20 MW demand (small losses).
	require.InDelta(s.T(), 20.0, line.PowerFlowMW, 1.0)
}

func (s *PowerFlowSuite) TestSolveIsIdempotentOnConvergedSystem() {
	net := s.buildTwoBus()
	cache := admittance.NewCache(net, nil)

	res1, err := powerflow.Solve(net, cache, powerflow.DefaultConfig(), nil)
	require.NoError(s.T(), err)
	require.True(s.T(), res1.Converged)

	res2, err := powerflow.Solve(net, cache, powerflow.DefaultConfig(), nil)
	require.NoError(s.T(), err)
	require.True(s.T(), res2.Converged)
	require.LessOrEqual(s.T(), res2.Iterations, 1)
}

func TestPowerFlowSuite(t *testing.T) {
	suite.Run(t, new(PowerFlowSuite))
}

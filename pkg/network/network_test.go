package network_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/pkg/network"
)

type NetworkSuite struct {
	suite.Suite
	base *baseunits.Base
}

func (s *NetworkSuite) SetupTest() {
	s.base = baseunits.Default()
}

func (s *NetworkSuite) buildTriangle() *network.Network {
	net := network.New("triangle", s.base)
	for _, key := range []int{1, 2, 3} {
		role := network.RoleLoad
		if key == 1 {
			role = network.RoleSlack
		}
		require.NoError(s.T(), net.AddBus(network.NewBus(key, "bus", role, 220)))
	}
	require.NoError(s.T(), net.AddLine(network.NewLine(1, 1, 2, 50, s.base)))
	require.NoError(s.T(), net.AddLine(network.NewLine(2, 2, 3, 60, s.base)))
	require.NoError(s.T(), net.AddLine(network.NewLine(3, 1, 3, 70, s.base)))
	return net
}

func (s *NetworkSuite) TestAddBusRejectsDuplicateKey() {
	net := s.buildTriangle()
	err := net.AddBus(network.NewBus(1, "dup", network.RoleLoad, 220))
	require.Error(s.T(), err)
}

func (s *NetworkSuite) TestAddLineRejectsMissingEndpoint() {
	net := s.buildTriangle()
	err := net.AddLine(network.NewLine(99, 1, 42, 10, s.base))
	require.Error(s.T(), err)
}

func (s *NetworkSuite) TestAddLineRejectsSelfLoop() {
	net := s.buildTriangle()
	err := net.AddLine(network.NewLine(98, 1, 1, 10, s.base))
	require.Error(s.T(), err)
}

func (s *NetworkSuite) TestVersionBumpsOnMutation() {
	net := s.buildTriangle()
	v0 := net.Version()
	require.NoError(s.T(), net.OpenLine(1))
	require.Greater(s.T(), net.Version(), v0)
}

func (s *NetworkSuite) TestBusKeysSortedIsCanonicalAscending() {
	net := s.buildTriangle()
	require.Equal(s.T(), []int{1, 2, 3}, net.BusKeysSorted())
}

func (s *NetworkSuite) TestApplyLineFaultOpenAlsoOpensLine() {
	net := s.buildTriangle()
	require.NoError(s.T(), net.ApplyLineFault(1, network.FaultOpen, 0.5))
	line, err := net.Line(1)
	require.NoError(s.T(), err)
	require.False(s.T(), line.Closed)
	require.True(s.T(), line.Faulted)
}

func (s *NetworkSuite) TestClearLineFaultRecloses() {
	net := s.buildTriangle()
	require.NoError(s.T(), net.ApplyLineFault(1, network.FaultOpen, 0.5))
	require.NoError(s.T(), net.ClearLineFault(1))
	line, _ := net.Line(1)
	require.True(s.T(), line.Closed)
	require.False(s.T(), line.Faulted)
}

func (s *NetworkSuite) TestNeighborsSymmetric() {
	net := s.buildTriangle()
	n1, err := net.Neighbors(1)
	require.NoError(s.T(), err)
	require.ElementsMatch(s.T(), []int{2, 3}, n1)

	// Bus 2 is the to-end of line 1 and the from-end of line 2.
	n2, err := net.Neighbors(2)
	require.NoError(s.T(), err)
	require.ElementsMatch(s.T(), []int{1, 3}, n2)
}

func (s *NetworkSuite) TestFaultKindSeverityOrdering() {
	require.Less(s.T(), network.FaultOpen.Severity(), network.FaultSLG.Severity())
	require.Less(s.T(), network.FaultSLG.Severity(), network.FaultLL.Severity())
	require.Equal(s.T(), network.FaultLL.Severity(), network.FaultDLG.Severity())
	require.Less(s.T(), network.FaultDLG.Severity(), network.FaultLLL.Severity())
}

func TestNetworkSuite(t *testing.T) {
	suite.Run(t, new(NetworkSuite))
}

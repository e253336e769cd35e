package fault_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/pkg/fault"
	"github.com/relaylab/gridfault/pkg/network"
)

type SimulatorSuite struct {
	suite.Suite
	net  *network.Network
	base *baseunits.Base
}

func (s *SimulatorSuite) SetupTest() {
	s.base = baseunits.Default()
	s.net = network.New("triangle", s.base)

	for _, key := range []int{1, 2, 3} {
		role := network.RoleLoad
		if key == 1 {
			role = network.RoleSlack
		}
		require.NoError(s.T(), s.net.AddBus(network.NewBus(key, "bus", role, 220)))
	}
	require.NoError(s.T(), s.net.AddLine(network.NewLine(1, 1, 2, 50, s.base)))
	require.NoError(s.T(), s.net.AddLine(network.NewLine(2, 2, 3, 60, s.base)))
	require.NoError(s.T(), s.net.AddLine(network.NewLine(3, 1, 3, 70, s.base)))
}

func (s *SimulatorSuite) TestInjectBusFaultProducesPhaseCurrents() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(1)), fault.PreFaultFlat, nil)
	f, err := sim.InjectBusFault(2, fault.KindSLG, 0)
	require.NoError(s.T(), err)
	require.True(s.T(), f.Active)
	require.Greater(s.T(), f.PhaseCurrentsAmp[0], 0.0)

	bus, _ := s.net.Bus(2)
	require.True(s.T(), bus.Faulted)
}

func (s *SimulatorSuite) TestInjectLineFaultClampsPosition() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(1)), fault.PreFaultFlat, nil)
	f, err := sim.InjectLineFault(1, fault.KindLLL, 1.5, 0)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1.0, f.Position)
}

func (s *SimulatorSuite) TestInjectLineFaultOpenAlsoOpensLine() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(1)), fault.PreFaultFlat, nil)
	_, err := sim.InjectLineFault(1, fault.KindOpen, 0.5, 0)
	require.NoError(s.T(), err)

	line, _ := s.net.Line(1)
	require.False(s.T(), line.Closed)
}

func (s *SimulatorSuite) TestClearFaultRestoresState() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(1)), fault.PreFaultFlat, nil)
	f, err := sim.InjectBusFault(2, fault.KindSLG, 0)
	require.NoError(s.T(), err)

	require.NoError(s.T(), sim.ClearFault(f))
	require.False(s.T(), f.Active)

	bus, _ := s.net.Bus(2)
	require.False(s.T(), bus.Faulted)
	require.Empty(s.T(), sim.ActiveFaults())
}

func (s *SimulatorSuite) TestRandomFaultAlwaysLandsOnAnElement() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(42)), fault.PreFaultFlat, nil)
	for i := 0; i < 20; i++ {
		f, err := sim.InjectRandomFault()
		require.NoError(s.T(), err)
		require.True(s.T(), f.IsBusFault() || f.IsLineFault())
		sim.ClearAllFaults()
	}
}

func (s *SimulatorSuite) TestDetectionErrorUndefinedBeforeDetection() {
	sim := fault.NewSimulator(s.net, rand.New(rand.NewSource(1)), fault.PreFaultFlat, nil)
	f, err := sim.InjectLineFault(1, fault.KindSLG, 0.3, 0)
	require.NoError(s.T(), err)

	_, ok := f.DetectionError()
	require.False(s.T(), ok)
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorSuite))
}

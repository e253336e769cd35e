package gridio_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/pkg/gridio"
	"github.com/relaylab/gridfault/pkg/network"
)

type FixtureSuite struct {
	suite.Suite
}

func (s *FixtureSuite) TestBuildFromFixtureRejectsUnknownRole() {
	fx := &gridio.Fixture{
		Name: "bad",
		Buses: []gridio.BusFixture{
			{Key: 1, Name: "a", Role: "nonsense", NominalKV: 220},
		},
	}
	_, err := fx.Build()
	require.Error(s.T(), err)
}

func (s *FixtureSuite) TestBuildRoundTripsThroughSaveAndLoad() {
	fx := &gridio.Fixture{
		Name: "roundtrip",
		Buses: []gridio.BusFixture{
			{Key: 1, Name: "slack", Role: "slack", NominalKV: 220},
			{Key: 2, Name: "load", Role: "load", NominalKV: 220, PLoadMW: 40, QLoadMVAr: 10},
		},
		Lines: []gridio.LineFixture{
			{Key: 1, From: 1, To: 2, LengthKM: 80},
		},
	}
	net, err := fx.Build()
	require.NoError(s.T(), err)
	require.Len(s.T(), net.Buses(), 2)
	require.Len(s.T(), net.Lines(), 1)

	path := filepath.Join(s.T().TempDir(), "grid.yaml")
	require.NoError(s.T(), gridio.SaveFixture(net, path))

	loaded, err := gridio.LoadFixture(path)
	require.NoError(s.T(), err)
	require.Equal(s.T(), net.Name, loaded.Name)
	require.Len(s.T(), loaded.Buses(), 2)

	slack, err := loaded.SlackBus()
	require.NoError(s.T(), err)
	require.Equal(s.T(), network.RoleSlack, slack.Role)

	loadBus, err := loaded.Bus(2)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 40.0, loadBus.PLoad)
}

func TestFixtureSuite(t *testing.T) {
	suite.Run(t, new(FixtureSuite))
}

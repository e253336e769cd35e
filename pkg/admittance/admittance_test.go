package admittance_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/pkg/admittance"
	"github.com/relaylab/gridfault/pkg/network"
)

type AdmittanceSuite struct {
	suite.Suite
	net  *network.Network
	base *baseunits.Base
}

func (s *AdmittanceSuite) SetupTest() {
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

func (s *AdmittanceSuite) TestYBusIsSymmetric() {
	y, err := admittance.BuildYBus(s.net)
	require.NoError(s.T(), err)

	n := y.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.InDelta(s.T(), real(y.Get(i, j)), real(y.Get(j, i)), 1e-9)
			require.InDelta(s.T(), imag(y.Get(i, j)), imag(y.Get(j, i)), 1e-9)
		}
	}
}

func (s *AdmittanceSuite) TestZBusIsYBusInverse() {
	y, err := admittance.BuildYBus(s.net)
	require.NoError(s.T(), err)
	z, err := admittance.BuildZBus(y)
	require.NoError(s.T(), err)

	n := y.Size()
	// Y * Z should be close to the identity matrix.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < n; k++ {
				sum += y.Get(i, k) * z[k][j]
			}
			want := complex(0, 0)
			if i == j {
				want = complex(1, 0)
			}
			require.InDelta(s.T(), real(want), real(sum), 1e-6)
			require.InDelta(s.T(), imag(want), imag(sum), 1e-6)
		}
	}
}

func (s *AdmittanceSuite) TestSequenceNetworksNegativeEqualsPositive() {
	seq, err := admittance.BuildSequenceNetworks(s.net, nil)
	require.NoError(s.T(), err)

	n := len(seq.Index.IdxToKey)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.Equal(s.T(), seq.Z1[i][j], seq.Z2[i][j])
		}
	}
}

func (s *AdmittanceSuite) TestZeroSequenceDiffersFromPositive() {
	seq, err := admittance.BuildSequenceNetworks(s.net, nil)
	require.NoError(s.T(), err)

	diff := cmplx.Abs(seq.Z0[0][0] - seq.Z1[0][0])
	require.Greater(s.T(), diff, 0.0)
}

func (s *AdmittanceSuite) TestCacheRebuildsOnlyAfterMutation() {
	cache := admittance.NewCache(s.net, nil)
	y1, err := cache.YBus()
	require.NoError(s.T(), err)

	y2, err := cache.YBus()
	require.NoError(s.T(), err)
	require.Equal(s.T(), y1.Get(0, 0), y2.Get(0, 0))

	require.NoError(s.T(), s.net.OpenLine(1))
	y3, err := cache.YBus()
	require.NoError(s.T(), err)
	require.NotEqual(s.T(), y1.Get(0, 0), y3.Get(0, 0))
}

func TestAdmittanceSuite(t *testing.T) {
	suite.Run(t, new(AdmittanceSuite))
}

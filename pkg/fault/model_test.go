package fault_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/pkg/fault"
)

type ModelSuite struct {
	suite.Suite
}

func (s *ModelSuite) TestFortescueRoundTrip() {
	ia := complex(1.2, -0.3)
	ib := complex(-0.6, 0.9)
	ic := complex(-0.4, -0.5)

	i0, i1, i2 := fault.PhaseToSequence(ia, ib, ic)
	ga, gb, gc := fault.SequenceToPhase(i0, i1, i2)

	require.InDelta(s.T(), real(ia), real(ga), 1e-9)
	require.InDelta(s.T(), imag(ia), imag(ga), 1e-9)
	require.InDelta(s.T(), real(ib), real(gb), 1e-9)
	require.InDelta(s.T(), imag(ib), imag(gb), 1e-9)
	require.InDelta(s.T(), real(ic), real(gc), 1e-9)
	require.InDelta(s.T(), imag(ic), imag(gc), 1e-9)
}

func (s *ModelSuite) TestSLGAllSequenceCurrentsEqual() {
	vf := complex(1.0, 0)
	z0, z1, z2 := complex(0.1, 0.3), complex(0.05, 0.2), complex(0.05, 0.2)
	zf := complex(0, 0)

	i0, i1, i2 := fault.SequenceCurrents(fault.KindSLG, vf, z0, z1, z2, zf)
	require.Equal(s.T(), i0, i1)
	require.Equal(s.T(), i1, i2)
}

func (s *ModelSuite) TestLLNegatesPositiveSequenceAndHasNoZero() {
	vf := complex(1.0, 0)
	z1, z2 := complex(0.05, 0.2), complex(0.05, 0.2)
	zf := complex(0, 0)

	i0, i1, i2 := fault.SequenceCurrents(fault.KindLL, vf, 0, z1, z2, zf)
	require.Equal(s.T(), complex(0, 0), i0)
	require.Equal(s.T(), -i1, i2)
}

func (s *ModelSuite) TestLLLHasOnlyPositiveSequence() {
	vf := complex(1.0, 0)
	zf := complex(0, 0)
	i0, i1, i2 := fault.SequenceCurrents(fault.KindLLL, vf, 0, complex(0.05, 0.2), 0, zf)
	require.Equal(s.T(), complex(0, 0), i0)
	require.Equal(s.T(), complex(0, 0), i2)
	require.NotEqual(s.T(), complex(0, 0), i1)
}

func (s *ModelSuite) TestOpenFaultHasNoSequenceCurrent() {
	i0, i1, i2 := fault.SequenceCurrents(fault.KindOpen, complex(1, 0), complex(0.1, 0.1), complex(0.1, 0.1), complex(0.1, 0.1), 0)
	require.Equal(s.T(), complex(0, 0), i0)
	require.Equal(s.T(), complex(0, 0), i1)
	require.Equal(s.T(), complex(0, 0), i2)
}

func (s *ModelSuite) TestDLGDegenerateDenominatorSplitsEqually() {
	vf := complex(1.0, 0)
	// z0+3zf + z2 ~ 0 forces the degenerate current-divider branch.
	z0 := complex(-0.05, -0.1)
	z2 := complex(0.05, 0.1)
	z1 := complex(0.05, 0.2)
	zf := complex(0, 0)

	i0, i1, i2 := fault.SequenceCurrents(fault.KindDLG, vf, z0, z1, z2, zf)
	require.NotEqual(s.T(), complex(0, 0), i1)
	require.InDelta(s.T(), real(i1)/2, real(i0), 1e-9)
	require.InDelta(s.T(), real(i0), real(i2), 1e-9)
}

func (s *ModelSuite) TestGuardDenominatorPreservesDirection() {
	// Bolted three-phase fault (zf=0, z1 tiny) should not explode to NaN/Inf.
	vf := complex(1.0, 0)
	i0, i1, i2 := fault.SequenceCurrents(fault.KindLLL, vf, 0, complex(1e-12, 1e-12), 0, 0)
	require.False(s.T(), cmplx.IsNaN(i1))
	require.False(s.T(), cmplx.IsInf(i1))
	// The guarded denominator keeps z1's 45-degree direction, so I1 = 1/z is at -45 degrees.
	require.InDelta(s.T(), -math.Pi/4, cmplx.Phase(i1), 1e-9)
	require.Equal(s.T(), complex(0, 0), i0)
	require.Equal(s.T(), complex(0, 0), i2)
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

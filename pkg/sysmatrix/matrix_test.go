package sysmatrix_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/pkg/sysmatrix"
)

type MatrixSuite struct {
	suite.Suite
}

func (s *MatrixSuite) TestRealSolveIdentity() {
	m, err := sysmatrix.New(2, false)
	require.NoError(s.T(), err)
	defer m.Destroy()

	m.AddElement(1, 1, 1)
	m.AddElement(2, 2, 1)
	m.AddRHS(1, 3)
	m.AddRHS(2, 4)

	sol, err := m.Solve()
	require.NoError(s.T(), err)
	require.InDelta(s.T(), 3.0, sol[1], 1e-9)
	require.InDelta(s.T(), 4.0, sol[2], 1e-9)
}

func (s *MatrixSuite) TestReusedFactorizationAgainstSuccessiveRHS() {
	m, err := sysmatrix.New(2, true)
	require.NoError(s.T(), err)
	defer m.Destroy()

	m.AddComplexElement(1, 1, 2, 0)
	m.AddComplexElement(2, 2, 2, 0)

	m.AddComplexRHS(1, 1, 0)
	re1, _, err := m.SolveComplex()
	require.NoError(s.T(), err)
	require.InDelta(s.T(), 0.5, re1[1], 1e-9)

	m.ClearRHS()
	m.AddComplexRHS(2, 1, 0)
	re2, _, err := m.SolveComplex()
	require.NoError(s.T(), err)
	require.InDelta(s.T(), 0.5, re2[2], 1e-9)
}

func (s *MatrixSuite) TestGetElementReadsBackStampedValue() {
	m, err := sysmatrix.New(2, false)
	require.NoError(s.T(), err)
	defer m.Destroy()

	m.AddElement(1, 2, 5)
	re, _ := m.GetElement(1, 2)
	require.Equal(s.T(), 5.0, re)
}

func TestMatrixSuite(t *testing.T) {
	suite.Run(t, new(MatrixSuite))
}

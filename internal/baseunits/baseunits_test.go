package baseunits_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relaylab/gridfault/internal/baseunits"
)

type BaseUnitsSuite struct {
	suite.Suite
}

func (s *BaseUnitsSuite) TestDefaultMatchesOriginalConstants() {
	b := baseunits.Default()
	require.Equal(s.T(), 220.0, b.NominalVoltageKV)
	require.Equal(s.T(), 100.0, b.PowerBaseMVA)
	require.Equal(s.T(), 0.035, b.LineResistancePerKM)
	require.Equal(s.T(), 0.37, b.LineReactancePerKM)
	require.InDelta(s.T(), 4.0e-6, b.LineSusceptancePerKM, 1e-12)
	require.Equal(s.T(), 3.0, b.ZeroSeqResistanceRatio)
	require.Equal(s.T(), 3.0, b.ZeroSeqReactanceRatio)
	require.Equal(s.T(), 0.80, b.Zone1Reach)
	require.Equal(s.T(), 1.20, b.Zone2Reach)
	require.Equal(s.T(), 1.50, b.Zone3Reach)
}

func (s *BaseUnitsSuite) TestImpedanceAndCurrentBase() {
	b := baseunits.Default()
	// Z_base = V_base^2 / S_base = 220^2 / 100 = 484 ohm
	require.InDelta(s.T(), 484.0, b.ImpedanceBaseOhm(), 1e-9)
	// I_base = S_base*1e6 / (sqrt(3) * V_base*1e3)
	require.InDelta(s.T(), 262.4, b.CurrentBaseAmp(), 1.0)
}

func (s *BaseUnitsSuite) TestLoadFileOverridesOnTopOfDefault() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "base.yaml")
	content := "nominal_voltage_kv: 400\npower_base_mva: 100\n"
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o644))

	b, err := baseunits.LoadFile(path)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 400.0, b.NominalVoltageKV)
	// Untouched fields keep the default value.
	require.Equal(s.T(), 0.035, b.LineResistancePerKM)
}

func TestBaseUnitsSuite(t *testing.T) {
	suite.Run(t, new(BaseUnitsSuite))
}

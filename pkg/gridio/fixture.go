// Package gridio loads and saves network fixtures as YAML, and
// formats pu/angle/power values for CLI output. The fixture schema is
// a plain YAML-tagged DTO layer kept separate from the domain types in
// pkg/network, rather than tagging pkg/network's own structs directly.
package gridio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relaylab/gridfault/internal/baseunits"
	"github.com/relaylab/gridfault/pkg/network"
)

// BusFixture is one bus entry in a fixture file.
type BusFixture struct {
	Key       int     `yaml:"key"`
	Name      string  `yaml:"name"`
	Role      string  `yaml:"role"` // "slack", "generator", "load"
	NominalKV float64 `yaml:"nominal_kv"`
	PGenMW    float64 `yaml:"p_gen_mw"`
	QGenMVAr  float64 `yaml:"q_gen_mvar"`
	PLoadMW   float64 `yaml:"p_load_mw"`
	QLoadMVAr float64 `yaml:"q_load_mvar"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
}

// LineFixture is one line entry in a fixture file. Per-km electrical
// parameters default from the base config when zero, matching
// network.NewLine's defaulting behavior.
type LineFixture struct {
	Key           int     `yaml:"key"`
	From          int     `yaml:"from"`
	To            int     `yaml:"to"`
	LengthKM      float64 `yaml:"length_km"`
	RPerKM        float64 `yaml:"r_per_km"`
	XPerKM        float64 `yaml:"x_per_km"`
	BPerKM        float64 `yaml:"b_per_km"`
	RatingMVA     float64 `yaml:"rating_mva"`
	ZeroSeqRRatio float64 `yaml:"zero_seq_r_ratio"`
	ZeroSeqXRatio float64 `yaml:"zero_seq_x_ratio"`
}

// Fixture is a complete grid description: base configuration plus bus
// and line lists.
type Fixture struct {
	Name  string         `yaml:"name"`
	Base  *baseunits.Base `yaml:"base,omitempty"`
	Buses []BusFixture   `yaml:"buses"`
	Lines []LineFixture  `yaml:"lines"`
}

func roleFromString(s string) (network.BusRole, error) {
	switch s {
	case "slack":
		return network.RoleSlack, nil
	case "generator":
		return network.RoleGenerator, nil
	case "load", "":
		return network.RoleLoad, nil
	default:
		return 0, fmt.Errorf("gridio: unknown bus role %q", s)
	}
}

func roleToString(r network.BusRole) string {
	switch r {
	case network.RoleSlack:
		return "slack"
	case network.RoleGenerator:
		return "generator"
	default:
		return "load"
	}
}

// Build materializes a Fixture into a fresh *network.Network.
func (fx *Fixture) Build() (*network.Network, error) {
	base := fx.Base
	if base == nil {
		base = baseunits.Default()
	}

	net := network.New(fx.Name, base)

	for _, bf := range fx.Buses {
		role, err := roleFromString(bf.Role)
		if err != nil {
			return nil, err
		}
		bus := network.NewBus(bf.Key, bf.Name, role, bf.NominalKV)
		bus.PGen = bf.PGenMW
		bus.QGen = bf.QGenMVAr
		bus.PLoad = bf.PLoadMW
		bus.QLoad = bf.QLoadMVAr
		bus.X = bf.X
		bus.Y = bf.Y
		if err := net.AddBus(bus); err != nil {
			return nil, fmt.Errorf("gridio: bus %d: %w", bf.Key, err)
		}
	}

	for _, lf := range fx.Lines {
		line := network.NewLine(lf.Key, lf.From, lf.To, lf.LengthKM, base)
		if lf.RPerKM != 0 {
			line.RPerKM = lf.RPerKM
		}
		if lf.XPerKM != 0 {
			line.XPerKM = lf.XPerKM
		}
		if lf.BPerKM != 0 {
			line.BPerKM = lf.BPerKM
		}
		if lf.RatingMVA != 0 {
			line.RatingMVA = lf.RatingMVA
		}
		if lf.ZeroSeqRRatio != 0 {
			line.ZeroSeqRRatio = lf.ZeroSeqRRatio
		}
		if lf.ZeroSeqXRatio != 0 {
			line.ZeroSeqXRatio = lf.ZeroSeqXRatio
		}
		if err := net.AddLine(line); err != nil {
			return nil, fmt.Errorf("gridio: line %d: %w", lf.Key, err)
		}
	}

	return net, nil
}

// FromNetwork captures a network's current topology back into a
// Fixture, for round-tripping or saving a modified grid.
func FromNetwork(net *network.Network) *Fixture {
	fx := &Fixture{Name: net.Name, Base: net.Base}

	for _, key := range net.BusKeysSorted() {
		b, _ := net.Bus(key)
		fx.Buses = append(fx.Buses, BusFixture{
			Key: b.Key, Name: b.Name, Role: roleToString(b.Role),
			NominalKV: b.NominalKV, PGenMW: b.PGen, QGenMVAr: b.QGen,
			PLoadMW: b.PLoad, QLoadMVAr: b.QLoad, X: b.X, Y: b.Y,
		})
	}
	for _, key := range net.LineKeysSorted() {
		l, _ := net.Line(key)
		fx.Lines = append(fx.Lines, LineFixture{
			Key: l.Key, From: l.From, To: l.To, LengthKM: l.LengthKM,
			RPerKM: l.RPerKM, XPerKM: l.XPerKM, BPerKM: l.BPerKM,
			RatingMVA: l.RatingMVA, ZeroSeqRRatio: l.ZeroSeqRRatio, ZeroSeqXRatio: l.ZeroSeqXRatio,
		})
	}
	return fx
}

// LoadFixture reads and builds a network from a YAML fixture file.
func LoadFixture(path string) (*network.Network, error) {
	return LoadFixtureWithBase(path, nil)
}

// LoadFixtureWithBase behaves like LoadFixture, but override replaces
// the fixture's own base (and the baseunits.Default() fallback) when
// non-nil — used by callers that let an operator supply base values
// on the command line independently of any one fixture file.
func LoadFixtureWithBase(path string, override *baseunits.Base) (*network.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gridio: read %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("gridio: parse %s: %w", path, err)
	}
	if override != nil {
		fx.Base = override
	}
	return fx.Build()
}

// SaveFixture writes net's current topology to a YAML fixture file.
func SaveFixture(net *network.Network, path string) error {
	fx := FromNetwork(net)
	data, err := yaml.Marshal(fx)
	if err != nil {
		return fmt.Errorf("gridio: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("gridio: write %s: %w", path, err)
	}
	return nil
}

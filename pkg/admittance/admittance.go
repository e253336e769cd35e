// Package admittance builds the bus admittance matrix (Y-bus) and, on
// demand, the bus impedance matrix (Z-bus) and the three sequence
// networks the fault models need. It generalizes a per-device
// "stamp into a shared matrix" pattern to per-line stamping: each
// closed line contributes its PI-model admittance directly into a
// pkg/sysmatrix.Matrix.
package admittance

import (
	"fmt"
	"math/cmplx"

	"github.com/relaylab/gridfault/internal/gridlog"
	"github.com/relaylab/gridfault/pkg/network"
	"github.com/relaylab/gridfault/pkg/sysmatrix"
)

// singularityRegularization is added to the diagonal, real part only,
// when factorization fails — equivalent to inverting y_bus + 1e-10*I.
const singularityRegularization = 1e-10

// BusIndex maps bus keys to the canonical 0-based row/column index:
// sorted ascending bus-key order.
type BusIndex struct {
	KeyToIdx map[int]int
	IdxToKey []int
}

func newBusIndex(net *network.Network) BusIndex {
	keys := net.BusKeysSorted()
	idx := BusIndex{KeyToIdx: make(map[int]int, len(keys)), IdxToKey: keys}
	for i, k := range keys {
		idx.KeyToIdx[k] = i
	}
	return idx
}

// CMatrix is a dense n x n complex matrix indexed by the canonical
// 0-based bus index (see BusIndex), used for Z-bus and the two solved
// sequence impedance matrices. Y-bus stays in sparse-stamped form
// (pkg/sysmatrix); its entries are read back via YBus.Get (power flow,
// symmetry checks) and it is factored directly for Z-bus inversion.
type CMatrix [][]complex128

func newCMatrix(n int) CMatrix {
	m := make(CMatrix, n)
	for i := range m {
		m[i] = make([]complex128, n)
	}
	return m
}

func (m CMatrix) Get(i, j int) complex128 { return m[i][j] }

// YBus is the assembled (and still factorizable) positive-sequence
// bus admittance matrix.
type YBus struct {
	Index BusIndex
	sys   *sysmatrix.Matrix
}

// Get reads back the stamped Y-bus entry at canonical 0-based bus
// indices (row busIdxI, column busIdxJ; see BusIndex), used by the
// power-flow solver and the Y-bus symmetry invariant test.
func (y *YBus) Get(busIdxI, busIdxJ int) complex128 {
	re, im := y.sys.GetElement(busIdxI+1, busIdxJ+1)
	return complex(re, im)
}

func (y *YBus) Size() int { return y.Index.ToSize() }

// ToSize is a tiny convenience so BusIndex doesn't need its own file.
func (b BusIndex) ToSize() int { return len(b.IdxToKey) }

// stampSeries stamps one line's series+shunt PI-model admittance into
// sys: off-diagonals accumulate -y_series, diagonals accumulate
// y_series + j*b_shunt/2.
func stampSeries(sys *sysmatrix.Matrix, idx BusIndex, fromKey, toKey int, ySeries complex128, bShuntTotal float64, withShunt bool) {
	i := idx.KeyToIdx[fromKey] + 1
	j := idx.KeyToIdx[toKey] + 1

	sys.AddComplexElement(i, j, -real(ySeries), -imag(ySeries))
	sys.AddComplexElement(j, i, -real(ySeries), -imag(ySeries))

	diag := ySeries
	if withShunt {
		diag += complex(0, bShuntTotal/2)
	}
	sys.AddComplexElement(i, i, real(diag), imag(diag))
	sys.AddComplexElement(j, j, real(diag), imag(diag))
}

// buildSequenceYBus assembles either the positive/negative-sequence
// Y-bus (zero=false: shunt stamped, positive-sequence per-unit series
// admittance) or the zero-sequence Y-bus (zero=true: no shunt, scaled z0 per-unit
// series admittance, no mutual coupling) over every line that
// currently contributes admittance (closed and not open-conductor
// faulted).
func buildSequenceYBus(net *network.Network, idx BusIndex, zero bool) (*sysmatrix.Matrix, error) {
	n := idx.ToSize()
	sys, err := sysmatrix.New(n, true)
	if err != nil {
		return nil, fmt.Errorf("admittance: new matrix: %w", err)
	}

	for _, l := range net.Lines() {
		if !l.LineIsTraversable() {
			continue
		}
		var ySeries complex128
		if zero {
			z0 := l.ZeroSeqPU(net.ZBase)
			if cmplx.Abs(z0) < 1e-10 {
				ySeries = 0
			} else {
				ySeries = 1 / z0
			}
		} else {
			ySeries = l.SeriesAdmittancePU(net.ZBase)
		}
		stampSeries(sys, idx, l.From, l.To, ySeries, l.ShuntSusceptancePU(net.ZBase), !zero)
	}

	return sys, nil
}

// BuildYBus assembles the positive-sequence Y-bus from scratch (no
// caching here — see Cache for the version-gated accessor).
func BuildYBus(net *network.Network) (*YBus, error) {
	idx := newBusIndex(net)
	sys, err := buildSequenceYBus(net, idx, false)
	if err != nil {
		return nil, err
	}
	return &YBus{Index: idx, sys: sys}, nil
}

// invert solves sys * Z = I column by column, retrying once with a
// diagonal regularization if the factorization is singular.
func invert(sys *sysmatrix.Matrix, n int) (CMatrix, error) {
	if err := sys.Factor(); err != nil {
		sys.LoadDiagonal(singularityRegularization)
		if err2 := sys.Factor(); err2 != nil {
			return nil, fmt.Errorf("admittance: singular matrix even after regularization: %w", err2)
		}
	}

	z := newCMatrix(n)
	for col := 0; col < n; col++ {
		sys.ClearRHS()
		sys.AddComplexRHS(col+1, 1, 0)
		if _, _, err := sys.SolveComplex(); err != nil {
			return nil, fmt.Errorf("admittance: solve column %d: %w", col, err)
		}
		for row := 0; row < n; row++ {
			re, im := sys.ComplexSolution(row + 1)
			z[row][col] = complex(re, im)
		}
	}
	return z, nil
}

// BuildZBus inverts a YBus into its bus impedance matrix.
func BuildZBus(y *YBus) (CMatrix, error) {
	return invert(y.sys, y.Index.ToSize())
}

// SequenceNetworks holds the three solved sequence bus-impedance
// matrices and the canonical bus index they're built over.
type SequenceNetworks struct {
	Index      BusIndex
	Z0, Z1, Z2 CMatrix
}

// BuildSequenceNetworks assembles and inverts all three sequence
// networks: positive = standard Y-bus inversion, negative = copy of
// positive (transmission lines are sequence-symmetric), zero =
// independent assembly with no shunt term.
func BuildSequenceNetworks(net *network.Network, log *gridlog.Logger) (*SequenceNetworks, error) {
	log = gridlog.OrNop(log)
	idx := newBusIndex(net)
	n := idx.ToSize()

	posSys, err := buildSequenceYBus(net, idx, false)
	if err != nil {
		return nil, err
	}
	z1, err := invert(posSys, n)
	if err != nil {
		return nil, err
	}

	zeroSys, err := buildSequenceYBus(net, idx, true)
	if err != nil {
		return nil, err
	}
	z0, err := invert(zeroSys, n)
	if err != nil {
		return nil, err
	}

	z2 := newCMatrix(n)
	for i := range z2 {
		copy(z2[i], z1[i])
	}

	log.Debug("built sequence networks", "buses", n)

	return &SequenceNetworks{Index: idx, Z0: z0, Z1: z1, Z2: z2}, nil
}

// Cache is the version-gated Y-bus accessor the design notes require:
// callers never hold a Y-bus directly, they ask the cache, which
// rebuilds only when the network's topology version has advanced
// since the last build.
type Cache struct {
	net     *network.Network
	version int
	yBus    *YBus
	log     *gridlog.Logger
}

func NewCache(net *network.Network, log *gridlog.Logger) *Cache {
	return &Cache{net: net, version: -1, log: gridlog.OrNop(log)}
}

// YBus returns the current positive-sequence Y-bus, rebuilding it if
// the network has mutated since the last call.
func (c *Cache) YBus() (*YBus, error) {
	if c.yBus != nil && c.version == c.net.Version() {
		return c.yBus, nil
	}
	y, err := BuildYBus(c.net)
	if err != nil {
		return nil, err
	}
	c.yBus = y
	c.version = c.net.Version()
	c.log.Debug("rebuilt Y-bus", "version", c.version, "buses", y.Size())
	return c.yBus, nil
}

// Invalidate forces the next YBus() call to rebuild regardless of the
// tracked version, for callers that mutate the network through
// channels the version counter doesn't see (none currently, but kept
// as an explicit escape hatch).
func (c *Cache) Invalidate() { c.yBus = nil }

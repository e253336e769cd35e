// Package fault implements the symmetrical-components fault models
// and the simulator that places faults on the network and derives
// their phase currents. Fault-kind dispatch is a closed switch over
// network.FaultKind: a small fixed set, not an open class hierarchy.
package fault

import (
	"math"
	"math/cmplx"

	"github.com/relaylab/gridfault/pkg/network"
)

// Kind re-exports network.FaultKind so callers of this package don't
// need to import pkg/network just to name a fault kind.
type Kind = network.FaultKind

const (
	KindSLG  = network.FaultSLG
	KindLL   = network.FaultLL
	KindDLG  = network.FaultDLG
	KindLLL  = network.FaultLLL
	KindOpen = network.FaultOpen
)

// guardDenominator treats a near-zero denominator as a value of
// magnitude 1e-10 in the same complex direction, rather than snapping
// to a fixed real constant — avoiding both NaNs and a discontinuous
// jump in the computed angle as a fault model's denominator crosses
// zero.
func guardDenominator(z complex128) complex128 {
	mag := cmplx.Abs(z)
	if mag >= 1e-10 {
		return z
	}
	if mag == 0 {
		return complex(1e-10, 0)
	}
	return z / complex(mag, 0) * complex(1e-10, 0)
}

// SequenceCurrents dispatches to the fault model for kind and returns
// the zero/positive/negative sequence currents at the fault point.
// vf is the pre-fault voltage (per-unit), z0/z1/z2 the Thevenin
// sequence impedances at the fault point, zf the fault resistance in
// per-unit.
func SequenceCurrents(kind Kind, vf, z0, z1, z2, zf complex128) (i0, i1, i2 complex128) {
	switch kind {
	case KindSLG:
		return slgCurrents(vf, z0, z1, z2, zf)
	case KindLL:
		return llCurrents(vf, z1, z2, zf)
	case KindDLG:
		return dlgCurrents(vf, z0, z1, z2, zf)
	case KindLLL:
		return lllCurrents(vf, z1, zf)
	case KindOpen:
		return 0, 0, 0
	default:
		return slgCurrents(vf, z0, z1, z2, zf)
	}
}

func slgCurrents(vf, z0, z1, z2, zf complex128) (i0, i1, i2 complex128) {
	zTotal := guardDenominator(z0 + z1 + z2 + 3*zf)
	i := vf / zTotal
	return i, i, i
}

func llCurrents(vf, z1, z2, zf complex128) (i0, i1, i2 complex128) {
	zTotal := guardDenominator(z1 + z2 + zf)
	i1 = vf / zTotal
	i2 = -i1
	return 0, i1, i2
}

func dlgCurrents(vf, z0, z1, z2, zf complex128) (i0, i1, i2 complex128) {
	z0f := z0 + 3*zf
	denom := z0f + z2

	var zParallel complex128
	if cmplx.Abs(denom) >= 1e-10 {
		zParallel = (z0f * z2) / denom
	}

	zTotal := guardDenominator(z1 + zParallel)
	i1 = vf / zTotal

	if cmplx.Abs(denom) < 1e-10 {
		// Current divider degenerates (z0f + z2 -> 0): split I1 equally.
		i0 = i1 / 2
		i2 = i1 / 2
		return i0, i1, i2
	}

	i0 = -i1 * z2 / denom
	i2 = -i1 * z0f / denom
	return i0, i1, i2
}

func lllCurrents(vf, z1, zf complex128) (i0, i1, i2 complex128) {
	zTotal := guardDenominator(z1 + zf)
	return 0, vf / zTotal, 0
}

// fortescueA is e^(j*2*pi/3), the cube root of unity used by the
// symmetrical-components transform.
var fortescueA = cmplx.Exp(complex(0, 2*math.Pi/3))

// SequenceToPhase applies the Fortescue transform, converting
// sequence currents to phase currents.
func SequenceToPhase(i0, i1, i2 complex128) (ia, ib, ic complex128) {
	a := fortescueA
	a2 := a * a
	ia = i0 + i1 + i2
	ib = i0 + a2*i1 + a*i2
	ic = i0 + a*i1 + a2*i2
	return ia, ib, ic
}

// PhaseToSequence applies the inverse Fortescue transform.
func PhaseToSequence(ia, ib, ic complex128) (i0, i1, i2 complex128) {
	a := fortescueA
	a2 := a * a
	third := complex(1.0/3.0, 0)
	i0 = third * (ia + ib + ic)
	i1 = third * (ia + a*ib + a2*ic)
	i2 = third * (ia + a2*ib + a*ic)
	return i0, i1, i2
}

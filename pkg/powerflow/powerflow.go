// Package powerflow implements the Newton-Raphson AC power-flow
// solver: polar-form mismatch equations over a bus-type-dependent
// Jacobian, with a least-squares fallback on a singular Jacobian. The
// iterate-and-compare shape (Clear -> Stamp -> Solve -> compare
// old/new solution) mirrors an operating-point solver's per-iteration
// loop; the mismatch/Jacobian math follows the scaled Delta|V|/|V|
// Jacobian convention.
package powerflow

import (
	"fmt"
	"math"

	"github.com/relaylab/gridfault/internal/gridlog"
	"github.com/relaylab/gridfault/pkg/admittance"
	"github.com/relaylab/gridfault/pkg/network"
	"github.com/relaylab/gridfault/pkg/sysmatrix"
)

// Config controls the Newton-Raphson iteration.
type Config struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultConfig returns tolerance 1e-6 with a 50-iteration cap.
func DefaultConfig() Config {
	return Config{MaxIterations: 50, Tolerance: 1e-6}
}

// Result reports the outcome of a solve. Non-convergence is not an
// error: the last iterate is still written back to the network,
// Converged is simply false.
type Result struct {
	Converged    bool
	Iterations   int
	MaxMismatch  float64
}

// Solve runs Newton-Raphson over net's current topology (as of the
// cache's next YBus() rebuild) and writes the solved voltage
// magnitude/angle back onto every bus, plus per-line flow and
// loading. log may be nil.
func Solve(net *network.Network, cache *admittance.Cache, cfg Config, log *gridlog.Logger) (*Result, error) {
	log = gridlog.OrNop(log)

	yBus, err := cache.YBus()
	if err != nil {
		return nil, fmt.Errorf("powerflow: %w", err)
	}
	idx := yBus.Index
	n := idx.ToSize()
	if n == 0 {
		return &Result{Converged: true}, nil
	}

	vMag := make([]float64, n)
	vAng := make([]float64, n)
	pSpec := make([]float64, n)
	qSpec := make([]float64, n)

	slackIdx := -1
	isPV := make([]bool, n)

	for _, key := range idx.IdxToKey {
		i := idx.KeyToIdx[key]
		bus, err := net.Bus(key)
		if err != nil {
			return nil, fmt.Errorf("powerflow: %w", err)
		}
		vMag[i] = bus.VoltagePU
		if vMag[i] == 0 {
			vMag[i] = 1.0
		}
		vAng[i] = bus.AngleRad
		pSpec[i] = bus.PNet() / net.SBaseMVA
		qSpec[i] = bus.QNet() / net.SBaseMVA
		switch bus.Role {
		case network.RoleSlack:
			slackIdx = i
		case network.RoleGenerator:
			isPV[i] = true
		}
	}
	if slackIdx < 0 {
		return nil, fmt.Errorf("powerflow: no slack bus")
	}

	nonSlack := make([]int, 0, n-1)
	pqIdx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i == slackIdx {
			continue
		}
		nonSlack = append(nonSlack, i)
		if !isPV[i] {
			pqIdx = append(pqIdx, i)
		}
	}

	g := func(i, j int) float64 { return real(yBus.Get(i, j)) }
	b := func(i, j int) float64 { return imag(yBus.Get(i, j)) }

	res := &Result{MaxMismatch: math.Inf(1)}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		pCalc, qCalc := calculatePower(n, vMag, vAng, g, b)

		mismatch := make([]float64, len(nonSlack)+len(pqIdx))
		maxAbs := 0.0
		for k, i := range nonSlack {
			mismatch[k] = pSpec[i] - pCalc[i]
			if v := math.Abs(mismatch[k]); v > maxAbs {
				maxAbs = v
			}
		}
		for k, i := range pqIdx {
			mismatch[len(nonSlack)+k] = qSpec[i] - qCalc[i]
			if v := math.Abs(mismatch[len(nonSlack)+k]); v > maxAbs {
				maxAbs = v
			}
		}
		res.MaxMismatch = maxAbs

		if maxAbs < cfg.Tolerance {
			res.Converged = true
			res.Iterations = iter + 1
			break
		}

		corrections, err := solveJacobian(n, vMag, vAng, g, b, nonSlack, pqIdx, mismatch)
		if err != nil {
			return nil, fmt.Errorf("powerflow: %w", err)
		}

		for k, i := range nonSlack {
			vAng[i] += corrections[k]
		}
		for k, i := range pqIdx {
			vMag[i] += corrections[len(nonSlack)+k] * vMag[i]
		}

		res.Iterations = iter + 1
	}

	if !res.Converged {
		log.Warn("power flow did not converge", "iterations", res.Iterations, "max_mismatch", res.MaxMismatch)
	}

	for _, key := range idx.IdxToKey {
		i := idx.KeyToIdx[key]
		bus, _ := net.Bus(key)
		bus.VoltagePU = vMag[i]
		bus.AngleRad = vAng[i]
	}

	calculateLineFlows(net, idx, vMag, vAng)

	return res, nil
}

func calculatePower(n int, vMag, vAng []float64, g, b func(i, j int) float64) (p, q []float64) {
	p = make([]float64, n)
	q = make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			gij, bij := g(i, j), b(i, j)
			d := vAng[i] - vAng[j]
			c, s := math.Cos(d), math.Sin(d)
			p[i] += vMag[i] * vMag[j] * (gij*c + bij*s)
			q[i] += vMag[i] * vMag[j] * (gij*s - bij*c)
		}
	}
	return p, q
}

// solveJacobian builds the polar Jacobian restricted to the free
// variables (nonSlack angles, pqIdx magnitudes-scaled-by-V) and solves
// J*dx = mismatch, falling back to a least-squares solve via the
// normal equations if J is singular.
func solveJacobian(n int, vMag, vAng []float64, g, b func(i, j int) float64, nonSlack, pqIdx []int, mismatch []float64) ([]float64, error) {
	np := len(nonSlack)
	nq := len(pqIdx)
	size := np + nq

	sys, err := sysmatrix.New(size, false)
	if err != nil {
		return nil, err
	}
	defer sys.Destroy()

	jEntry := func(i, j int) (j11, j12, j21, j22 float64) {
		gij, bij := g(i, j), b(i, j)
		if i == j {
			pi, qi := 0.0, 0.0
			for k := 0; k < n; k++ {
				d := vAng[i] - vAng[k]
				pi += vMag[i] * vMag[k] * (g(i, k)*math.Cos(d) + b(i, k)*math.Sin(d))
				qi += vMag[i] * vMag[k] * (g(i, k)*math.Sin(d) - b(i, k)*math.Cos(d))
			}
			j11 = -qi - bij*vMag[i]*vMag[i]
			j12 = pi/vMag[i] + gij*vMag[i]
			j21 = pi - gij*vMag[i]*vMag[i]
			j22 = qi/vMag[i] - bij*vMag[i]
			return
		}
		d := vAng[i] - vAng[j]
		c, s := math.Cos(d), math.Sin(d)
		j11 = vMag[i] * vMag[j] * (gij*s - bij*c)
		j12 = vMag[i] * (gij*c + bij*s)
		j21 = -vMag[i] * vMag[j] * (gij*c + bij*s)
		j22 = vMag[i] * (gij*s - bij*c)
		return
	}

	for r, row := range nonSlack {
		for c, col := range nonSlack {
			j11, _, _, _ := jEntry(row, col)
			sys.AddElement(r+1, c+1, j11)
		}
		for c, col := range pqIdx {
			_, j12, _, _ := jEntry(row, col)
			sys.AddElement(r+1, np+c+1, j12)
		}
	}
	for r, row := range pqIdx {
		for c, col := range nonSlack {
			_, _, j21, _ := jEntry(row, col)
			sys.AddElement(np+r+1, c+1, j21)
		}
		for c, col := range pqIdx {
			_, _, _, j22 := jEntry(row, col)
			sys.AddElement(np+r+1, np+c+1, j22)
		}
	}
	for i, v := range mismatch {
		sys.AddRHS(i+1, v)
	}

	sol, err := sys.Solve()
	if err == nil {
		return sol[1 : size+1], nil
	}

	// Singular Jacobian: least-squares via normal equations J^T J x = J^T b,
	// tolerating degenerate regions during early iterations.
	return leastSquaresFallback(sys, size, mismatch)
}

// leastSquaresFallback re-reads the stamped Jacobian's entries and
// solves the normal equations directly, since pkg/sysmatrix exposes
// Solve/SolveComplex but not a least-squares routine.
func leastSquaresFallback(sys *sysmatrix.Matrix, size int, mismatch []float64) ([]float64, error) {
	jt := make([][]float64, size)
	for i := range jt {
		jt[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			re, _ := sys.GetElement(j+1, i+1)
			jt[i][j] = re
		}
	}

	normal, err := sysmatrix.New(size, false)
	if err != nil {
		return nil, err
	}
	defer normal.Destroy()

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			sum := 0.0
			for k := 0; k < size; k++ {
				sum += jt[i][k] * jt[j][k]
			}
			normal.AddElement(i+1, j+1, sum)
		}
		rhs := 0.0
		for k := 0; k < size; k++ {
			rhs += jt[i][k] * mismatch[k]
		}
		normal.AddRHS(i+1, rhs)
	}

	sol, err := normal.Solve()
	if err != nil {
		return nil, fmt.Errorf("least-squares fallback also failed: %w", err)
	}
	return sol[1 : size+1], nil
}

// calculateLineFlows writes the post-solve series-admittance-only
// current/power/loading back to every closed line; the shunt
// half-branches are not included in reported flow.
func calculateLineFlows(net *network.Network, idx admittance.BusIndex, vMag, vAng []float64) {
	for _, l := range net.Lines() {
		if !l.Closed {
			l.CurrentPU = 0
			l.PowerFlowMW = 0
			continue
		}
		i := idx.KeyToIdx[l.From]
		j := idx.KeyToIdx[l.To]

		vi := complex(vMag[i]*math.Cos(vAng[i]), vMag[i]*math.Sin(vAng[i]))
		vj := complex(vMag[j]*math.Cos(vAng[j]), vMag[j]*math.Sin(vAng[j]))

		ySeries := l.SeriesAdmittancePU(net.ZBase)
		iij := (vi - vj) * ySeries
		sij := vi * cmplxConj(iij) * complex(net.SBaseMVA, 0)

		l.CurrentPU = cmplxAbs(iij)
		l.PowerFlowMW = real(sij)
	}
}

func cmplxConj(z complex128) complex128 { return complex(real(z), -imag(z)) }
func cmplxAbs(z complex128) float64     { return math.Hypot(real(z), imag(z)) }

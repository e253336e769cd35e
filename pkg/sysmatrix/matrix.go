// Package sysmatrix wraps github.com/edp1096/sparse in the two modes
// the grid core needs: a real-valued system (the power-flow Jacobian)
// and a complex-valued system (Y-bus, Z-bus, sequence networks). The
// constructor takes the mode explicitly, and the type adds a read
// accessor and a reusable-factorization solve, since the grid core
// needs to read matrix entries back (symmetry checks) and to solve
// the same factored system against many right-hand sides (building
// Z-bus one column at a time).
package sysmatrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// Matrix is a stamped linear system: callers add contributions with
// AddElement/AddComplexElement and AddRHS/AddComplexRHS, then Factor
// and Solve/SolveComplex. Indexing is 1-based, following the stamp
// convention where row/column 0 is reserved for ground/datum.
type Matrix struct {
	Size      int
	matrix    *sparse.Matrix
	rhs       []float64
	rhsImag   []float64
	solution  []float64
	solImag   []float64
	isComplex bool
	config    *sparse.Configuration
	factored  bool
}

// New creates a Size x Size stamped system. complex selects whether
// the system carries an imaginary part (Y-bus/Z-bus/sequence builds)
// or is purely real (the Newton-Raphson Jacobian).
func New(size int, complex bool) (*Matrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 complex,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("sysmatrix: create size=%d complex=%v: %w", size, complex, err)
	}

	vecSize := size + 1
	if complex {
		vecSize *= 2
	}

	return &Matrix{
		Size:      size,
		matrix:    mat,
		rhs:       make([]float64, vecSize),
		rhsImag:   make([]float64, size+1),
		solution:  make([]float64, vecSize),
		solImag:   make([]float64, size+1),
		isComplex: complex,
		config:    config,
	}, nil
}

func (m *Matrix) inBounds(i, j int) bool {
	return i >= 1 && i <= m.Size && j >= 1 && j <= m.Size
}

// AddElement accumulates a real-valued stamp at (i, j).
func (m *Matrix) AddElement(i, j int, value float64) {
	if !m.inBounds(i, j) {
		return
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

// AddComplexElement accumulates a complex-valued stamp at (i, j).
func (m *Matrix) AddComplexElement(i, j int, real, imag float64) {
	if !m.inBounds(i, j) {
		return
	}
	e := m.matrix.GetElement(int64(i), int64(j))
	e.Real += real
	e.Imag += imag
}

// GetElement reads back the current stamped value at (i, j), used by
// invariants that inspect the assembled system directly (e.g. Y-bus
// symmetry) rather than its solution.
func (m *Matrix) GetElement(i, j int) (real, imag float64) {
	if !m.inBounds(i, j) {
		return 0, 0
	}
	e := m.matrix.GetElement(int64(i), int64(j))
	return e.Real, e.Imag
}

// AddRHS accumulates a real right-hand-side contribution at row i.
func (m *Matrix) AddRHS(i int, value float64) {
	if i < 1 || i > m.Size {
		return
	}
	m.rhs[i] += value
}

// AddComplexRHS accumulates a complex right-hand-side contribution at row i.
func (m *Matrix) AddComplexRHS(i int, real, imag float64) {
	if i < 1 || i > m.Size {
		return
	}
	m.rhs[2*i] += real
	m.rhs[2*i+1] += imag
}

// LoadDiagonal adds value to the real part of every diagonal element;
// used as the Y-bus singularity regularization fallback (add a 1e-10
// perturbation and retry).
func (m *Matrix) LoadDiagonal(value float64) {
	for i := 1; i <= m.Size; i++ {
		if d := m.matrix.Diags[i]; d != nil {
			d.Real += value
		}
	}
}

// ClearRHS zeroes only the right-hand side, keeping stamped elements
// and any existing factorization intact. Used to solve a factored
// system against successive unit vectors (Z-bus column assembly)
// without re-stamping or re-factoring.
func (m *Matrix) ClearRHS() {
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i := range m.rhsImag {
		m.rhsImag[i] = 0
	}
}

// Clear resets stamped elements and the right-hand side, invalidating
// any factorization.
func (m *Matrix) Clear() {
	m.matrix.Clear()
	m.ClearRHS()
	m.factored = false
}

// Factor performs the (re-)factorization of the currently stamped
// system. Solve/SolveComplex may be called repeatedly afterwards
// against different right-hand sides without re-factoring.
func (m *Matrix) Factor() error {
	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("sysmatrix: factor: %w", err)
	}
	m.factored = true
	return nil
}

// Solve factors (if not already factored) and solves the real system.
func (m *Matrix) Solve() ([]float64, error) {
	var err error
	if !m.factored {
		if err = m.Factor(); err != nil {
			return nil, err
		}
	}
	m.solution, err = m.matrix.Solve(m.rhs)
	if err != nil {
		return nil, fmt.Errorf("sysmatrix: solve: %w", err)
	}
	return m.solution, nil
}

// SolveComplex factors (if not already factored) and solves the
// complex system, returning the real and imaginary parts of the
// solution vector.
func (m *Matrix) SolveComplex() (real, imag []float64, err error) {
	if !m.factored {
		if err = m.Factor(); err != nil {
			return nil, nil, err
		}
	}
	m.solution, m.solImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	if err != nil {
		return nil, nil, fmt.Errorf("sysmatrix: solve complex: %w", err)
	}
	return m.solution, m.solImag, nil
}

// Solution returns the last real solution vector (1-based).
func (m *Matrix) Solution() []float64 { return m.solution }

// ComplexSolution returns the (real, imag) solution at index i.
func (m *Matrix) ComplexSolution(i int) (float64, float64) {
	if !m.isComplex || i < 1 || i > m.Size {
		return 0, 0
	}
	return m.solution[i], m.solution[i+m.Size]
}

func (m *Matrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}

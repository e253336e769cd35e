package fault

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/relaylab/gridfault/internal/gridlog"
	"github.com/relaylab/gridfault/pkg/admittance"
	"github.com/relaylab/gridfault/pkg/network"
)

// LocationKind is where a fault is placed.
type LocationKind int

const (
	LocationBus LocationKind = iota
	LocationLine
)

// PreFaultMode selects how the pre-fault voltage at the fault point is
// estimated. Flat is the standard short-circuit-study approximation
// (1.0 pu everywhere); Solved instead reads back the bus's last
// power-flow solution. Flat is the default.
type PreFaultMode int

const (
	PreFaultFlat PreFaultMode = iota
	PreFaultSolved
)

// Fault is a value object describing one fault event.
type Fault struct {
	Kind       Kind
	Location   LocationKind
	ElementKey int
	Position   float64 // meaningful only for line faults
	ResistanceOhm float64
	Active     bool

	Detected         bool
	DetectedPosition *float64

	PhaseCurrentsAmp [3]float64 // Ia, Ib, Ic magnitudes, set once computed
}

func (f *Fault) IsBusFault() bool  { return f.Location == LocationBus }
func (f *Fault) IsLineFault() bool { return f.Location == LocationLine }

// DetectionError returns the absolute error between the detector's
// estimated position and the true position, or false if undetected or
// not a line fault (bus-fault detection has no position to compare).
func (f *Fault) DetectionError() (float64, bool) {
	if !f.Detected || f.DetectedPosition == nil || !f.IsLineFault() {
		return 0, false
	}
	err := *f.DetectedPosition - f.Position
	if err < 0 {
		err = -err
	}
	return err, true
}

func (f *Fault) String() string {
	loc := fmt.Sprintf("Bus %d", f.ElementKey)
	if f.IsLineFault() {
		loc = fmt.Sprintf("Line %d @ %.0f%%", f.ElementKey, f.Position*100)
	}
	status := "CLEARED"
	if f.Active {
		status = "ACTIVE"
	}
	detected := ""
	if f.Detected && f.DetectedPosition != nil {
		detected = fmt.Sprintf(", DETECTED @ %.0f%%", *f.DetectedPosition*100)
	}
	return fmt.Sprintf("Fault(%s, %s, R=%gohm, %s%s)", f.Kind, loc, f.ResistanceOhm, status, detected)
}

// KindWeight pairs a fault kind with its relative probability in
// random fault generation.
type KindWeight struct {
	Kind   Kind
	Weight float64
}

// DefaultKindWeights is the weighted fault-kind table exported as
// data (the original hardcodes this inline in inject_random_fault;
// exporting it lets a caller substitute a different distribution
// without touching Simulator internals).
var DefaultKindWeights = []KindWeight{
	{KindSLG, 0.7},
	{KindLL, 0.1},
	{KindDLG, 0.1},
	{KindLLL, 0.05},
	{KindOpen, 0.05},
}

// DefaultLineFaultProbability is the chance a random fault lands on a
// line rather than a bus.
const DefaultLineFaultProbability = 0.8

var (
	ErrNoElements = errors.New("fault: network has no elements to fault")
)

// Simulator places faults on a network and derives their phase
// currents from the sequence networks.
type Simulator struct {
	net  *network.Network
	rng  *rand.Rand
	mode PreFaultMode
	log  *gridlog.Logger

	active []*Fault
}

// NewSimulator constructs a simulator over net. rng must be an
// explicit seeded generator, not the global math/rand source, so
// fault injection stays reproducible across runs and tests.
func NewSimulator(net *network.Network, rng *rand.Rand, mode PreFaultMode, log *gridlog.Logger) *Simulator {
	return &Simulator{net: net, rng: rng, mode: mode, log: gridlog.OrNop(log)}
}

func (s *Simulator) ActiveFaults() []*Fault { return s.active }

// InjectBusFault marks bus as faulted and computes its fault current.
func (s *Simulator) InjectBusFault(busKey int, kind Kind, resistanceOhm float64) (*Fault, error) {
	if _, err := s.net.Bus(busKey); err != nil {
		return nil, err
	}

	f := &Fault{Kind: kind, Location: LocationBus, ElementKey: busKey, ResistanceOhm: resistanceOhm, Active: true}

	if err := s.net.ApplyBusFault(busKey, kind); err != nil {
		return nil, err
	}
	if err := s.computeBusFaultCurrent(f); err != nil {
		return nil, err
	}

	s.active = append(s.active, f)
	s.log.Info("injected bus fault", "bus", busKey, "kind", kind.String())
	return f, nil
}

// InjectLineFault marks a line faulted at position (clamped to
// [0,1]); an OPEN kind also opens the line.
func (s *Simulator) InjectLineFault(lineKey int, kind Kind, position, resistanceOhm float64) (*Fault, error) {
	if _, err := s.net.Line(lineKey); err != nil {
		return nil, err
	}
	if position < 0 {
		position = 0
	} else if position > 1 {
		position = 1
	}

	f := &Fault{Kind: kind, Location: LocationLine, ElementKey: lineKey, Position: position, ResistanceOhm: resistanceOhm, Active: true}

	if err := s.net.ApplyLineFault(lineKey, kind, position); err != nil {
		return nil, err
	}
	if err := s.computeLineFaultCurrent(f); err != nil {
		return nil, err
	}

	s.active = append(s.active, f)
	s.log.Info("injected line fault", "line", lineKey, "kind", kind.String(), "position", position)
	return f, nil
}

// InjectRandomFault draws a fault kind and location from
// DefaultKindWeights / DefaultLineFaultProbability using the
// simulator's seeded generator.
func (s *Simulator) InjectRandomFault() (*Fault, error) {
	kind := s.drawKind()

	lines := s.net.Lines()
	buses := s.net.Buses()

	if s.rng.Float64() < DefaultLineFaultProbability && len(lines) > 0 {
		l := lines[s.rng.Intn(len(lines))]
		position := 0.1 + s.rng.Float64()*0.8
		resistance := s.rng.Float64() * 10
		return s.InjectLineFault(l.Key, kind, position, resistance)
	}
	if len(buses) > 0 {
		b := buses[s.rng.Intn(len(buses))]
		resistance := s.rng.Float64() * 5
		return s.InjectBusFault(b.Key, kind, resistance)
	}
	return nil, ErrNoElements
}

func (s *Simulator) drawKind() Kind {
	r := s.rng.Float64()
	cumulative := 0.0
	for _, kw := range DefaultKindWeights {
		cumulative += kw.Weight
		if r < cumulative {
			return kw.Kind
		}
	}
	return KindSLG
}

// ClearFault deactivates f and restores the faulted element's state.
func (s *Simulator) ClearFault(f *Fault) error {
	f.Active = false

	if f.IsBusFault() {
		if err := s.net.ClearBusFault(f.ElementKey); err != nil {
			return err
		}
	} else {
		if err := s.net.ClearLineFault(f.ElementKey); err != nil {
			return err
		}
	}

	for i, active := range s.active {
		if active == f {
			s.active = append(s.active[:i], s.active[i+1:]...)
			break
		}
	}
	return nil
}

// ClearAllFaults deactivates every active fault and restores the
// network topology.
func (s *Simulator) ClearAllFaults() {
	for _, f := range s.active {
		f.Active = false
	}
	s.active = nil
	s.net.ClearAllFaults()
}

func (s *Simulator) preFaultVoltage(atBusKey int) (complex128, error) {
	if s.mode == PreFaultFlat {
		return complex(1, 0), nil
	}
	bus, err := s.net.Bus(atBusKey)
	if err != nil {
		return 0, err
	}
	return bus.VoltageComplex(), nil
}

func (s *Simulator) currentBaseAmp() float64 {
	return s.net.Base.CurrentBaseAmp()
}

func (s *Simulator) computeBusFaultCurrent(f *Fault) error {
	seq, err := admittance.BuildSequenceNetworks(s.net, s.log)
	if err != nil {
		return fmt.Errorf("fault: %w", err)
	}
	i, ok := seq.Index.KeyToIdx[f.ElementKey]
	if !ok {
		return fmt.Errorf("fault: bus %d not in sequence index", f.ElementKey)
	}

	vf, err := s.preFaultVoltage(f.ElementKey)
	if err != nil {
		return err
	}

	z0 := seq.Z0[i][i]
	z1 := seq.Z1[i][i]
	z2 := seq.Z2[i][i]
	zf := complex(f.ResistanceOhm/s.net.ZBase, 0)

	i0, i1, i2 := SequenceCurrents(f.Kind, vf, z0, z1, z2, zf)
	ia, ib, ic := SequenceToPhase(i0, i1, i2)

	base := s.currentBaseAmp()
	f.PhaseCurrentsAmp = [3]float64{cabs(ia) * base, cabs(ib) * base, cabs(ic) * base}
	return nil
}

func (s *Simulator) computeLineFaultCurrent(f *Fault) error {
	line, err := s.net.Line(f.ElementKey)
	if err != nil {
		return err
	}

	seq, err := admittance.BuildSequenceNetworks(s.net, s.log)
	if err != nil {
		return fmt.Errorf("fault: %w", err)
	}
	fromIdx, ok := seq.Index.KeyToIdx[line.From]
	if !ok {
		return fmt.Errorf("fault: bus %d not in sequence index", line.From)
	}

	vf, err := s.preFaultVoltage(line.From)
	if err != nil {
		return err
	}

	zLineToFault := line.SeriesImpedancePU(s.net.ZBase) * complex(f.Position, 0)
	z0Line := line.ZeroSeqPU(s.net.ZBase) * complex(f.Position, 0)

	z0 := seq.Z0[fromIdx][fromIdx] + z0Line
	z1 := seq.Z1[fromIdx][fromIdx] + zLineToFault
	z2 := seq.Z2[fromIdx][fromIdx] + zLineToFault
	zf := complex(f.ResistanceOhm/s.net.ZBase, 0)

	i0, i1, i2 := SequenceCurrents(f.Kind, vf, z0, z1, z2, zf)
	ia, ib, ic := SequenceToPhase(i0, i1, i2)

	base := s.currentBaseAmp()
	f.PhaseCurrentsAmp = [3]float64{cabs(ia) * base, cabs(ib) * base, cabs(ic) * base}
	return nil
}

func cabs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}

// Package network holds the grid topology: buses, lines, and the
// adjacency derived from them. It owns all mutable electrical state
// (voltage solutions, fault flags, breaker state) and exposes a
// version counter so downstream cache layers (pkg/admittance) can
// detect staleness without network importing them back.
package network

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/katalvlaran/lvlath/core"
	"github.com/relaylab/gridfault/internal/baseunits"
)

var (
	// ErrNotFound is returned when a referenced bus or line key does not exist.
	ErrNotFound = errors.New("network: not found")
	// ErrInvalidTopology is returned when a mutation would leave the topology inconsistent.
	ErrInvalidTopology = errors.New("network: invalid topology")
)

// BusRole classifies a bus for power-flow purposes.
type BusRole int

const (
	RoleLoad BusRole = iota
	RoleGenerator
	RoleSlack
)

func (r BusRole) String() string {
	switch r {
	case RoleSlack:
		return "slack"
	case RoleGenerator:
		return "generator"
	default:
		return "load"
	}
}

// FaultKind tags the kind of fault carried on a bus or line. It lives
// here, not in pkg/fault, because both Bus and Line need to store it
// and pkg/fault already depends on pkg/network for topology access —
// putting the tag in pkg/fault would create an import cycle.
type FaultKind int

const (
	FaultNone FaultKind = iota
	FaultSLG
	FaultLL
	FaultDLG
	FaultLLL
	FaultOpen
)

// DisplayName is the human-readable label the original exposes as
// FaultType.display_name, used by CLI output instead of a raw tag.
func (k FaultKind) DisplayName() string {
	switch k {
	case FaultSLG:
		return "Single Line-to-Ground (SLG)"
	case FaultLL:
		return "Line-to-Line (LL)"
	case FaultDLG:
		return "Double Line-to-Ground (DLG)"
	case FaultLLL:
		return "Three-Phase (LLL)"
	case FaultOpen:
		return "Open Circuit"
	default:
		return "None"
	}
}

// Severity is a 1-5 severity rating, 5 most severe, matching the
// original's FaultType.severity.
func (k FaultKind) Severity() int {
	switch k {
	case FaultOpen:
		return 2
	case FaultSLG:
		return 3
	case FaultLL, FaultDLG:
		return 4
	case FaultLLL:
		return 5
	default:
		return 0
	}
}

func (k FaultKind) String() string {
	switch k {
	case FaultSLG:
		return "SLG"
	case FaultLL:
		return "LL"
	case FaultDLG:
		return "DLG"
	case FaultLLL:
		return "LLL"
	case FaultOpen:
		return "OPEN"
	default:
		return "none"
	}
}

// Bus is a substation/node in the grid.
type Bus struct {
	Key  int
	Name string
	Role BusRole

	NominalKV float64

	// Solved state, written by pkg/powerflow. Angle is always radians.
	VoltagePU float64
	AngleRad  float64

	// Specified injections, in MW/Mvar.
	PGen, QGen   float64
	PLoad, QLoad float64

	X, Y float64 // position, consumed only by external renderers

	Faulted   bool
	FaultKind FaultKind
}

// PNet returns net active power injection (generation - load) in MW.
func (b *Bus) PNet() float64 { return b.PGen - b.PLoad }

// QNet returns net reactive power injection in Mvar.
func (b *Bus) QNet() float64 { return b.QGen - b.QLoad }

// VoltageComplex returns the solved per-unit complex voltage.
func (b *Bus) VoltageComplex() complex128 {
	return complex(b.VoltagePU*math.Cos(b.AngleRad), b.VoltagePU*math.Sin(b.AngleRad))
}

func (b *Bus) applyFault(kind FaultKind) {
	b.Faulted = true
	b.FaultKind = kind
}

func (b *Bus) clearFault() {
	b.Faulted = false
	b.FaultKind = FaultNone
}

// Line is a transmission line connecting two buses, modeled as a PI
// section: series R+jX with half the total shunt susceptance at each
// end.
type Line struct {
	Key        int
	From, To   int
	LengthKM   float64
	RPerKM     float64 // ohm/km
	XPerKM     float64 // ohm/km
	BPerKM     float64 // siemens/km, total (both ends)
	RatingMVA  float64
	ZeroSeqRRatio float64
	ZeroSeqXRatio float64

	Closed bool

	Faulted      bool
	FaultKind    FaultKind
	FaultPos     float64 // fraction in [0,1] from "From"

	// Post-solve state, written by pkg/powerflow.
	CurrentPU    float64
	PowerFlowMW  float64
}

// LoadingPercent returns |P_flow| / rating * 100, 0 if unrated.
func (l *Line) LoadingPercent() float64 {
	if l.RatingMVA <= 0 {
		return 0
	}
	return math.Abs(l.PowerFlowMW) / l.RatingMVA * 100
}

// DistanceToFault returns the physical distance in km to the current
// fault position, a convenience the original exposes alongside the
// dimensionless fraction.
func (l *Line) DistanceToFault() float64 {
	return l.LengthKM * l.FaultPos
}

func (l *Line) openLine() { l.Closed = false }

func (l *Line) closeLine() {
	l.Closed = true
	l.Faulted = false
	l.FaultKind = FaultNone
}

func (l *Line) applyFault(kind FaultKind, pos float64) {
	l.Faulted = true
	l.FaultKind = kind
	l.FaultPos = clamp01(pos)
}

func (l *Line) clearFault() {
	l.Faulted = false
	l.FaultKind = FaultNone
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// seriesImpedanceOhm returns r, x in ohms over the line's length.
func (l *Line) seriesImpedanceOhm() (r, x float64) {
	return l.RPerKM * l.LengthKM, l.XPerKM * l.LengthKM
}

// ZeroSeqPU returns the zero-sequence series impedance in per-unit,
// given Z_base — the positive-sequence impedance scaled by the
// configured zero-sequence ratios.
func (l *Line) ZeroSeqPU(zBaseOhm float64) complex128 {
	r, x := l.seriesImpedanceOhm()
	return complex(r*l.ZeroSeqRRatio/zBaseOhm, x*l.ZeroSeqXRatio/zBaseOhm)
}

// SeriesImpedancePU returns the positive/negative-sequence series
// impedance in per-unit.
func (l *Line) SeriesImpedancePU(zBaseOhm float64) complex128 {
	r, x := l.seriesImpedanceOhm()
	return complex(r/zBaseOhm, x/zBaseOhm)
}

// SeriesAdmittancePU returns 1/z_series, or 0 if z_series is
// negligibly small.
func (l *Line) SeriesAdmittancePU(zBaseOhm float64) complex128 {
	z := l.SeriesImpedancePU(zBaseOhm)
	if cAbs(z) < 1e-10 {
		return 0
	}
	return 1 / z
}

// ShuntSusceptancePU returns the total (both-ends) shunt susceptance
// in per-unit.
func (l *Line) ShuntSusceptancePU(zBaseOhm float64) float64 {
	return l.BPerKM * l.LengthKM * zBaseOhm
}

func cAbs(z complex128) float64 { return math.Hypot(real(z), imag(z)) }

// Network owns all buses and lines by key. version increments on every
// topology mutation so admittance caches elsewhere can detect
// staleness without this package depending on them.
type Network struct {
	Name     string
	ZBase    float64 // ohm
	SBaseMVA float64
	Base     *baseunits.Base

	buses map[int]*Bus
	lines map[int]*Line
	adj   *core.Graph // string(busKey) vertices, one edge per line between its two buses

	version int
}

// New creates an empty network parameterized by the given per-unit
// base, passed in explicitly at construction rather than held as a
// package-level constant.
func New(name string, base *baseunits.Base) *Network {
	if base == nil {
		base = baseunits.Default()
	}
	return &Network{
		Name:     name,
		ZBase:    base.ImpedanceBaseOhm(),
		SBaseMVA: base.PowerBaseMVA,
		Base:     base,
		buses:    make(map[int]*Bus),
		lines:    make(map[int]*Line),
		adj:      core.NewGraph(),
	}
}

// NewBus constructs a bus with the 1∠0 default voltage estimate power
// flow starts iteration from.
func NewBus(key int, name string, role BusRole, kv float64) *Bus {
	return &Bus{Key: key, Name: name, Role: role, NominalKV: kv, VoltagePU: 1.0}
}

// NewLine constructs a line from per-km defaults and the network's
// configured zero-sequence ratios.
func NewLine(key, from, to int, lengthKM float64, base *baseunits.Base) *Line {
	if base == nil {
		base = baseunits.Default()
	}
	return &Line{
		Key: key, From: from, To: to, LengthKM: lengthKM,
		RPerKM: base.LineResistancePerKM, XPerKM: base.LineReactancePerKM, BPerKM: base.LineSusceptancePerKM,
		RatingMVA:     400.0,
		ZeroSeqRRatio: base.ZeroSeqResistanceRatio,
		ZeroSeqXRatio: base.ZeroSeqReactanceRatio,
		Closed:        true,
		FaultPos:      0.5,
	}
}

// Version returns the current topology version, bumped by every
// mutating call (AddBus, AddLine, OpenLine, CloseLine, fault
// application/clear that toggles a line).
func (n *Network) Version() int { return n.version }

func (n *Network) bump() { n.version++ }

func busVertexID(key int) string { return strconv.Itoa(key) }

// AddBus inserts a bus as given, rejecting a nil bus or a duplicate
// key. Invalidates cached matrices (version bump).
func (n *Network) AddBus(b *Bus) error {
	if b == nil {
		return fmt.Errorf("%w: nil bus", ErrInvalidTopology)
	}
	if _, exists := n.buses[b.Key]; exists {
		return fmt.Errorf("%w: bus %d already exists", ErrInvalidTopology, b.Key)
	}
	n.buses[b.Key] = b
	if err := n.adj.AddVertex(busVertexID(b.Key)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	n.bump()
	return nil
}

// AddLine inserts a line. Both endpoints must already exist, and a
// line is never its own self-loop.
func (n *Network) AddLine(l *Line) error {
	if l == nil {
		return fmt.Errorf("%w: nil line", ErrInvalidTopology)
	}
	if l.From == l.To {
		return fmt.Errorf("%w: line %d is a self-loop", ErrInvalidTopology, l.Key)
	}
	if _, ok := n.buses[l.From]; !ok {
		return fmt.Errorf("%w: line %d from-bus %d missing", ErrInvalidTopology, l.Key, l.From)
	}
	if _, ok := n.buses[l.To]; !ok {
		return fmt.Errorf("%w: line %d to-bus %d missing", ErrInvalidTopology, l.Key, l.To)
	}
	if _, exists := n.lines[l.Key]; exists {
		return fmt.Errorf("%w: line %d already exists", ErrInvalidTopology, l.Key)
	}

	l.Closed = true
	n.lines[l.Key] = l

	if _, err := n.adj.AddEdge(busVertexID(l.From), busVertexID(l.To), 0); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTopology, err)
	}
	n.bump()
	return nil
}

func (n *Network) Bus(key int) (*Bus, error) {
	b, ok := n.buses[key]
	if !ok {
		return nil, fmt.Errorf("%w: bus %d", ErrNotFound, key)
	}
	return b, nil
}

func (n *Network) Line(key int) (*Line, error) {
	l, ok := n.lines[key]
	if !ok {
		return nil, fmt.Errorf("%w: line %d", ErrNotFound, key)
	}
	return l, nil
}

// Buses returns all buses, in no particular order.
func (n *Network) Buses() []*Bus {
	out := make([]*Bus, 0, len(n.buses))
	for _, b := range n.buses {
		out = append(out, b)
	}
	return out
}

// Lines returns all lines, in no particular order.
func (n *Network) Lines() []*Line {
	out := make([]*Line, 0, len(n.lines))
	for _, l := range n.lines {
		out = append(out, l)
	}
	return out
}

// BusKeysSorted returns all bus keys ascending — the canonical index
// order every matrix builder and consumer must agree on.
func (n *Network) BusKeysSorted() []int {
	keys := make([]int, 0, len(n.buses))
	for k := range n.buses {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// LineKeysSorted returns all line keys ascending, for deterministic
// iteration (e.g. the impedance detector's "first line that picks up").
func (n *Network) LineKeysSorted() []int {
	keys := make([]int, 0, len(n.lines))
	for k := range n.lines {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SlackBus returns the (unique, by invariant) slack bus.
func (n *Network) SlackBus() (*Bus, error) {
	for _, b := range n.buses {
		if b.Role == RoleSlack {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: no slack bus configured", ErrInvalidTopology)
}

// Neighbors returns bus keys directly connected to bus via any line,
// closed or not.
func (n *Network) Neighbors(busKey int) ([]int, error) {
	if _, ok := n.buses[busKey]; !ok {
		return nil, fmt.Errorf("%w: bus %d", ErrNotFound, busKey)
	}
	ids, err := n.adj.NeighborIDs(busVertexID(busKey))
	if err != nil {
		return nil, fmt.Errorf("network: neighbors: %w", err)
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		k, convErr := strconv.Atoi(id)
		if convErr == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

// LineBetween returns the line connecting the two buses, if any.
func (n *Network) LineBetween(a, b int) (*Line, error) {
	for _, l := range n.lines {
		if (l.From == a && l.To == b) || (l.From == b && l.To == a) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: no line between %d and %d", ErrNotFound, a, b)
}

// ConnectedLines returns every line incident to busKey.
func (n *Network) ConnectedLines(busKey int) []*Line {
	var out []*Line
	for _, l := range n.lines {
		if l.From == busKey || l.To == busKey {
			out = append(out, l)
		}
	}
	return out
}

// OpenLine marks a line open (breaker trip) and invalidates caches.
func (n *Network) OpenLine(key int) error {
	l, err := n.Line(key)
	if err != nil {
		return err
	}
	l.openLine()
	n.bump()
	return nil
}

// CloseLine re-closes a line, also clearing any fault flag the line
// was carrying.
func (n *Network) CloseLine(key int) error {
	l, err := n.Line(key)
	if err != nil {
		return err
	}
	l.closeLine()
	n.bump()
	return nil
}

// ApplyBusFault marks a bus faulted. Does not by itself invalidate the
// Y-bus (a faulted bus changes nothing about the topology unless the
// caller separately opens incident lines).
func (n *Network) ApplyBusFault(key int, kind FaultKind) error {
	b, err := n.Bus(key)
	if err != nil {
		return err
	}
	b.applyFault(kind)
	return nil
}

func (n *Network) ClearBusFault(key int) error {
	b, err := n.Bus(key)
	if err != nil {
		return err
	}
	b.clearFault()
	return nil
}

// ApplyLineFault marks a line faulted at the given position. An OPEN
// fault kind also opens the line (topology-invalidating): an
// open-conductor fault behaves exactly like an open line for
// power-flow purposes.
func (n *Network) ApplyLineFault(key int, kind FaultKind, pos float64) error {
	l, err := n.Line(key)
	if err != nil {
		return err
	}
	l.applyFault(kind, pos)
	if kind == FaultOpen {
		l.openLine()
		n.bump()
	}
	return nil
}

func (n *Network) ClearLineFault(key int) error {
	l, err := n.Line(key)
	if err != nil {
		return err
	}
	wasOpenFault := l.FaultKind == FaultOpen
	l.clearFault()
	if wasOpenFault {
		l.closeLine()
		n.bump()
	}
	return nil
}

// ClearAllFaults restores every bus and line to an unfaulted, closed
// state and invalidates caches.
func (n *Network) ClearAllFaults() {
	for _, b := range n.buses {
		b.clearFault()
	}
	for _, l := range n.lines {
		l.clearFault()
		if !l.Closed {
			l.closeLine()
		}
	}
	n.bump()
}

// FaultedElements returns the currently faulted buses and lines.
func (n *Network) FaultedElements() (buses []*Bus, lines []*Line) {
	for _, b := range n.buses {
		if b.Faulted {
			buses = append(buses, b)
		}
	}
	for _, l := range n.lines {
		if l.Faulted {
			lines = append(lines, l)
		}
	}
	return buses, lines
}

// Graph exposes the underlying adjacency graph for detectors that
// need to run BFS directly (shortest path, connected sections).
func (n *Network) Graph() *core.Graph { return n.adj }

// LineIsTraversable reports whether a line currently carries power
// flow admittance — closed and not open-conductor-faulted.
func (l *Line) LineIsTraversable() bool {
	return l.Closed && l.FaultKind != FaultOpen
}

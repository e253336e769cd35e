package gridio

import (
	"fmt"
	"math"
)

// FormatPU renders a per-unit magnitude: scientific notation outside
// [1e-3, 1e3), fixed-point inside and for exactly zero.
func FormatPU(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e pu", value)
	}
	return fmt.Sprintf("%8.4f pu", value)
}

// FormatAngleDeg renders a radian angle in degrees.
func FormatAngleDeg(rad float64) string {
	return fmt.Sprintf("%6.2f deg", rad*180/math.Pi)
}

// FormatPower renders a MW/Mvar quantity, switching to kW/kvar below
// 1 MW.
func FormatPower(mw float64, unit string) string {
	absValue := math.Abs(mw)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f M%s", mw, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f k%s", mw*1e3, unit)
	default:
		return fmt.Sprintf("%.3e M%s", mw, unit)
	}
}

// FormatVoltagePhasor renders a bus's solved voltage as magnitude<angle.
func FormatVoltagePhasor(vpu, angleRad float64) string {
	var magStr string
	switch {
	case vpu >= 1000:
		magStr = fmt.Sprintf("%8.2e", vpu)
	case vpu < 0.001:
		magStr = fmt.Sprintf("%8.2e", vpu)
	default:
		magStr = fmt.Sprintf("%8.4f", vpu)
	}
	return fmt.Sprintf("%s<%6.2fdeg", magStr, angleRad*180/math.Pi)
}

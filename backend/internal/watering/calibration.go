package watering

import (
	"errors"
	"math"
)

// ErrCalibrationUndefined is returned when the dry and wet calibration points are equal.
var ErrCalibrationUndefined = errors.New("calibration undefined: dry and wet raw values are equal")

// Calibration holds the raw sensor values measured in dry and in saturated soil.
// Either polarity is valid: some sensors read lower when wet, others higher.
type Calibration struct {
	DryRaw int `yaml:"dry_raw" json:"dryRaw"`
	WetRaw int `yaml:"wet_raw" json:"wetRaw"`
}

// Valid reports whether the calibration can map raw values.
func (c Calibration) Valid() bool {
	return c.DryRaw != c.WetRaw
}

// ToPercent maps a raw sample onto 0% (dry) to 100% (wet), clamped to [0, 100].
func ToPercent(raw float64, cal Calibration) (float64, error) {
	if !cal.Valid() {
		return 0, ErrCalibrationUndefined
	}

	dry := float64(cal.DryRaw)
	wet := float64(cal.WetRaw)

	percent := (dry - raw) / (dry - wet) * 100

	return clamp(percent, 0, 100), nil
}

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

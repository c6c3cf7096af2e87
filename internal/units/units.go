// Package units maps measurement unit symbols to mass and volume factors.
package units

// Class is the measurement family a unit belongs to.
type Class int

// Unit classes.
const (
	Unknown Class = iota
	Mass
	Volume
	Count
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case Mass:
		return "mass"
	case Volume:
		return "volume"
	case Count:
		return "count"
	default:
		return "unknown"
	}
}

// Common unit symbols.
const (
	Gram     = "g"
	Kilogram = "kg"
	Each     = "each"
)

// gramsPer holds grams per unit for mass units.
var gramsPer = map[string]float64{
	"mg": 0.001,
	"g":  1,
	"kg": 1000,
	"oz": 28.349523125,
	"lb": 453.59237,
}

// litersPer holds liters per unit for volume units.
var litersPer = map[string]float64{
	"ml":    0.001,
	"l":     1,
	"tsp":   0.00492892159375,
	"tbsp":  0.01478676478125,
	"fl oz": 0.0295735295625,
	"cup":   0.2365882365,
	"pt":    0.473176473,
	"qt":    0.946352946,
	"gal":   3.785411784,
}

// MassUnits lists mass units in presentation order.
var MassUnits = []string{"g", "kg", "mg", "oz", "lb"}

// VolumeUnits lists volume units in presentation order.
var VolumeUnits = []string{"ml", "l", "tsp", "tbsp", "fl oz", "cup", "pt", "qt", "gal"}

// YieldUnits lists the units a prepped item may declare its yield in.
var YieldUnits = []string{Gram, Kilogram, Each}

// MassGrams returns grams per unit for a mass unit.
func MassGrams(unit string) (float64, bool) {
	g, ok := gramsPer[unit]
	return g, ok
}

// VolumeLiters returns liters per unit for a volume unit.
func VolumeLiters(unit string) (float64, bool) {
	l, ok := litersPer[unit]
	return l, ok
}

// Classify reports which family unit belongs to.
func Classify(unit string) Class {
	switch {
	case unit == Each:
		return Count
	case gramsPer[unit] > 0:
		return Mass
	case litersPer[unit] > 0:
		return Volume
	default:
		return Unknown
	}
}

// ValidFor returns the units a recipe line may use for a referenced item.
// Volume units need a density and are only offered for raw items; each
// needs a known per-unit weight.
func ValidFor(raw, hasDensity, hasEachWeight bool) []string {
	out := make([]string, 0, len(MassUnits)+len(VolumeUnits)+1)
	out = append(out, MassUnits...)
	if raw && hasDensity {
		out = append(out, VolumeUnits...)
	}
	if hasEachWeight {
		out = append(out, Each)
	}
	return out
}

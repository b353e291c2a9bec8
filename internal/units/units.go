// Package units defines the internal unit system of the engine and the
// conversion constants between user-facing units and internal units.
//
// Internal units are eV for energy, Å for length and fs for time. Masses,
// temperatures and pressures supplied by callers (AMU, Kelvin, bar) are
// converted once at construction and never leak back out unconverted.
package units

const (
	// MassAMU converts atomic mass units to eV·fs²/Å².
	MassAMU = 1.036427e2

	// TemperatureK converts Kelvin to eV.
	TemperatureK = 8.617333e-5

	// PressureBar converts bar to eV/Å³.
	PressureBar = 6.241509e-7
)

func MassToInternal(amu float64) float64 { return amu * MassAMU }

func MassFromInternal(m float64) float64 { return m / MassAMU }

func TempToInternal(kelvin float64) float64 { return kelvin * TemperatureK }

func TempFromInternal(kT float64) float64 { return kT / TemperatureK }

func PressureToInternal(bar float64) float64 { return bar * PressureBar }

func PressureFromInternal(p float64) float64 { return p / PressureBar }

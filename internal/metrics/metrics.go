// Package metrics computes the scalar diagnostics reported by the driver.
package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/atomforge/mdsim/internal/units"
)

// KineticEnergy sums 1/2 m v^2 over atoms (masses in internal units).
func KineticEnergy(vel [][3]float64, mass []float64) float64 {
	ke := 0.0
	for i, v := range vel {
		ke += 0.5 * mass[i] * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	return ke
}

// TemperatureK is the instantaneous temperature in Kelvin.
func TemperatureK(vel [][3]float64, mass []float64) float64 {
	if len(vel) == 0 {
		return 0
	}
	kT := 2 * KineticEnergy(vel, mass) / float64(3*len(vel))
	return units.TempFromInternal(kT)
}

// ModelDeviation is the uncertainty estimate used when several potential
// models are supplied: the standard deviation of per-model forces, maximized
// over atoms and components. Zero when fewer than two models contributed.
func ModelDeviation(forces [][][3]float64) float64 {
	if len(forces) < 2 {
		return 0
	}
	nAtoms := len(forces[0])
	sample := make([]float64, len(forces))
	maxDev := 0.0
	for i := 0; i < nAtoms; i++ {
		for c := 0; c < 3; c++ {
			for m := range forces {
				sample[m] = forces[m][i][c]
			}
			if d := stat.PopStdDev(sample, nil); d > maxDev {
				maxDev = d
			}
		}
	}
	return maxDev
}

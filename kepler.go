package debrisguard

import (
	"math"
	"time"

	"github.com/gonum/matrix/mat64"
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// mxv33 multiplies a 3x3 matrix with a 3 vector. Note that there is no
// dimension check!
func mxv33(m *mat64.Dense, v []float64) []float64 {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

const (
	keplerε       = 1e-12
	keplerMaxIter = 50
)

// KeplerProvider propagates catalog elements on unperturbed two-body motion.
// It is a coarse fallback to SGP4Provider: no drag, no harmonics, but valid
// arbitrarily far from the element epoch. The mean anomaly is advanced at the
// catalog mean motion and Kepler's equation solved by Newton iteration; the
// perifocal state is rotated to the inertial frame through the 3-1-3 angles.
type KeplerProvider struct{}

// Propagate implements StateProvider.
func (KeplerProvider) Propagate(d DebrisObject, epoch time.Time) ([]float64, []float64, error) {
	if reason := d.Degenerate(); reason != "" {
		return nil, nil, PropagationError{DebrisID: d.ID, Epoch: epoch, Reason: reason}
	}
	el := d.Elements
	n := el.MeanMotion * 2 * math.Pi / 86400 // rad/s
	a := math.Cbrt(μEarth / (n * n))
	e := el.Eccentricity

	dt := epoch.Sub(el.Epoch).Seconds()
	M := math.Mod(Deg2rad(el.MeanAnomaly)+n*dt, 2*math.Pi)
	if M < 0 {
		M += 2 * math.Pi
	}

	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for iter := 0; ; iter++ {
		f := E - e*math.Sin(E) - M
		if math.Abs(f) < keplerε {
			break
		}
		if iter >= keplerMaxIter {
			return nil, nil, PropagationError{DebrisID: d.ID, Epoch: epoch, Reason: "Kepler's equation did not converge"}
		}
		E -= f / (1 - e*math.Cos(E))
	}

	sE, cE := math.Sincos(E)
	sν := math.Sqrt(1-e*e) * sE / (1 - e*cE)
	cν := (cE - e) / (1 - e*cE)
	p := a * (1 - e*e)

	R := []float64{p * cν / (1 + e*cν), p * sν / (1 + e*cν), 0}
	V := []float64{-math.Sqrt(μEarth/p) * sν, math.Sqrt(μEarth/p) * (e + cν), 0}

	var rot mat64.Dense
	rot.Mul(R3(-Deg2rad(el.RAAN)), R1(-Deg2rad(el.Inclination)))
	rot.Mul(&rot, R3(-Deg2rad(el.ArgPerigee)))
	r := mxv33(&rot, R)
	v := mxv33(&rot, V)
	if anyNonFinite(r) || anyNonFinite(v) {
		return nil, nil, PropagationError{DebrisID: d.ID, Epoch: epoch, Reason: "two-body state is not finite"}
	}
	return r, v, nil
}

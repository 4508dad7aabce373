package debrisguard

import (
	"math"
	"testing"

	"github.com/gonum/floats"
)

func TestNormUnit(t *testing.T) {
	v := []float64{3, 4, 0}
	if !floats.EqualWithinAbs(norm(v), 5, 1e-12) {
		t.Fatalf("invalid norm %f", norm(v))
	}
	u := unit(v)
	if !floats.EqualWithinAbs(norm(u), 1, 1e-12) {
		t.Fatalf("unit vector norm %f", norm(u))
	}
	z := unit([]float64{0, 0, 0})
	if norm(z) != 0 {
		t.Fatal("unit of zero vector should be the zero vector")
	}
}

func TestCrossDot(t *testing.T) {
	x := []float64{1, 0, 0}
	y := []float64{0, 1, 0}
	z := cross(x, y)
	if z[0] != 0 || z[1] != 0 || z[2] != 1 {
		t.Fatalf("x × y = %+v", z)
	}
	if dot(x, y) != 0 {
		t.Fatal("x · y should be zero")
	}
	if !floats.EqualWithinAbs(dot(z, z), 1, 1e-12) {
		t.Fatal("z · z should be one")
	}
}

func TestDistance(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 6, 3}
	if !floats.EqualWithinAbs(distance(a, b), 5, 1e-12) {
		t.Fatalf("invalid distance %f", distance(a, b))
	}
	if distance(a, a) != 0 {
		t.Fatal("distance to self should be zero")
	}
}

func TestAngleConversions(t *testing.T) {
	if !floats.EqualWithinAbs(Deg2rad(180), math.Pi, 1e-12) {
		t.Fatal("Deg2rad(180) != π")
	}
	if !floats.EqualWithinAbs(Rad2deg(math.Pi/2), 90, 1e-12) {
		t.Fatal("Rad2deg(π/2) != 90")
	}
	if !floats.EqualWithinAbs(Deg2rad(-90), 3*math.Pi/2, 1e-12) {
		t.Fatal("negative degrees should wrap positive")
	}
}

func TestAnyNonFinite(t *testing.T) {
	if anyNonFinite([]float64{1, 2, 3}) {
		t.Fatal("finite state flagged")
	}
	if !anyNonFinite([]float64{1, math.NaN(), 3}) {
		t.Fatal("NaN not flagged")
	}
	if !anyNonFinite([]float64{1, math.Inf(-1), 3}) {
		t.Fatal("-Inf not flagged")
	}
}

package debrisguard

import (
	"strings"
	"testing"
	"time"

	"github.com/gonum/floats"
)

func loadISS(t *testing.T) DebrisObject {
	t.Helper()
	objects, err := LoadCatalog(strings.NewReader(issLine1 + "\n" + issLine2 + "\n"))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}
	return objects[0]
}

func TestPropagateDeterminism(t *testing.T) {
	iss := loadISS(t)
	provider := SGP4Provider{}
	epoch := time.Date(2008, 9, 20, 13, 0, 0, 0, time.UTC)
	r1, v1, err := provider.Propagate(iss, epoch)
	if err != nil {
		t.Fatalf("propagation failed: %s", err)
	}
	r2, v2, err := provider.Propagate(iss, epoch)
	if err != nil {
		t.Fatalf("propagation failed: %s", err)
	}
	for i := 0; i < 3; i++ {
		if r1[i] != r2[i] || v1[i] != v2[i] {
			t.Fatalf("propagation not referentially transparent:\n%+v %+v\n%+v %+v", r1, v1, r2, v2)
		}
	}
	// LEO sanity: radius between Earth surface and 7100 km, speed ~7.7 km/s.
	if rNorm := norm(r1); rNorm < EarthRadiusKm || rNorm > 7100 {
		t.Fatalf("implausible LEO radius %f km", rNorm)
	}
	if vNorm := norm(v1); !floats.EqualWithinAbs(vNorm, 7.7, 0.5) {
		t.Fatalf("implausible LEO speed %f km/s", vNorm)
	}
}

func TestPropagateOutsideValidityWindow(t *testing.T) {
	iss := loadISS(t)
	provider := SGP4Provider{ValidityWindow: 24 * time.Hour}
	epoch := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := provider.Propagate(iss, epoch)
	if _, ok := err.(PropagationError); !ok {
		t.Fatalf("expected PropagationError, got %v", err)
	}
}

func TestPropagateDegenerate(t *testing.T) {
	obj := DebrisObject{ID: "99999", degenerate: "non-positive mean motion"}
	_, _, err := SGP4Provider{}.Propagate(obj, time.Date(2008, 9, 20, 13, 0, 0, 0, time.UTC))
	if _, ok := err.(PropagationError); !ok {
		t.Fatalf("expected PropagationError, got %v", err)
	}
}

func TestPropagateBatchMatchesSequential(t *testing.T) {
	iss := loadISS(t)
	objects := make([]DebrisObject, 8)
	for i := range objects {
		objects[i] = iss
	}
	provider := SGP4Provider{}
	epoch := time.Date(2008, 9, 20, 14, 30, 0, 0, time.UTC)

	parallel, err := PropagateBatch(provider, objects, epoch, 4)
	if err != nil {
		t.Fatalf("batch failed: %s", err)
	}
	if len(parallel) != len(objects) {
		t.Fatalf("expected %d states, got %d", len(objects), len(parallel))
	}
	for i, obj := range objects {
		r, v, err := provider.Propagate(obj, epoch)
		if err != nil {
			t.Fatalf("propagation failed: %s", err)
		}
		for k := 0; k < 3; k++ {
			if parallel[i].R[k] != r[k] || parallel[i].V[k] != v[k] {
				t.Fatalf("batch state %d differs from sequential", i)
			}
		}
	}
}

func TestPropagateBatchReportsLowestIndexError(t *testing.T) {
	iss := loadISS(t)
	bad1 := DebrisObject{ID: "00001", degenerate: "broken"}
	bad2 := DebrisObject{ID: "00002", degenerate: "broken"}
	objects := []DebrisObject{iss, bad1, bad2}
	epoch := time.Date(2008, 9, 20, 13, 0, 0, 0, time.UTC)
	_, err := PropagateBatch(SGP4Provider{}, objects, epoch, 3)
	perr, ok := err.(PropagationError)
	if !ok {
		t.Fatalf("expected PropagationError, got %v", err)
	}
	if perr.DebrisID != "00001" {
		t.Fatalf("expected the lowest-index error, got %s", perr.DebrisID)
	}
}

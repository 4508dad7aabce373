package debrisguard

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// providerFunc adapts a function to the StateProvider interface for tests.
type providerFunc func(DebrisObject, time.Time) ([]float64, []float64, error)

func (f providerFunc) Propagate(d DebrisObject, epoch time.Time) ([]float64, []float64, error) {
	return f(d, epoch)
}

// staticProvider places every object at a fixed position regardless of epoch.
func staticProvider(positions map[string][]float64) StateProvider {
	return providerFunc(func(d DebrisObject, _ time.Time) ([]float64, []float64, error) {
		pos, ok := positions[d.ID]
		if !ok {
			pos = []float64{1e6, 1e6, 1e6} // far away
		}
		return pos, []float64{0, 0, 0}, nil
	})
}

var testEpoch = time.Date(2025, 1, 17, 12, 0, 0, 0, time.UTC)

// lineTrajectory builds a synthetic straight-line path with 1 s sampling.
func lineTrajectory(nSamples int) Trajectory {
	traj := Trajectory{ClimbTimeS: float64(nSamples), TargetVelocityKmS: 7.45, InsertionVelocityKmS: 7.45}
	for i := 1; i <= nSamples; i++ {
		traj.Samples = append(traj.Samples, TrajectorySample{
			OffsetS:     float64(i),
			Position:    []float64{EarthRadiusKm + float64(i), 0, 0},
			VelocityKmS: 1,
		})
	}
	return traj
}

func TestDetectCoincidentSample(t *testing.T) {
	traj := lineTrajectory(10)
	debris := []DebrisObject{{ID: "11111"}}
	provider := staticProvider(map[string][]float64{
		"11111": traj.Samples[4].Position, // exactly on the path at t=5
	})
	events, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.OffsetS != 5 || ev.DebrisID != "11111" {
		t.Fatalf("wrong event: %+v", ev)
	}
	if !floats.EqualWithinAbs(ev.MissDistanceKm, 0, 1e-9) {
		t.Fatalf("expected ~0 miss distance, got %f", ev.MissDistanceKm)
	}
}

func TestDetectThresholdBoundary(t *testing.T) {
	traj := lineTrajectory(3)
	base := traj.Samples[0].Position
	provider := staticProvider(map[string][]float64{
		"20001": {base[0], base[1] + 1.0, base[2]},       // exactly at threshold
		"20002": {base[0], base[1] - (1.0 - 1e-9), base[2]}, // just inside
	})

	atThreshold, err := DetectCollisions(traj, []DebrisObject{{ID: "20001"}}, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if len(atThreshold) != 0 {
		t.Fatal("a miss exactly at the threshold must not be a collision")
	}

	inside, err := DetectCollisions(traj, []DebrisObject{{ID: "20002"}}, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if len(inside) != 1 {
		t.Fatal("a miss below the threshold must be a collision")
	}
}

func TestDetectClosestWinsAndTieBreak(t *testing.T) {
	traj := lineTrajectory(1)
	base := traj.Samples[0].Position
	provider := staticProvider(map[string][]float64{
		"00010": {base[0], base[1] + 0.2, base[2]},
		"00002": {base[0], base[1] - 0.2, base[2]}, // same distance, lower ID
		"00050": {base[0], base[1] + 0.5, base[2]}, // further away
	})
	debris := []DebrisObject{{ID: "00050"}, {ID: "00010"}, {ID: "00002"}}
	events, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event per sample, got %d", len(events))
	}
	if events[0].DebrisID != "00002" {
		t.Fatalf("tie must break to the lowest identifier, got %s", events[0].DebrisID)
	}
}

func TestDetectEventsOrderedByTime(t *testing.T) {
	traj := lineTrajectory(10)
	provider := staticProvider(map[string][]float64{
		"30007": traj.Samples[6].Position,
		"30002": traj.Samples[1].Position,
	})
	debris := []DebrisObject{{ID: "30007"}, {ID: "30002"}}
	events, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].OffsetS != 2 || events[1].OffsetS != 7 {
		t.Fatalf("events out of time order: %+v", events)
	}
}

func TestDetectParallelMatchesSequential(t *testing.T) {
	traj := lineTrajectory(50)
	provider := staticProvider(map[string][]float64{
		"40005": traj.Samples[4].Position,
		"40030": traj.Samples[29].Position,
	})
	debris := []DebrisObject{{ID: "40005"}, {ID: "40030"}}
	seq, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	par, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{Workers: 4})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Fatalf("parallel detection differs:\n%+v\n%+v", seq, par)
	}
}

func TestDetectAny(t *testing.T) {
	traj := lineTrajectory(10)
	provider := staticProvider(map[string][]float64{
		"50003": traj.Samples[2].Position,
	})
	found, err := DetectAny(traj, []DebrisObject{{ID: "50003"}}, testEpoch, 1.0, provider)
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if !found {
		t.Fatal("expected a conflict")
	}
	clean, err := DetectAny(traj, []DebrisObject{{ID: "60000"}}, testEpoch, 1.0, provider)
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if clean {
		t.Fatal("expected no conflict")
	}
}

// TestDetectNoFalseNegatives injects a guaranteed close approach into a
// randomized debris field and checks it is always reported.
func TestDetectNoFalseNegatives(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	scatter, ok := distmv.NewNormal([]float64{0, 0, 0}, mat64.NewSymDense(3, []float64{500, 0, 0, 0, 500, 0, 0, 0, 500}), rng)
	if !ok {
		t.Fatal("NOK in Gaussian")
	}

	for trial := 0; trial < 20; trial++ {
		traj := lineTrajectory(20)
		positions := make(map[string][]float64)
		var debris []DebrisObject
		for i := 0; i < 15; i++ {
			id := string(rune('A' + i))
			offset := scatter.Rand(nil)
			// Keep the background field well clear of the path.
			positions[id] = []float64{traj.Samples[0].Position[0] + 2000 + offset[0], 2000 + offset[1], 2000 + offset[2]}
			debris = append(debris, DebrisObject{ID: id})
		}
		// Injected close approach at a random sample.
		k := rng.Intn(len(traj.Samples))
		missKm := 0.3
		base := traj.Samples[k].Position
		positions["ZZ"] = []float64{base[0], base[1] + missKm, base[2]}
		debris = append(debris, DebrisObject{ID: "ZZ"})

		events, err := DetectCollisions(traj, debris, testEpoch, 0.5, staticProvider(positions), DetectorConfig{})
		if err != nil {
			t.Fatalf("trial %d: detection failed: %s", trial, err)
		}
		found := false
		for _, ev := range events {
			if ev.DebrisID == "ZZ" && ev.OffsetS == traj.Samples[k].OffsetS {
				found = true
			}
		}
		if !found {
			t.Fatalf("trial %d: injected close approach at t=%f not reported", trial, traj.Samples[k].OffsetS)
		}
	}
}

func TestDetectDeterminism(t *testing.T) {
	traj := lineTrajectory(10)
	provider := staticProvider(map[string][]float64{
		"70004": traj.Samples[3].Position,
	})
	debris := []DebrisObject{{ID: "70004"}}
	first, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	second, err := DetectCollisions(traj, debris, testEpoch, 1.0, provider, DetectorConfig{})
	if err != nil {
		t.Fatalf("detection failed: %s", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("detection is not deterministic")
	}
}

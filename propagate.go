package debrisguard

import (
	"runtime"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// DefaultValidityWindow bounds how far from its element epoch an object may
// be propagated. SGP4 element sets decay quickly; a month is already generous.
const DefaultValidityWindow = 30 * 24 * time.Hour

// StateProvider propagates a debris object to an epoch. Implementations must
// be pure and deterministic, and safe for concurrent use across objects.
type StateProvider interface {
	Propagate(d DebrisObject, epoch time.Time) (r, v []float64, err error)
}

// SGP4Provider propagates catalog objects with the SGP4 analytic model.
// The zero value uses DefaultValidityWindow.
type SGP4Provider struct {
	// ValidityWindow is the maximum distance from the element epoch at which
	// propagation is still accepted. Zero means DefaultValidityWindow.
	ValidityWindow time.Duration
}

// Propagate returns the position and velocity vectors (km, km/s, ECI) of the
// object at the given epoch.
func (p SGP4Provider) Propagate(d DebrisObject, epoch time.Time) ([]float64, []float64, error) {
	if reason := d.Degenerate(); reason != "" {
		return nil, nil, PropagationError{DebrisID: d.ID, Reason: reason}
	}
	window := p.ValidityWindow
	if window == 0 {
		window = DefaultValidityWindow
	}
	offset := epoch.Sub(d.Elements.Epoch)
	if offset < -window || offset > window {
		return nil, nil, PropagationError{DebrisID: d.ID, Epoch: epoch, Reason: "epoch outside element validity window"}
	}
	if epoch.Location() != time.UTC {
		epoch = epoch.UTC()
	}
	year, month, day := epoch.Date()
	hour, min, sec := epoch.Clock()
	pos, vel := satellite.Propagate(d.sat, year, int(month), day, hour, min, sec)
	r := []float64{pos.X, pos.Y, pos.Z}
	v := []float64{vel.X, vel.Y, vel.Z}
	if anyNonFinite(r) || anyNonFinite(v) {
		return nil, nil, PropagationError{DebrisID: d.ID, Epoch: epoch, Reason: "SGP4 produced a non-finite state"}
	}
	return r, v, nil
}

// DebrisState is the propagated state of one object at a common epoch.
type DebrisState struct {
	ID string
	R  []float64
	V  []float64
}

// PropagateBatch propagates all objects to a single epoch on a bounded worker
// pool. Objects share no mutable state, so the fan-out is unconstrained.
// Results preserve catalog order. On failure, the error of the lowest-index
// object is returned so repeated runs report deterministically.
func PropagateBatch(provider StateProvider, objects []DebrisObject, epoch time.Time, workers int) ([]DebrisState, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(objects) {
		workers = len(objects)
	}
	states := make([]DebrisState, len(objects))
	errs := make([]error, len(objects))
	idxChan := make(chan int, len(objects))
	for i := range objects {
		idxChan <- i
	}
	close(idxChan)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				r, v, err := provider.Propagate(objects[i], epoch)
				if err != nil {
					errs[i] = err
					continue
				}
				states[i] = DebrisState{ID: objects[i].ID, R: r, V: v}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return states, nil
}

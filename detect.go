package debrisguard

import (
	"sort"
	"sync"
	"time"
)

// DefaultThresholdKm is the miss distance below which an approach counts as a
// collision.
const DefaultThresholdKm = 1.0

// CollisionEvent reports one conflict between the ascent path and a debris
// object. At most one event is emitted per trajectory sample: the closest
// object, ties broken by lowest debris identifier.
type CollisionEvent struct {
	OffsetS        float64
	RocketPos      []float64
	DebrisID       string
	MissDistanceKm float64
}

// DetectorConfig bounds the parallelism of a detection pass. The zero value
// runs sequentially.
type DetectorConfig struct {
	Workers int // number of concurrent sample workers; <=1 means sequential
}

// DetectCollisions tests every trajectory sample against every debris object
// propagated to the sample's absolute epoch, and returns the conflicts in
// time order. The comparison is a strict inequality: a miss distance exactly
// at the threshold is a near miss, not a collision.
//
// The detector is stateless and reentrant; rerunning it on the same inputs
// yields the same events.
func DetectCollisions(traj Trajectory, debris []DebrisObject, launchEpoch time.Time, thresholdKm float64, provider StateProvider, cfg DetectorConfig) ([]CollisionEvent, error) {
	events := make([]*CollisionEvent, len(traj.Samples))
	errs := make([]error, len(traj.Samples))

	scan := func(i int) {
		sample := traj.Samples[i]
		epoch := launchEpoch.Add(time.Duration(sample.OffsetS * float64(time.Second)))
		events[i], errs[i] = closestConflict(sample, debris, epoch, thresholdKm, provider, false)
	}

	if cfg.Workers > 1 {
		// Samples are independent, so the scan fans out over a bounded pool
		// and results merge back by index.
		idxChan := make(chan int, len(traj.Samples))
		for i := range traj.Samples {
			idxChan <- i
		}
		close(idxChan)
		var wg sync.WaitGroup
		for w := 0; w < cfg.Workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range idxChan {
					scan(i)
				}
			}()
		}
		wg.Wait()
	} else {
		for i := range traj.Samples {
			scan(i)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	var out []CollisionEvent
	for _, ev := range events {
		if ev != nil {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetS < out[j].OffsetS })
	return out, nil
}

// DetectAny reports whether any sample conflicts with any debris object,
// stopping at the first conflict found.
func DetectAny(traj Trajectory, debris []DebrisObject, launchEpoch time.Time, thresholdKm float64, provider StateProvider) (bool, error) {
	for _, sample := range traj.Samples {
		epoch := launchEpoch.Add(time.Duration(sample.OffsetS * float64(time.Second)))
		ev, err := closestConflict(sample, debris, epoch, thresholdKm, provider, true)
		if err != nil {
			return false, err
		}
		if ev != nil {
			return true, nil
		}
	}
	return false, nil
}

// closestConflict propagates every object to the sample epoch and returns the
// closest conflicting one, or nil when the sample is clean. With earlyExit
// set, the first conflict wins (existence check only).
func closestConflict(sample TrajectorySample, debris []DebrisObject, epoch time.Time, thresholdKm float64, provider StateProvider, earlyExit bool) (*CollisionEvent, error) {
	var best *CollisionEvent
	for _, d := range debris {
		r, _, err := provider.Propagate(d, epoch)
		if err != nil {
			return nil, err
		}
		miss := distance(sample.Position, r)
		if miss >= thresholdKm {
			continue
		}
		if best == nil || miss < best.MissDistanceKm ||
			(miss == best.MissDistanceKm && d.ID < best.DebrisID) {
			best = &CollisionEvent{
				OffsetS:        sample.OffsetS,
				RocketPos:      sample.Position,
				DebrisID:       d.ID,
				MissDistanceKm: miss,
			}
		}
		if earlyExit {
			return best, nil
		}
	}
	return best, nil
}

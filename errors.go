package debrisguard

import (
	"fmt"
	"time"
)

// PropagationError indicates that a debris object could not be propagated,
// either because its orbital elements are degenerate or because the requested
// epoch falls outside the validity window of its element set.
type PropagationError struct {
	DebrisID string
	Epoch    time.Time
	Reason   string
}

func (e PropagationError) Error() string {
	if e.Epoch.IsZero() {
		return fmt.Sprintf("cannot propagate %s: %s", e.DebrisID, e.Reason)
	}
	return fmt.Sprintf("cannot propagate %s to %s: %s", e.DebrisID, e.Epoch.Format(time.RFC3339), e.Reason)
}

// InfeasibleTrajectoryError indicates that no ascent reaching the target
// altitude exists under the given rocket profile and parameters.
type InfeasibleTrajectoryError struct {
	RocketType string
	Reason     string
}

func (e InfeasibleTrajectoryError) Error() string {
	return fmt.Sprintf("infeasible trajectory for %s: %s", e.RocketType, e.Reason)
}

// NoSuitableRocketError indicates that no profile in the rocket table meets
// the altitude requirement.
type NoSuitableRocketError struct {
	MinAltitudeKm float64
}

func (e NoSuitableRocketError) Error() string {
	return fmt.Sprintf("no rocket profile reaches %.0f km", e.MinAltitudeKm)
}

// NonConvergentOptimizationError indicates that an optimization episode
// exhausted its step budget, or stalled, without clearing all conflicts.
// The best trajectory found is still returned alongside this error, so the
// caller may decide whether the residual risk is acceptable.
type NonConvergentOptimizationError struct {
	Steps          int
	ResidualEvents int
	Reason         string
}

func (e NonConvergentOptimizationError) Error() string {
	return fmt.Sprintf("optimization did not converge after %d steps (%d residual conflicts): %s", e.Steps, e.ResidualEvents, e.Reason)
}

// DataFormatError indicates a structurally malformed catalog or table record.
// A single bad record fails the whole load: downstream collision detection
// must know whether catalog coverage is complete.
type DataFormatError struct {
	Source string
	Line   int
	Reason string
}

func (e DataFormatError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", e.Source, e.Line, e.Reason)
}

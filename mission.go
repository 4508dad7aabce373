package debrisguard

import (
	"errors"
	"time"

	kitlog "github.com/go-kit/kit/log"
)

// MissionStatus is the convergence outcome of one mission evaluation.
type MissionStatus uint8

const (
	// StatusSuccess means the final trajectory was independently re-checked
	// and carries zero conflicts.
	StatusSuccess MissionStatus = iota + 1
	// StatusNonConvergent means the optimizer exhausted its budget; the best
	// trajectory found and its residual conflicts are reported.
	StatusNonConvergent
	// StatusInfeasible means the target cannot be reached under the given
	// rocket profile and parameters.
	StatusInfeasible
)

func (s MissionStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNonConvergent:
		return "non-convergent"
	case StatusInfeasible:
		return "infeasible"
	}
	panic("cannot stringify unknown mission status")
}

// MissionRequest describes one mission evaluation.
type MissionRequest struct {
	Rocket        RocketProfile
	TargetAltKm   float64
	LaunchEpoch   time.Time
	ThresholdKm   float64
	Parameters    TrajectoryParameters
	Train         bool // false applies the current policy greedily
	DetectorCfg   DetectorConfig
	TrajectoryCfg TrajectoryConfig
}

// MissionResult is the outcome of one mission evaluation.
type MissionResult struct {
	Status     MissionStatus
	Trajectory Trajectory
	Parameters TrajectoryParameters
	Events     []CollisionEvent // empty on success
	RLSteps    int
}

// SimulationLoop orchestrates propagate → detect → optimize cycles for
// mission evaluations against a frozen debris snapshot.
type SimulationLoop struct {
	Debris    []DebrisObject
	Provider  StateProvider
	Optimizer *AvoidanceOptimizer
	logger    kitlog.Logger
}

// NewSimulationLoop wires the components of the avoidance pipeline together.
func NewSimulationLoop(debris []DebrisObject, provider StateProvider, opt *AvoidanceOptimizer, logger kitlog.Logger) *SimulationLoop {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &SimulationLoop{
		Debris:    debris,
		Provider:  provider,
		Optimizer: opt,
		logger:    kitlog.With(logger, "subsys", "mission"),
	}
}

// EvaluateMission runs one mission evaluation: baseline trajectory and
// detection; if conflicted, one optimizer episode; and a final independent
// detection pass over the proposed trajectory. Success is only ever reported
// off that final re-check, never off the optimizer's own terminal claim.
func (l *SimulationLoop) EvaluateMission(req MissionRequest) (MissionResult, error) {
	if req.ThresholdKm <= 0 {
		req.ThresholdKm = DefaultThresholdKm
	}
	if req.LaunchEpoch.Location() != time.UTC {
		req.LaunchEpoch = req.LaunchEpoch.UTC()
	}

	eval := func(params TrajectoryParameters) (Trajectory, []CollisionEvent, error) {
		traj, err := CalculateTrajectory(req.Rocket, req.TargetAltKm, params, req.TrajectoryCfg)
		if err != nil {
			return Trajectory{}, nil, err
		}
		events, err := DetectCollisions(traj, l.Debris, req.LaunchEpoch, req.ThresholdKm, l.Provider, req.DetectorCfg)
		if err != nil {
			return Trajectory{}, nil, err
		}
		return traj, events, nil
	}

	baseline, baseEvents, err := eval(req.Parameters)
	if err != nil {
		var infeasible InfeasibleTrajectoryError
		if errors.As(err, &infeasible) {
			// No point optimizing an unreachable target.
			l.logger.Log("level", "error", "status", "infeasible", "err", err)
			return MissionResult{Status: StatusInfeasible, Parameters: req.Parameters}, err
		}
		return MissionResult{}, err
	}
	l.logger.Log("level", "info", "rocket", req.Rocket.Type, "epoch", req.LaunchEpoch,
		"climb(s)", baseline.ClimbTimeS, "conflicts", len(baseEvents))

	if len(baseEvents) == 0 {
		return MissionResult{
			Status:     StatusSuccess,
			Trajectory: baseline,
			Parameters: req.Parameters,
			RLSteps:    0,
		}, nil
	}

	episode, epErr := l.Optimizer.RunEpisode(eval, req.Parameters, baseline, baseEvents, req.Train)
	if epErr != nil {
		var nonConv NonConvergentOptimizationError
		if !errors.As(epErr, &nonConv) {
			return MissionResult{}, epErr
		}
	}

	// Independent re-validation of the proposed trajectory.
	finalEvents, err := DetectCollisions(episode.BestTrajectory, l.Debris, req.LaunchEpoch, req.ThresholdKm, l.Provider, req.DetectorCfg)
	if err != nil {
		return MissionResult{}, err
	}
	result := MissionResult{
		Trajectory: episode.BestTrajectory,
		Parameters: episode.BestParams,
		Events:     finalEvents,
		RLSteps:    episode.Steps,
	}
	if len(finalEvents) == 0 && episode.BestTrajectory.InsertionDeviation() <= l.Optimizer.cfg.InsertionTolerance {
		result.Status = StatusSuccess
		l.logger.Log("level", "notice", "status", "success", "steps", episode.Steps)
		return result, nil
	}
	result.Status = StatusNonConvergent
	l.logger.Log("level", "warning", "status", "non-convergent", "steps", episode.Steps, "residual", len(finalEvents))
	return result, NonConvergentOptimizationError{Steps: episode.Steps, ResidualEvents: len(finalEvents), Reason: "best trajectory still conflicted after re-validation"}
}

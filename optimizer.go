package debrisguard

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

// Action is one discrete adjustment of the trajectory parameters.
type Action uint8

const (
	ActionHold Action = iota + 1
	ActionPitchEarlier
	ActionPitchLater
	ActionAzimuthMinus
	ActionAzimuthPlus
	ActionBurnEarlier
	ActionBurnLater
)

// NumActions is the size of the discrete action space.
const NumActions = 7

// AllActions enumerates the action space in index order.
var AllActions = [NumActions]Action{ActionHold, ActionPitchEarlier, ActionPitchLater, ActionAzimuthMinus, ActionAzimuthPlus, ActionBurnEarlier, ActionBurnLater}

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionPitchEarlier:
		return "pitchEarlier"
	case ActionPitchLater:
		return "pitchLater"
	case ActionAzimuthMinus:
		return "azimuth-"
	case ActionAzimuthPlus:
		return "azimuth+"
	case ActionBurnEarlier:
		return "burnEarlier"
	case ActionBurnLater:
		return "burnLater"
	}
	panic("cannot stringify unknown action")
}

// index returns the network output slot of the action.
func (a Action) index() int {
	return int(a) - 1
}

// Apply composes the action with the current parameters. The result is
// clamped to the physically plausible ranges.
func (a Action) Apply(p TrajectoryParameters, cfg OptimizerConfig) TrajectoryParameters {
	switch a {
	case ActionHold:
	case ActionPitchEarlier:
		p.PitchOverTimeS -= cfg.PitchDeltaS
	case ActionPitchLater:
		p.PitchOverTimeS += cfg.PitchDeltaS
	case ActionAzimuthMinus:
		p.AzimuthBiasDeg -= cfg.AzimuthDeltaDeg
	case ActionAzimuthPlus:
		p.AzimuthBiasDeg += cfg.AzimuthDeltaDeg
	case ActionBurnEarlier:
		p.BurnStartOffsetS -= cfg.BurnDeltaS
	case ActionBurnLater:
		p.BurnStartOffsetS += cfg.BurnDeltaS
	}
	return p.Clamp()
}

// featureLength is the fixed size of the optimizer state vector.
const featureLength = 8

// OptimizerConfig holds the DDQL hyperparameters.
type OptimizerConfig struct {
	HiddenSize     int
	Gamma          float64
	LearningRate   float64
	EpsilonStart   float64
	EpsilonMin     float64
	EpsilonDecay   float64 // multiplicative anneal per step
	BatchSize      int
	TrainEvery     int
	SyncEvery      int
	SoftTau        float64 // 0 means hard target sync
	ReplayCapacity int

	MaxSteps   int
	StallLimit int // consecutive steps without miss-distance improvement

	PitchDeltaS     float64
	AzimuthDeltaDeg float64
	BurnDeltaS      float64

	CollisionPenalty   float64
	InsertionPenalty   float64
	InsertionTolerance float64 // relative insertion velocity tolerance
	ThresholdKm        float64

	Seed int64
}

// DefaultOptimizerConfig returns hyperparameters that converge on the
// single-conflict scenarios the system is sized for.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		HiddenSize:         24,
		Gamma:              0.95,
		LearningRate:       0.01,
		EpsilonStart:       1.0,
		EpsilonMin:         0.05,
		EpsilonDecay:       0.97,
		BatchSize:          16,
		TrainEvery:         1,
		SyncEvery:          25,
		SoftTau:            0,
		ReplayCapacity:     512,
		MaxSteps:           200,
		StallLimit:         40,
		PitchDeltaS:        2,
		AzimuthDeltaDeg:    1,
		BurnDeltaS:         2,
		CollisionPenalty:   100,
		InsertionPenalty:   10,
		InsertionTolerance: 0.02,
		ThresholdKm:        DefaultThresholdKm,
		Seed:               0,
	}
}

// EvalFunc recomputes the trajectory and its conflicts for a candidate
// parameter vector. The simulation loop provides it; the optimizer never
// talks to the detector directly.
type EvalFunc func(TrajectoryParameters) (Trajectory, []CollisionEvent, error)

// AvoidanceOptimizer is the DDQL agent searching for conflict-free
// parameter adjustments. Replay appends and gradient updates are serialized,
// so independent episodes may train concurrently against one policy.
type AvoidanceOptimizer struct {
	cfg    OptimizerConfig
	logger kitlog.Logger

	mu     sync.Mutex
	online *QNetwork
	target *QNetwork
	replay *ReplayBuffer
	rng    *rand.Rand
	steps  int
	ε      float64
}

// NewAvoidanceOptimizer returns an untrained agent.
func NewAvoidanceOptimizer(cfg OptimizerConfig, logger kitlog.Logger) *AvoidanceOptimizer {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	online := NewQNetwork(featureLength, cfg.HiddenSize, NumActions, rng)
	return &AvoidanceOptimizer{
		cfg:    cfg,
		logger: kitlog.With(logger, "subsys", "ddql"),
		online: online,
		target: online.Clone(),
		replay: NewReplayBuffer(cfg.ReplayCapacity),
		rng:    rng,
		ε:      cfg.EpsilonStart,
	}
}

// Steps returns the number of training steps taken across all episodes.
func (o *AvoidanceOptimizer) Steps() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.steps
}

// features derives the fixed-length state vector from the current conflicts
// and trajectory summary.
func (o *AvoidanceOptimizer) features(traj Trajectory, events []CollisionEvent, params TrajectoryParameters) []float64 {
	minMiss := o.cfg.ThresholdKm
	tca := traj.ClimbTimeS
	for _, ev := range events {
		if ev.MissDistanceKm < minMiss {
			minMiss = ev.MissDistanceKm
			tca = ev.OffsetS
		}
	}
	climb := traj.ClimbTimeS
	if climb == 0 {
		climb = 1
	}
	return []float64{
		minMiss / o.cfg.ThresholdKm,
		tca / climb,
		float64(len(events)),
		traj.InsertionDeviation(),
		(params.PitchOverTimeS - MinPitchOverTimeS) / (MaxPitchOverTimeS - MinPitchOverTimeS),
		params.AzimuthBiasDeg / MaxAzimuthBiasDeg,
		params.BurnStartOffsetS / MaxBurnStartOffset,
		climb / 1200,
	}
}

// reward scores a candidate trajectory: remaining conflicts cost heavily and
// in proportion to their proximity, insertion inaccuracy costs lightly. A
// conflict-free trajectory within tolerance is terminal with reward zero.
func (o *AvoidanceOptimizer) reward(traj Trajectory, events []CollisionEvent) (float64, bool) {
	dev := traj.InsertionDeviation()
	if len(events) == 0 && dev <= o.cfg.InsertionTolerance {
		return 0, true
	}
	r := -o.cfg.InsertionPenalty * dev
	for _, ev := range events {
		r -= o.cfg.CollisionPenalty * (1 - ev.MissDistanceKm/o.cfg.ThresholdKm)
	}
	return r, false
}

// selectAction applies the ε-greedy policy over the online action values.
func (o *AvoidanceOptimizer) selectAction(state []float64, train bool) (Action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if train && o.rng.Float64() < o.ε {
		return AllActions[o.rng.Intn(NumActions)], nil
	}
	q, err := o.online.Predict(state)
	if err != nil {
		return 0, err
	}
	return AllActions[ArgMax(q)], nil
}

// observe stores a transition and runs the periodic training and target-sync
// work. It owns the only mutations of the shared policy state.
func (o *AvoidanceOptimizer) observe(t Transition) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replay.Add(t)
	o.steps++
	if o.ε > o.cfg.EpsilonMin {
		o.ε = math.Max(o.ε*o.cfg.EpsilonDecay, o.cfg.EpsilonMin)
	}
	if o.cfg.TrainEvery > 0 && o.steps%o.cfg.TrainEvery == 0 && o.replay.Len() >= o.cfg.BatchSize {
		if err := o.trainBatch(); err != nil {
			return err
		}
	}
	if o.cfg.SyncEvery > 0 && o.steps%o.cfg.SyncEvery == 0 {
		if o.cfg.SoftTau > 0 {
			o.target.SoftSyncFrom(o.online, o.cfg.SoftTau)
		} else {
			o.target.SyncFrom(o.online)
		}
	}
	return nil
}

// trainBatch samples a minibatch and updates the online network with the
// double-Q target: the online network selects the best next action, the
// target network evaluates it. Caller holds the lock.
func (o *AvoidanceOptimizer) trainBatch() error {
	batch := o.replay.Sample(o.cfg.BatchSize, o.rng)
	for _, t := range batch {
		target := t.Reward
		if !t.Terminal {
			qOnline, err := o.online.Predict(t.NextState)
			if err != nil {
				return err
			}
			qTarget, err := o.target.Predict(t.NextState)
			if err != nil {
				return err
			}
			target += o.cfg.Gamma * qTarget[ArgMax(qOnline)]
		}
		if err := o.online.UpdateTD(t.State, t.Action.index(), target, o.cfg.LearningRate); err != nil {
			return err
		}
	}
	return nil
}

// EpisodeResult is the outcome of one optimization episode. BestTrajectory is
// the best candidate seen by reward, which is not necessarily the last one.
type EpisodeResult struct {
	Converged      bool
	Steps          int
	BestParams     TrajectoryParameters
	BestTrajectory Trajectory
	BestEvents     []CollisionEvent
	BestReward     float64
}

// RunEpisode runs one bounded avoidance episode from the given conflicted
// baseline. With train=false the policy is applied greedily (pure inference)
// and no learning happens. A NonConvergentOptimizationError is returned when
// the step budget or the stall limit is exhausted; the result remains valid.
func (o *AvoidanceOptimizer) RunEpisode(eval EvalFunc, params TrajectoryParameters, traj Trajectory, events []CollisionEvent, train bool) (EpisodeResult, error) {
	state := o.features(traj, events, params)
	baseReward, terminal := o.reward(traj, events)
	res := EpisodeResult{
		BestParams:     params,
		BestTrajectory: traj,
		BestEvents:     events,
		BestReward:     baseReward,
	}
	if terminal {
		res.Converged = true
		return res, nil
	}

	bestMiss := minMissDistance(events, o.cfg.ThresholdKm)
	stall := 0
	for step := 0; step < o.cfg.MaxSteps; step++ {
		action, err := o.selectAction(state, train)
		if err != nil {
			return res, err
		}
		nextParams := action.Apply(params, o.cfg)

		nextTraj, nextEvents, err := eval(nextParams)
		if err != nil {
			var infeasible InfeasibleTrajectoryError
			if !errors.As(err, &infeasible) {
				// Numeric instability or propagation failure aborts the episode.
				return res, err
			}
			// The candidate cannot fly; punish the action and stay put.
			res.Steps = step + 1
			if train {
				if err := o.observe(Transition{State: state, Action: action, Reward: -o.cfg.CollisionPenalty, NextState: state, Terminal: false}); err != nil {
					return res, err
				}
			}
			stall++
			if stall >= o.cfg.StallLimit {
				break
			}
			continue
		}

		reward, terminal := o.reward(nextTraj, nextEvents)
		nextState := o.features(nextTraj, nextEvents, nextParams)
		if train {
			if err := o.observe(Transition{State: state, Action: action, Reward: reward, NextState: nextState, Terminal: terminal}); err != nil {
				return res, err
			}
		}
		res.Steps = step + 1

		if reward >= res.BestReward {
			res.BestReward = reward
			res.BestParams = nextParams
			res.BestTrajectory = nextTraj
			res.BestEvents = nextEvents
		}
		if miss := minMissDistance(nextEvents, o.cfg.ThresholdKm); miss > bestMiss {
			bestMiss = miss
			stall = 0
		} else {
			stall++
		}

		o.logger.Log("level", "debug", "step", o.Steps(), "action", action, "reward", fmt.Sprintf("%.3f", reward), "conflicts", len(nextEvents))

		params = nextParams
		state = nextState
		if terminal {
			res.Converged = true
			return res, nil
		}
		if stall >= o.cfg.StallLimit {
			break
		}
	}

	reason := "step budget exhausted"
	if stall >= o.cfg.StallLimit {
		reason = fmt.Sprintf("no miss-distance improvement over %d consecutive steps", o.cfg.StallLimit)
	}
	o.logger.Log("level", "warning", "status", "non-convergent", "steps", res.Steps, "residual", len(res.BestEvents))
	return res, NonConvergentOptimizationError{Steps: res.Steps, ResidualEvents: len(res.BestEvents), Reason: reason}
}

// minMissDistance returns the smallest conflict distance, or the threshold
// when the event list is clean.
func minMissDistance(events []CollisionEvent, thresholdKm float64) float64 {
	min := thresholdKm
	for _, ev := range events {
		if ev.MissDistanceKm < min {
			min = ev.MissDistanceKm
		}
	}
	return min
}

// checkpoint is the gob wire form of the trainable state.
type checkpoint struct {
	Online  *QNetwork
	Target  *QNetwork
	Replay  []Transition
	Steps   int
	Epsilon float64
}

// SaveCheckpoint writes the networks, replay buffer and counters so training
// can resume later.
func (o *AvoidanceOptimizer) SaveCheckpoint(w io.Writer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gob.NewEncoder(w).Encode(checkpoint{
		Online:  o.online,
		Target:  o.target,
		Replay:  o.replay.Snapshot(),
		Steps:   o.steps,
		Epsilon: o.ε,
	})
}

// LoadCheckpoint restores a previously saved trainable state.
func (o *AvoidanceOptimizer) LoadCheckpoint(r io.Reader) error {
	var c checkpoint
	if err := gob.NewDecoder(r).Decode(&c); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.online = c.Online
	o.target = c.Target
	o.replay.Restore(c.Replay)
	o.steps = c.Steps
	o.ε = c.Epsilon
	return nil
}

// SaveCheckpointFile saves the checkpoint to a file path.
func (o *AvoidanceOptimizer) SaveCheckpointFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return o.SaveCheckpoint(f)
}

// LoadCheckpointFile loads a checkpoint from a file path.
func (o *AvoidanceOptimizer) LoadCheckpointFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return o.LoadCheckpoint(f)
}

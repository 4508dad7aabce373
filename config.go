package debrisguard

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ScenarioConfig is the full configuration of one mission scenario, read from
// a TOML file.
type ScenarioConfig struct {
	CatalogPath     string
	RocketTablePath string
	CheckpointPath  string

	RocketType  string
	TargetAltKm float64
	LaunchEpoch time.Time
	ThresholdKm float64
	Propagator  string // "sgp4" or "kepler"

	DetectorWorkers int
	Trajectory      TrajectoryConfig
	Optimizer       OptimizerConfig
}

// Provider returns the debris state provider the scenario selects.
func (c ScenarioConfig) Provider() StateProvider {
	if c.Propagator == "kepler" {
		return KeplerProvider{}
	}
	return SGP4Provider{ValidityWindow: DefaultValidityWindow}
}

const scenarioDateFormat = "2006-01-02 15:04:05"

// LoadScenario reads a scenario TOML file, filling every unset key with its
// default.
func LoadScenario(path string) (ScenarioConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	def := DefaultTrajectoryConfig()
	opt := DefaultOptimizerConfig()
	v.SetDefault("mission.threshold_km", DefaultThresholdKm)
	v.SetDefault("mission.detector_workers", 1)
	v.SetDefault("mission.propagator", "sgp4")
	v.SetDefault("trajectory.step_s", def.StepS)
	v.SetDefault("trajectory.max_climb_s", def.MaxClimbTimeS)
	v.SetDefault("trajectory.propellant_fraction", def.PropellantFraction)
	v.SetDefault("trajectory.final_pitch_deg", def.FinalPitchDeg)
	v.SetDefault("trajectory.launch_azimuth_deg", def.LaunchAzimuthDeg)
	v.SetDefault("ddql.hidden", opt.HiddenSize)
	v.SetDefault("ddql.gamma", opt.Gamma)
	v.SetDefault("ddql.learning_rate", opt.LearningRate)
	v.SetDefault("ddql.epsilon_start", opt.EpsilonStart)
	v.SetDefault("ddql.epsilon_min", opt.EpsilonMin)
	v.SetDefault("ddql.epsilon_decay", opt.EpsilonDecay)
	v.SetDefault("ddql.batch_size", opt.BatchSize)
	v.SetDefault("ddql.train_every", opt.TrainEvery)
	v.SetDefault("ddql.sync_every", opt.SyncEvery)
	v.SetDefault("ddql.soft_tau", opt.SoftTau)
	v.SetDefault("ddql.replay_capacity", opt.ReplayCapacity)
	v.SetDefault("ddql.max_steps", opt.MaxSteps)
	v.SetDefault("ddql.stall_limit", opt.StallLimit)
	v.SetDefault("ddql.pitch_delta_s", opt.PitchDeltaS)
	v.SetDefault("ddql.azimuth_delta_deg", opt.AzimuthDeltaDeg)
	v.SetDefault("ddql.burn_delta_s", opt.BurnDeltaS)
	v.SetDefault("ddql.collision_penalty", opt.CollisionPenalty)
	v.SetDefault("ddql.insertion_penalty", opt.InsertionPenalty)
	v.SetDefault("ddql.insertion_tolerance", opt.InsertionTolerance)
	v.SetDefault("ddql.seed", opt.Seed)

	if err := v.ReadInConfig(); err != nil {
		return ScenarioConfig{}, fmt.Errorf("cannot read scenario %s: %s", path, err)
	}

	epochStr := v.GetString("mission.epoch")
	epoch, err := time.ParseInLocation(scenarioDateFormat, epochStr, time.UTC)
	if err != nil {
		return ScenarioConfig{}, fmt.Errorf("cannot parse mission.epoch %q: %s", epochStr, err)
	}

	cfg := ScenarioConfig{
		CatalogPath:     v.GetString("data.catalog"),
		RocketTablePath: v.GetString("data.rockets"),
		CheckpointPath:  v.GetString("data.checkpoint"),
		RocketType:      v.GetString("mission.rocket"),
		TargetAltKm:     v.GetFloat64("mission.target_altitude_km"),
		LaunchEpoch:     epoch,
		ThresholdKm:     v.GetFloat64("mission.threshold_km"),
		Propagator:      v.GetString("mission.propagator"),
		DetectorWorkers: v.GetInt("mission.detector_workers"),
		Trajectory: TrajectoryConfig{
			StepS:              v.GetFloat64("trajectory.step_s"),
			MaxClimbTimeS:      v.GetFloat64("trajectory.max_climb_s"),
			PropellantFraction: v.GetFloat64("trajectory.propellant_fraction"),
			FinalPitchDeg:      v.GetFloat64("trajectory.final_pitch_deg"),
			LaunchAzimuthDeg:   v.GetFloat64("trajectory.launch_azimuth_deg"),
		},
		Optimizer: OptimizerConfig{
			HiddenSize:         v.GetInt("ddql.hidden"),
			Gamma:              v.GetFloat64("ddql.gamma"),
			LearningRate:       v.GetFloat64("ddql.learning_rate"),
			EpsilonStart:       v.GetFloat64("ddql.epsilon_start"),
			EpsilonMin:         v.GetFloat64("ddql.epsilon_min"),
			EpsilonDecay:       v.GetFloat64("ddql.epsilon_decay"),
			BatchSize:          v.GetInt("ddql.batch_size"),
			TrainEvery:         v.GetInt("ddql.train_every"),
			SyncEvery:          v.GetInt("ddql.sync_every"),
			SoftTau:            v.GetFloat64("ddql.soft_tau"),
			ReplayCapacity:     v.GetInt("ddql.replay_capacity"),
			MaxSteps:           v.GetInt("ddql.max_steps"),
			StallLimit:         v.GetInt("ddql.stall_limit"),
			PitchDeltaS:        v.GetFloat64("ddql.pitch_delta_s"),
			AzimuthDeltaDeg:    v.GetFloat64("ddql.azimuth_delta_deg"),
			BurnDeltaS:         v.GetFloat64("ddql.burn_delta_s"),
			CollisionPenalty:   v.GetFloat64("ddql.collision_penalty"),
			InsertionPenalty:   v.GetFloat64("ddql.insertion_penalty"),
			InsertionTolerance: v.GetFloat64("ddql.insertion_tolerance"),
			ThresholdKm:        v.GetFloat64("mission.threshold_km"),
			Seed:               v.GetInt64("ddql.seed"),
		},
	}
	if cfg.CatalogPath == "" || cfg.RocketTablePath == "" {
		return ScenarioConfig{}, fmt.Errorf("scenario %s: data.catalog and data.rockets are required", path)
	}
	if cfg.TargetAltKm <= 0 {
		return ScenarioConfig{}, fmt.Errorf("scenario %s: mission.target_altitude_km must be positive", path)
	}
	if cfg.Propagator != "sgp4" && cfg.Propagator != "kepler" {
		return ScenarioConfig{}, fmt.Errorf("scenario %s: unknown mission.propagator %q", path, cfg.Propagator)
	}
	return cfg, nil
}

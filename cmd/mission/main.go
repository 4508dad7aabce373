package main

import (
	"flag"
	"log"
	"os"

	kitlog "github.com/go-kit/kit/log"

	"github.com/priyanksanket/debrisguard"
)

// This binary only reads the scenario file and runs one mission evaluation.

const defaultScenario = "~~unset~~"

var (
	scenario   string
	train      bool
	verbose    bool
	exportPath string
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "mission scenario TOML file")
	flag.BoolVar(&train, "train", true, "train the policy (false runs pure inference from the checkpoint)")
	flag.BoolVar(&verbose, "verbose", false, "really verbose (esp. for the DDQL steps)")
	flag.StringVar(&exportPath, "export", "", "write the final trajectory as CSV to this path")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	cfg, err := debrisguard.LoadScenario(scenario)
	if err != nil {
		log.Fatal(err)
	}

	debris, err := debrisguard.LoadCatalogFile(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("catalog: %s", err)
	}
	rockets, err := debrisguard.LoadRocketTableFile(cfg.RocketTablePath)
	if err != nil {
		log.Fatalf("rocket table: %s", err)
	}
	rocket, err := debrisguard.SelectRocketByType(rockets, cfg.RocketType, cfg.TargetAltKm)
	if err != nil {
		log.Fatal(err)
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	if !verbose {
		logger = levelFilter(logger)
	}

	opt := debrisguard.NewAvoidanceOptimizer(cfg.Optimizer, logger)
	if cfg.CheckpointPath != "" {
		if err := opt.LoadCheckpointFile(cfg.CheckpointPath); err != nil && !os.IsNotExist(err) {
			log.Fatalf("checkpoint: %s", err)
		}
	}

	loop := debrisguard.NewSimulationLoop(debris, cfg.Provider(), opt, logger)
	req := debrisguard.MissionRequest{
		Rocket:        rocket,
		TargetAltKm:   cfg.TargetAltKm,
		LaunchEpoch:   cfg.LaunchEpoch,
		ThresholdKm:   cfg.ThresholdKm,
		Parameters:    debrisguard.NominalParameters(),
		Train:         train,
		DetectorCfg:   debrisguard.DetectorConfig{Workers: cfg.DetectorWorkers},
		TrajectoryCfg: cfg.Trajectory,
	}

	res, evalErr := loop.EvaluateMission(req)
	if evalErr != nil && res.Status != debrisguard.StatusNonConvergent {
		log.Fatal(evalErr)
	}

	if err := debrisguard.WriteReport(os.Stdout, req, res); err != nil {
		log.Fatalf("report: %s", err)
	}
	if exportPath != "" && len(res.Trajectory.Samples) > 0 {
		if err := debrisguard.ExportTrajectoryFile(exportPath, res.Trajectory, cfg.LaunchEpoch); err != nil {
			log.Fatalf("export: %s", err)
		}
	}
	if cfg.CheckpointPath != "" && train {
		if err := opt.SaveCheckpointFile(cfg.CheckpointPath); err != nil {
			log.Fatalf("checkpoint: %s", err)
		}
	}
	if res.Status != debrisguard.StatusSuccess {
		os.Exit(1)
	}
}

// levelFilter drops the per-step debug lines of the optimizer.
func levelFilter(next kitlog.Logger) kitlog.Logger {
	return kitlog.LoggerFunc(func(keyvals ...interface{}) error {
		for i := 0; i+1 < len(keyvals); i += 2 {
			if keyvals[i] == "level" && keyvals[i+1] == "debug" {
				return nil
			}
		}
		return next.Log(keyvals...)
	})
}

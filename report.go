package debrisguard

import (
	"fmt"
	"io"
	"time"

	"github.com/soniakeys/meeus/julian"
)

// WriteReport renders a plain-text mission summary. Pure formatting: all
// decisions were made by the simulation loop.
func WriteReport(w io.Writer, req MissionRequest, res MissionResult) error {
	var err error
	p := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, args...)
	}

	p("MISSION REPORT\n")
	p("==============\n")
	p("Rocket:             %s (%s)\n", req.Rocket.Type, req.Rocket.LaunchSite)
	p("Target altitude:    %.0f km\n", req.TargetAltKm)
	p("Launch epoch:       %s (JD %.5f)\n", req.LaunchEpoch.Format(time.RFC3339), julian.TimeToJD(req.LaunchEpoch))
	p("Threshold:          %.2f km\n", req.ThresholdKm)
	p("Status:             %s\n", res.Status)
	p("\n")
	p("Climb time:         %.1f s\n", res.Trajectory.ClimbTimeS)
	p("Burn time:          %.1f s\n", res.Trajectory.BurnTimeS)
	p("Insertion velocity: %.3f km/s (target %.3f km/s, deviation %.2f%%)\n",
		res.Trajectory.InsertionVelocityKmS, res.Trajectory.TargetVelocityKmS, res.Trajectory.InsertionDeviation()*100)
	p("Parameters:         pitch-over %.1f s, azimuth bias %+.1f°, burn offset %+.1f s\n",
		res.Parameters.PitchOverTimeS, res.Parameters.AzimuthBiasDeg, res.Parameters.BurnStartOffsetS)
	p("RL steps:           %d\n", res.RLSteps)
	p("\n")

	if len(res.Events) == 0 {
		p("No conflicts on the final trajectory.\n")
		return err
	}
	p("Residual conflicts (%d):\n", len(res.Events))
	p("%10s  %-8s  %s\n", "t+ (s)", "object", "miss (km)")
	for _, ev := range res.Events {
		p("%10.1f  %-8s  %.4f\n", ev.OffsetS, ev.DebrisID, ev.MissDistanceKm)
	}
	return err
}

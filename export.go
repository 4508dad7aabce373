package debrisguard

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/soniakeys/meeus/julian"
)

// ExportTrajectoryCSV streams the ascent samples as CSV for plotting. Epochs
// are written both as offsets and as Julian dates.
func ExportTrajectoryCSV(w io.Writer, traj Trajectory, launchEpoch time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"offset_s", "jd", "x_km", "y_km", "z_km", "altitude_km", "velocity_kms"}); err != nil {
		return err
	}
	for _, s := range traj.Samples {
		epoch := launchEpoch.Add(time.Duration(s.OffsetS * float64(time.Second)))
		rec := []string{
			fmt.Sprintf("%.3f", s.OffsetS),
			fmt.Sprintf("%.8f", julian.TimeToJD(epoch)),
			fmt.Sprintf("%.6f", s.Position[0]),
			fmt.Sprintf("%.6f", s.Position[1]),
			fmt.Sprintf("%.6f", s.Position[2]),
			fmt.Sprintf("%.6f", norm(s.Position)-EarthRadiusKm),
			fmt.Sprintf("%.6f", s.VelocityKmS),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportEventsCSV writes the detected conflicts as CSV.
func ExportEventsCSV(w io.Writer, events []CollisionEvent, launchEpoch time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"offset_s", "jd", "debris_id", "miss_km"}); err != nil {
		return err
	}
	for _, ev := range events {
		epoch := launchEpoch.Add(time.Duration(ev.OffsetS * float64(time.Second)))
		rec := []string{
			fmt.Sprintf("%.3f", ev.OffsetS),
			fmt.Sprintf("%.8f", julian.TimeToJD(epoch)),
			ev.DebrisID,
			fmt.Sprintf("%.6f", ev.MissDistanceKm),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportTrajectoryFile writes the trajectory CSV to the given path.
func ExportTrajectoryFile(path string, traj Trajectory, launchEpoch time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ExportTrajectoryCSV(f, traj, launchEpoch)
}

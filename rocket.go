package debrisguard

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// RocketProfile is the physical description of one launcher, loaded once and
// read-only for the duration of a mission evaluation.
type RocketProfile struct {
	Type          string
	LaunchSite    string
	MaxAltitudeKm float64
	ThrustN       float64
	MassKg        float64
	BurnTimeS     float64
	LaunchPos     []float64 // ECI position of the launch site, km
}

var rocketTableHeader = []string{"Rocket_Type", "Launch_Site", "Max_Altitude_km", "Thrust_N", "Mass_kg", "Burn_Time_s", "x0", "y0", "z0"}

// LoadRocketTableFile loads the rocket parameter table from a CSV file.
func LoadRocketTableFile(path string) ([]RocketProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRocketTable(f)
}

// LoadRocketTable parses the rocket parameter CSV. A malformed record aborts
// the whole load.
func LoadRocketTable(r io.Reader) ([]RocketProfile, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, DataFormatError{Source: "rocket table", Line: 1, Reason: fmt.Sprintf("cannot read header: %s", err)}
	}
	if len(header) != len(rocketTableHeader) {
		return nil, DataFormatError{Source: "rocket table", Line: 1, Reason: fmt.Sprintf("expected %d columns, got %d", len(rocketTableHeader), len(header))}
	}
	for i, want := range rocketTableHeader {
		if header[i] != want {
			return nil, DataFormatError{Source: "rocket table", Line: 1, Reason: fmt.Sprintf("column %d is %q, expected %q", i+1, header[i], want)}
		}
	}

	var profiles []RocketProfile
	lineNo := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, DataFormatError{Source: "rocket table", Line: lineNo, Reason: err.Error()}
		}
		p := RocketProfile{Type: record[0], LaunchSite: record[1], LaunchPos: make([]float64, 3)}
		numeric := []struct {
			raw  string
			dst  *float64
			what string
		}{
			{record[2], &p.MaxAltitudeKm, "Max_Altitude_km"},
			{record[3], &p.ThrustN, "Thrust_N"},
			{record[4], &p.MassKg, "Mass_kg"},
			{record[5], &p.BurnTimeS, "Burn_Time_s"},
			{record[6], &p.LaunchPos[0], "x0"},
			{record[7], &p.LaunchPos[1], "y0"},
			{record[8], &p.LaunchPos[2], "z0"},
		}
		for _, f := range numeric {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, DataFormatError{Source: "rocket table", Line: lineNo, Reason: fmt.Sprintf("unparsable %s %q", f.what, f.raw)}
			}
			*f.dst = v
		}
		if p.ThrustN <= 0 || p.MassKg <= 0 || p.BurnTimeS <= 0 {
			return nil, DataFormatError{Source: "rocket table", Line: lineNo, Reason: "thrust, mass and burn time must be positive"}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// FilterRockets returns the profiles matching the predicate, preserving order.
func FilterRockets(profiles []RocketProfile, pred func(RocketProfile) bool) []RocketProfile {
	var out []RocketProfile
	for _, p := range profiles {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}

// SelectRocket returns the first profile whose rated altitude meets the
// requested target altitude.
func SelectRocket(profiles []RocketProfile, minAltKm float64) (RocketProfile, error) {
	suitable := FilterRockets(profiles, func(p RocketProfile) bool {
		return p.MaxAltitudeKm >= minAltKm
	})
	if len(suitable) == 0 {
		return RocketProfile{}, NoSuitableRocketError{MinAltitudeKm: minAltKm}
	}
	return suitable[0], nil
}

// SelectRocketByType returns the named profile, falling back to altitude
// selection semantics for the error when absent.
func SelectRocketByType(profiles []RocketProfile, rocketType string, minAltKm float64) (RocketProfile, error) {
	byType := FilterRockets(profiles, func(p RocketProfile) bool {
		return p.Type == rocketType && p.MaxAltitudeKm >= minAltKm
	})
	if len(byType) == 0 {
		return RocketProfile{}, NoSuitableRocketError{MinAltitudeKm: minAltKm}
	}
	return byType[0], nil
}

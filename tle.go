package debrisguard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

const tleLineLength = 69

// OrbitalElements holds the element set of one catalog record. Angles are in
// degrees as written in the TLE, mean motion in revolutions per day.
type OrbitalElements struct {
	Epoch        time.Time
	Inclination  float64
	Eccentricity float64
	MeanMotion   float64
	ArgPerigee   float64
	RAAN         float64
	MeanAnomaly  float64
}

// DebrisObject is one tracked object from the catalog. It is immutable once
// loaded: propagation is a pure function of (elements, epoch).
type DebrisObject struct {
	ID       string
	Name     string
	Elements OrbitalElements

	sat        satellite.Satellite
	degenerate string // non-empty when the elements cannot be propagated
}

// Degenerate returns the reason this object cannot be propagated, or an empty
// string for a healthy element set.
func (d DebrisObject) Degenerate() string {
	return d.degenerate
}

func (d DebrisObject) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.ID)
	}
	return d.ID
}

// LoadCatalogFile loads a debris catalog from a two-line element text file.
func LoadCatalogFile(path string) ([]DebrisObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadCatalog(f)
}

// LoadCatalog parses a debris catalog in two-line element format, with an
// optional name line before each record pair. Any structurally malformed
// record fails the whole load: collision detection downstream must know that
// catalog coverage is complete.
func LoadCatalog(r io.Reader) ([]DebrisObject, error) {
	scanner := bufio.NewScanner(r)
	var objects []DebrisObject
	var name string
	var line1 string
	var line1No int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "1 "):
			if line1 != "" {
				return nil, DataFormatError{Source: "catalog", Line: line1No, Reason: "line 1 record without matching line 2"}
			}
			if err := checkTLELine(line, lineNo); err != nil {
				return nil, err
			}
			line1 = line
			line1No = lineNo
		case strings.HasPrefix(line, "2 "):
			if line1 == "" {
				return nil, DataFormatError{Source: "catalog", Line: lineNo, Reason: "line 2 record without preceding line 1"}
			}
			if err := checkTLELine(line, lineNo); err != nil {
				return nil, err
			}
			obj, err := newDebrisObject(name, line1, line, line1No)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
			name = ""
			line1 = ""
		default:
			// Object name line.
			if line1 != "" {
				return nil, DataFormatError{Source: "catalog", Line: lineNo, Reason: "expected line 2 record, got name line"}
			}
			name = strings.TrimSpace(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if line1 != "" {
		return nil, DataFormatError{Source: "catalog", Line: line1No, Reason: "truncated record: missing line 2"}
	}
	return objects, nil
}

// checkTLELine validates length and mod-10 checksum of one element line.
func checkTLELine(line string, lineNo int) error {
	if len(line) != tleLineLength {
		return DataFormatError{Source: "catalog", Line: lineNo, Reason: fmt.Sprintf("expected %d characters, got %d", tleLineLength, len(line))}
	}
	sum := 0
	for _, c := range line[:tleLineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	want := int(line[tleLineLength-1] - '0')
	if sum%10 != want {
		return DataFormatError{Source: "catalog", Line: lineNo, Reason: fmt.Sprintf("checksum mismatch: computed %d, recorded %d", sum%10, want)}
	}
	return nil
}

func newDebrisObject(name, line1, line2 string, lineNo int) (DebrisObject, error) {
	catalog1 := strings.TrimSpace(line1[2:7])
	catalog2 := strings.TrimSpace(line2[2:7])
	if catalog1 != catalog2 {
		return DebrisObject{}, DataFormatError{Source: "catalog", Line: lineNo, Reason: fmt.Sprintf("catalog number mismatch between lines (%s vs %s)", catalog1, catalog2)}
	}
	epoch, err := parseTLEEpoch(line1[18:32])
	if err != nil {
		return DebrisObject{}, DataFormatError{Source: "catalog", Line: lineNo, Reason: err.Error()}
	}
	elems := OrbitalElements{Epoch: epoch}
	fields := []struct {
		raw  string
		dst  *float64
		what string
	}{
		{line2[8:16], &elems.Inclination, "inclination"},
		{line2[17:25], &elems.RAAN, "RAAN"},
		{"0." + strings.TrimSpace(line2[26:33]), &elems.Eccentricity, "eccentricity"},
		{line2[34:42], &elems.ArgPerigee, "argument of perigee"},
		{line2[43:51], &elems.MeanAnomaly, "mean anomaly"},
		{line2[52:63], &elems.MeanMotion, "mean motion"},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return DebrisObject{}, DataFormatError{Source: "catalog", Line: lineNo + 1, Reason: fmt.Sprintf("unparsable %s %q", f.what, strings.TrimSpace(f.raw))}
		}
		*f.dst = v
	}

	obj := DebrisObject{ID: catalog1, Name: name, Elements: elems}
	// Physically degenerate elements are a valid format but cannot be
	// propagated; the failure surfaces as a PropagationError on use.
	switch {
	case elems.Eccentricity >= 1:
		obj.degenerate = fmt.Sprintf("eccentricity %.4f not below 1", elems.Eccentricity)
	case elems.MeanMotion <= 0:
		obj.degenerate = fmt.Sprintf("non-positive mean motion %.8f", elems.MeanMotion)
	default:
		obj.sat = satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	}
	return obj, nil
}

// parseTLEEpoch decodes the YYDDD.DDDDDDDD epoch field of line 1.
func parseTLEEpoch(field string) (time.Time, error) {
	field = strings.TrimSpace(field)
	if len(field) < 5 {
		return time.Time{}, fmt.Errorf("unparsable epoch %q", field)
	}
	yy, err := strconv.Atoi(field[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable epoch year %q", field[:2])
	}
	doy, err := strconv.ParseFloat(field[2:], 64)
	if err != nil || doy < 1 || doy >= 367 {
		return time.Time{}, fmt.Errorf("unparsable epoch day %q", field[2:])
	}
	year := 2000 + yy
	if yy >= 57 {
		year = 1900 + yy
	}
	jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return jan1.Add(time.Duration((doy - 1) * 24 * float64(time.Hour))), nil
}

package debrisguard

import (
	"strings"
	"testing"
	"time"

	"github.com/gonum/floats"
)

// Reference element set (Vallado's ISS example); both checksums are valid.
const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

// fixChecksum recomputes the mod-10 checksum digit of an element line.
func fixChecksum(line string) string {
	sum := 0
	for _, c := range line[:tleLineLength-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return line[:tleLineLength-1] + string(rune('0'+sum%10))
}

func TestLoadCatalog(t *testing.T) {
	input := issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
	objects, err := LoadCatalog(strings.NewReader(input))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}
	obj := objects[0]
	if obj.ID != "25544" || obj.Name != issName {
		t.Fatalf("bad identity: %s", obj)
	}
	if obj.Degenerate() != "" {
		t.Fatalf("unexpectedly degenerate: %s", obj.Degenerate())
	}
	e := obj.Elements
	if !floats.EqualWithinAbs(e.Inclination, 51.6416, 1e-6) {
		t.Fatalf("invalid inclination %f", e.Inclination)
	}
	if !floats.EqualWithinAbs(e.Eccentricity, 0.0006703, 1e-9) {
		t.Fatalf("invalid eccentricity %f", e.Eccentricity)
	}
	if !floats.EqualWithinAbs(e.MeanMotion, 15.72125391, 1e-6) {
		t.Fatalf("invalid mean motion %f", e.MeanMotion)
	}
	if !floats.EqualWithinAbs(e.RAAN, 247.4627, 1e-6) {
		t.Fatalf("invalid RAAN %f", e.RAAN)
	}
	if e.Epoch.Year() != 2008 || e.Epoch.YearDay() != 264 {
		t.Fatalf("invalid epoch %s", e.Epoch)
	}
	// Fractional day: 0.51782528 of day 264.
	wantClock := time.Duration(0.51782528 * 24 * float64(time.Hour))
	gotClock := e.Epoch.Sub(time.Date(2008, 9, 20, 0, 0, 0, 0, time.UTC))
	if diff := (wantClock - gotClock).Seconds(); diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("epoch fraction off by %fs", diff)
	}
}

func TestLoadCatalogNoNameLine(t *testing.T) {
	objects, err := LoadCatalog(strings.NewReader(issLine1 + "\n" + issLine2 + "\n"))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}
	if len(objects) != 1 || objects[0].Name != "" {
		t.Fatalf("expected one unnamed object, got %+v", objects)
	}
}

func TestLoadCatalogChecksumFailure(t *testing.T) {
	// Flip the checksum digit of line 2.
	bad := issLine2[:tleLineLength-1] + "9"
	_, err := LoadCatalog(strings.NewReader(issLine1 + "\n" + bad + "\n"))
	var dfe DataFormatError
	if err == nil || !asDataFormat(err, &dfe) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
	if !strings.Contains(dfe.Reason, "checksum") {
		t.Fatalf("unexpected reason: %s", dfe.Reason)
	}
}

func TestLoadCatalogTruncatedRecord(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader(issName + "\n" + issLine1 + "\n"))
	var dfe DataFormatError
	if err == nil || !asDataFormat(err, &dfe) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
}

func TestLoadCatalogBadLength(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("1 25544U\n" + issLine2 + "\n"))
	var dfe DataFormatError
	if err == nil || !asDataFormat(err, &dfe) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
}

func TestLoadCatalogWholeLoadFails(t *testing.T) {
	// A valid record followed by a malformed one must fail the whole load.
	bad := issLine1[:tleLineLength-1] + "9"
	input := issLine1 + "\n" + issLine2 + "\n" + bad + "\n" + issLine2 + "\n"
	objects, err := LoadCatalog(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected load failure")
	}
	if objects != nil {
		t.Fatal("partial results must not be returned")
	}
}

func TestLoadCatalogDegenerateMeanMotion(t *testing.T) {
	// Negative mean motion parses fine but cannot be propagated.
	line2 := fixChecksum(issLine2[:52] + "-5.72125391" + issLine2[63:])
	objects, err := LoadCatalog(strings.NewReader(issLine1 + "\n" + line2 + "\n"))
	if err != nil {
		t.Fatalf("load failed: %s", err)
	}
	if objects[0].Degenerate() == "" {
		t.Fatal("expected a degenerate object")
	}
}

func asDataFormat(err error, target *DataFormatError) bool {
	dfe, ok := err.(DataFormatError)
	if ok {
		*target = dfe
	}
	return ok
}

package importer

import (
	"math"
	"testing"
)

const gpxRide = `<?xml version="1.0" encoding="UTF-8"?>
<gpx xmlns="http://www.topografix.com/GPX/1/1" version="1.1" creator="unit">
  <trk>
    <type>cycling</type>
    <trkseg>
      <trkpt lat="48.000" lon="7.000">
        <ele>210.0</ele>
        <time>2026-03-01T06:30:00Z</time>
        <extensions><hr>120</hr><power>180</power></extensions>
      </trkpt>
      <trkpt lat="48.001" lon="7.000">
        <ele>215.0</ele>
        <time>2026-03-01T06:31:00Z</time>
        <extensions><hr>130</hr><power>200</power></extensions>
      </trkpt>
      <trkpt lat="48.002" lon="7.000">
        <ele>212.0</ele>
        <time>2026-03-01T06:32:00Z</time>
        <extensions><hr>140</hr><watts>220</watts></extensions>
      </trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseGPXRide(t *testing.T) {
	res, err := ParseBytes("morning_ride.gpx", []byte(gpxRide))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	d := res.Draft

	if d.Source != SourceGPX {
		t.Fatalf("source: got %q", d.Source)
	}
	if d.DurationSec == nil || *d.DurationSec != 120 {
		t.Fatalf("durationSec: got %v, want 120", d.DurationSec)
	}
	// Two ~111.2m segments of one millidegree latitude each.
	if d.DistanceMeters == nil || *d.DistanceMeters < 220 || *d.DistanceMeters > 225 {
		t.Fatalf("distanceMeters: got %v, want ~222", d.DistanceMeters)
	}
	if d.StartTime == nil || *d.StartTime != "2026-03-01T06:30:00Z" {
		t.Fatalf("startTime: got %v", d.StartTime)
	}
	if d.EndTime == nil || *d.EndTime != "2026-03-01T06:32:00Z" {
		t.Fatalf("endTime: got %v", d.EndTime)
	}

	// Only the 210->215 climb counts toward gain.
	if d.ElevMeters == nil || *d.ElevMeters != 5 {
		t.Fatalf("elevMeters: got %v, want 5", d.ElevMeters)
	}

	if !d.HasHr || d.AvgHr == nil || *d.AvgHr != 130 {
		t.Fatalf("hr: hasHr=%v avgHr=%v, want true/130", d.HasHr, d.AvgHr)
	}
	// power and watts both feed the same average.
	if !d.HasPower || d.AvgPower == nil || *d.AvgPower != 200 {
		t.Fatalf("power: hasPower=%v avgPower=%v, want true/200", d.HasPower, d.AvgPower)
	}

	// No speed samples: the average is derived, and hasSpeed stays false.
	if d.HasSpeed {
		t.Fatalf("hasSpeed must be false without speed samples")
	}
	if d.AvgSpeed == nil || math.Abs(*d.AvgSpeed-6.66) > 0.1 {
		t.Fatalf("avgSpeed: got %v, want ~6.66 km/h", d.AvgSpeed)
	}

	if d.Sport == nil || string(*d.Sport) != "bike" {
		t.Fatalf("sport: got %v, want bike", d.Sport)
	}

	if len(res.Points) != 3 {
		t.Fatalf("points: got %d, want 3", len(res.Points))
	}
	if res.Points[2].ElapsedS != 120 {
		t.Fatalf("last point elapsed: got %v, want 120", res.Points[2].ElapsedS)
	}
	if res.Points[1].HRBPM == nil || *res.Points[1].HRBPM != 130 {
		t.Fatalf("point hr: got %v", res.Points[1].HRBPM)
	}
}

func TestParseGPXInvalidCoordinateBreaksChain(t *testing.T) {
	const track = `<gpx version="1.1">
  <trk><trkseg>
    <trkpt lat="48.000" lon="7.000"><time>2026-03-01T06:30:00Z</time></trkpt>
    <trkpt lat="oops" lon="7.000"><time>2026-03-01T06:31:00Z</time></trkpt>
    <trkpt lat="48.002" lon="7.000"><time>2026-03-01T06:32:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`
	res, err := ParseBytes("broken.gpx", []byte(track))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	// The invalid middle point severs both segments; nothing accumulates,
	// and no distance is reported rather than a bridged guess.
	if res.Draft.DistanceMeters != nil {
		t.Fatalf("distanceMeters: got %v, want nil", res.Draft.DistanceMeters)
	}
}

func TestParseGPXNoAltitudeMeansNoElevation(t *testing.T) {
	const track = `<gpx version="1.1">
  <trk><trkseg>
    <trkpt lat="48.000" lon="7.000"><ele>100</ele></trkpt>
  </trkseg></trk>
</gpx>`
	res, err := ParseBytes("flat.gpx", []byte(track))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	// A single altitude sample is not enough to claim a gain.
	if res.Draft.ElevMeters != nil {
		t.Fatalf("elevMeters: got %v, want nil", res.Draft.ElevMeters)
	}
	if res.Draft.AltitudeAvgM == nil || *res.Draft.AltitudeAvgM != 100 {
		t.Fatalf("altitudeAvgM: got %v, want 100", res.Draft.AltitudeAvgM)
	}
}

func TestParseGPXZeroSamplesDoNotSetFlags(t *testing.T) {
	const track = `<gpx version="1.1">
  <trk><trkseg>
    <trkpt lat="48.000" lon="7.000">
      <extensions><hr>0</hr><speed>-1</speed><power>0</power></extensions>
    </trkpt>
  </trkseg></trk>
</gpx>`
	res, err := ParseBytes("zeros.gpx", []byte(track))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	d := res.Draft
	// Present-but-non-positive samples never count as sensor data.
	if d.HasHr || d.HasPower || d.HasSpeed {
		t.Fatalf("zero samples set flags: hr=%v power=%v speed=%v", d.HasHr, d.HasPower, d.HasSpeed)
	}
	if d.Debug.Samples.HrCount != 0 || d.Debug.Samples.SpeedCount != 0 || d.Debug.Samples.WattsCount != 0 {
		t.Fatalf("zero samples counted: %+v", d.Debug.Samples)
	}
}

func TestParseGPXEmptyTrackYieldsNulls(t *testing.T) {
	const track = `<gpx version="1.1"><trk><trkseg></trkseg></trk></gpx>`
	res, err := ParseBytes("empty.gpx", []byte(track))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	d := res.Draft
	if d.DurationSec != nil || d.DistanceMeters != nil || d.ElevMeters != nil || d.AvgSpeed != nil {
		t.Fatalf("empty track must yield nil metrics: %+v", d)
	}
	if d.Metrics.Time != "--" || d.Metrics.Distance != "--" || d.Metrics.Elev != "--" {
		t.Fatalf("empty track display metrics: %+v", d.Metrics)
	}
	if d.HasHr || d.HasPower || d.HasSpeed {
		t.Fatalf("sensor flags must be false for empty track")
	}
}

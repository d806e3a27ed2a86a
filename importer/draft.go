package importer

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"tricoach"
)

// ImportSource identifies the file format a draft was parsed from.
type ImportSource string

const (
	SourceGPX ImportSource = "gpx"
	SourceTCX ImportSource = "tcx"
	SourceFIT ImportSource = "fit"
)

// SpeedSource records which data path produced the average speed.
type SpeedSource string

const (
	SpeedSourceTPX     SpeedSource = "TPX.Speed"
	SpeedSourceDerived SpeedSource = "DerivedFromDistance"
	SpeedSourceUnknown SpeedSource = ""
)

// MarshalJSON renders the unknown source as null so downstream tooling can
// distinguish "no trace" from an empty label.
func (s SpeedSource) MarshalJSON() ([]byte, error) {
	if s == SpeedSourceUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null as the unknown source.
func (s *SpeedSource) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SpeedSourceUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SpeedSource(raw)
	return nil
}

// PowerSource records which data path produced the average power.
type PowerSource string

const (
	PowerSourceTPX     PowerSource = "TPX.Watts"
	PowerSourceUnknown PowerSource = ""
)

func (s PowerSource) MarshalJSON() ([]byte, error) {
	if s == PowerSourceUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *PowerSource) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = PowerSourceUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = PowerSource(raw)
	return nil
}

// DebugSamples captures raw per-sensor sample counts and averages. Counts
// and averages are recorded regardless of whether the corresponding value
// made it into the draft, so inspection tooling can audit every fallback.
type DebugSamples struct {
	HrAvgBpm       *int     `json:"hrAvgBpm"`
	SpeedAvgKmh    *float64 `json:"speedAvgKmh"`
	WattsAvgW      *int     `json:"wattsAvgW"`
	AltitudeAvgM   *float64 `json:"altitudeAvgM"`
	DistanceTotalM *int     `json:"distanceTotalM"`
	HrCount        int      `json:"hrCount"`
	SpeedCount     int      `json:"speedCount"`
	WattsCount     int      `json:"wattsCount"`
	AltitudeCount  int      `json:"altitudeCount"`
	DistanceCount  int      `json:"distanceCount"`
}

// ImportDebug is the per-draft trace of which fallback path each metric took.
type ImportDebug struct {
	SpeedFoundAt SpeedSource  `json:"speedFoundAt"`
	WattsFoundAt PowerSource  `json:"wattsFoundAt"`
	SportRaw     *string      `json:"sportRaw"`
	Samples      DebugSamples `json:"samples"`
}

// ImportMetrics are preformatted display strings for the import review UI.
type ImportMetrics struct {
	Time     string `json:"time"`
	Distance string `json:"distance"`
	Elev     string `json:"elev"`
}

// ImportDraft is the transient, user-editable result of parsing one file.
// It is consumed once at save time to build a persisted Activity.
type ImportDraft struct {
	ID             string          `json:"id"`
	Source         ImportSource    `json:"source"`
	FileName       string          `json:"fileName"`
	FileSize       int64           `json:"fileSize"`
	DateLabel      string          `json:"dateLabel"`
	Metrics        ImportMetrics   `json:"metrics"`
	StartTime      *string         `json:"startTime"`
	EndTime        *string         `json:"endTime"`
	DurationSec    *int            `json:"durationSec"`
	DistanceMeters *int            `json:"distanceMeters"`
	ElevMeters     *int            `json:"elevMeters"`
	AltitudeAvgM   *float64        `json:"altitudeAvgM"`
	HasHr          bool            `json:"hasHr"`
	HasPower       bool            `json:"hasPower"`
	HasSpeed       bool            `json:"hasSpeed"`
	AvgHr          *int            `json:"avgHr"`
	AvgPower       *int            `json:"avgPower"`
	AvgSpeed       *float64        `json:"avgSpeed"`
	SRpe           *int            `json:"sRpe"`
	Sport          *tricoach.Sport `json:"sport"`
	Debug          *ImportDebug    `json:"debug"`
}

// PointSample is one canonical trackpoint row retained for inspection
// tooling and sample export.
type PointSample struct {
	TSUTCISO  string   `json:"ts_utc_iso,omitempty"`
	ElapsedS  float64  `json:"elapsed_s"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	AltitudeM *float64 `json:"altitude_m,omitempty"`
	HRBPM     *float64 `json:"hr_bpm,omitempty"`
	SpeedMPS  *float64 `json:"speed_mps,omitempty"`
	PowerW    *float64 `json:"power_w,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
	Index     int      `json:"point_index"`
}

// Result pairs a parsed draft with the point samples it was derived from.
type Result struct {
	Draft  *ImportDraft
	Points []PointSample
}

func newDraftID(source ImportSource) string {
	return fmt.Sprintf("%s-%d-%08x", source, time.Now().UnixMilli(), rand.Uint32())
}

// mapSport maps a raw sport label (element text, Sport attribute, or file
// name) to a known discipline via case-insensitive substring match.
func mapSport(raw string) *tricoach.Sport {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return nil
	}
	var sport tricoach.Sport
	switch {
	case strings.Contains(v, "swimming") || strings.Contains(v, "swim"):
		sport = tricoach.SportSwim
	case strings.Contains(v, "running") || strings.Contains(v, "run"):
		sport = tricoach.SportRun
	case strings.Contains(v, "biking") || strings.Contains(v, "bike") ||
		strings.Contains(v, "cycle") || strings.Contains(v, "cycling") ||
		strings.Contains(v, "ride"):
		sport = tricoach.SportBike
	default:
		return nil
	}
	return &sport
}

// ToActivity consumes a draft and builds the persisted Activity record.
// The draft should be discarded afterwards.
func ToActivity(d *ImportDraft, title string, notes *string, now time.Time) tricoach.Activity {
	if strings.TrimSpace(title) == "" {
		title = defaultTitle(d)
	}
	act := tricoach.Activity{
		ID:             tricoach.NewActivityID(),
		Source:         tricoach.ActivitySource(d.Source),
		Title:          title,
		DistanceMeters: d.DistanceMeters,
		ElevMeters:     d.ElevMeters,
		AvgHr:          d.AvgHr,
		AvgPower:       d.AvgPower,
		AvgSpeed:       d.AvgSpeed,
		HasHr:          d.HasHr,
		HasPower:       d.HasPower,
		HasSpeed:       d.HasSpeed,
		SRpe:           d.SRpe,
		Notes:          notes,
		CreatedAt:      now.UTC().Format(time.RFC3339),
		UpdatedAt:      now.UTC().Format(time.RFC3339),
	}
	if d.Sport != nil {
		sport := *d.Sport
		act.Sport = &sport
	}
	if d.StartTime != nil {
		act.StartTime = *d.StartTime
	}
	if d.EndTime != nil {
		act.EndTime = *d.EndTime
	}
	if d.DurationSec != nil {
		act.DurationSec = *d.DurationSec
	}
	return act
}

func defaultTitle(d *ImportDraft) string {
	if d.Sport != nil {
		return fmt.Sprintf("Imported %s", *d.Sport)
	}
	if d.FileName != "" {
		return d.FileName
	}
	return "Imported activity"
}

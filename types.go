package tricoach

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Sport is the activity discipline.
type Sport string

const (
	SportSwim     Sport = "swim"
	SportBike     Sport = "bike"
	SportRun      Sport = "run"
	SportStrength Sport = "strength"
	SportOther    Sport = "other"
)

// ActivitySource records where a persisted activity came from.
type ActivitySource string

const (
	SourceGPX    ActivitySource = "gpx"
	SourceTCX    ActivitySource = "tcx"
	SourceFIT    ActivitySource = "fit"
	SourceManual ActivitySource = "manual"
)

// ProfileData is the athlete profile snapshot. Unset measurements are nil
// and render as empty, never as zero.
type ProfileData struct {
	Age             *int     `json:"age"`
	HeightCm        *float64 `json:"heightCm"`
	WeightKg        *float64 `json:"weightKg"`
	FTPW            *float64 `json:"ftpW"`
	VO2Max          *float64 `json:"vo2max"`
	TrainingFocus   []string `json:"trainingFocus"`
	TrackSessionRPE bool     `json:"trackSessionRpe"`
}

// DoctrineData holds the athlete's coaching doctrine: goals, constraints
// and standing principles fed to every coaching exchange.
type DoctrineData struct {
	ShortTermGoal string `json:"shortTermGoal"`
	SeasonGoal    string `json:"seasonGoal"`
	Constraints   string `json:"constraints"`
	Doctrine      string `json:"doctrine"`
}

// Activity is one persisted training session. Nullable measurements are
// pointers; the zero pointer marshals to JSON null, which downstream
// consumers rely on (missing values are null, never zero).
type Activity struct {
	ID             string         `json:"id"`
	Source         ActivitySource `json:"source"`
	Sport          *Sport         `json:"sport"`
	Title          string         `json:"title"`
	StartTime      string         `json:"startTime"`
	EndTime        string         `json:"endTime"`
	DurationSec    int            `json:"durationSec"`
	DistanceMeters *int           `json:"distanceMeters"`
	ElevMeters     *int           `json:"elevMeters"`
	AvgHr          *int           `json:"avgHr"`
	AvgPower       *int           `json:"avgPower"`
	AvgSpeed       *float64       `json:"avgSpeed"`
	HasHr          bool           `json:"hasHr"`
	HasPower       bool           `json:"hasPower"`
	HasSpeed       bool           `json:"hasSpeed"`
	SRpe           *int           `json:"sRpe"`
	Notes          *string        `json:"notes"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

// NewActivityID returns a stable identifier for a newly persisted activity.
// UUIDs are preferred; a timestamp+random token is the fallback when UUID
// generation fails.
func NewActivityID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("act-%d-%08x", time.Now().UnixMilli(), rand.Uint32())
}

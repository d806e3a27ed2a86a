// Package store persists athlete data as three JSON documents under fixed
// keys: profile, doctrine, and the activity log. Loads normalize legacy
// shapes so callers always see current-schema values.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tricoach"
)

// Keys under which the documents live.
const (
	KeyProfile    = "profile"
	KeyDoctrine   = "doctrine"
	KeyActivities = "activities"
)

var defaultTrainingFocus = []string{"continuity"}

// Store is the persistence surface. LoadProfile and LoadDoctrine return nil
// when nothing has been saved yet.
type Store interface {
	LoadProfile(ctx context.Context) (*tricoach.ProfileData, error)
	SaveProfile(ctx context.Context, profile tricoach.ProfileData) error
	LoadDoctrine(ctx context.Context) (*tricoach.DoctrineData, error)
	SaveDoctrine(ctx context.Context, doctrine tricoach.DoctrineData) error
	LoadActivities(ctx context.Context) ([]tricoach.Activity, error)
	SaveActivities(ctx context.Context, activities []tricoach.Activity) error
	AddActivities(ctx context.Context, activities []tricoach.Activity) error
	Close() error
}

// storedProfile tolerates older saves that predate the trackSessionRpe and
// trainingFocus fields.
type storedProfile struct {
	Age             *int     `json:"age"`
	HeightCm        *float64 `json:"heightCm"`
	WeightKg        *float64 `json:"weightKg"`
	FTPW            *float64 `json:"ftpW"`
	VO2Max          *float64 `json:"vo2max"`
	TrainingFocus   []string `json:"trainingFocus"`
	TrackSessionRPE *bool    `json:"trackSessionRpe"`
}

func decodeProfile(raw []byte) (*tricoach.ProfileData, error) {
	var stored storedProfile
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	profile := &tricoach.ProfileData{
		Age:             stored.Age,
		HeightCm:        stored.HeightCm,
		WeightKg:        stored.WeightKg,
		FTPW:            stored.FTPW,
		VO2Max:          stored.VO2Max,
		TrainingFocus:   normalizeTrainingFocus(stored.TrainingFocus),
		TrackSessionRPE: true,
	}
	if stored.TrackSessionRPE != nil {
		profile.TrackSessionRPE = *stored.TrackSessionRPE
	}
	return profile, nil
}

// normalizeTrainingFocus keeps the first non-empty focus entry; anything
// else collapses to the default.
func normalizeTrainingFocus(value []string) []string {
	for _, entry := range value {
		if entry != "" {
			return []string{entry}
		}
	}
	return append([]string(nil), defaultTrainingFocus...)
}

// storedActivity tolerates the legacy "comment" field that predates notes.
type storedActivity struct {
	tricoach.Activity
	Comment *string `json:"comment"`
}

func decodeActivities(raw []byte, now time.Time) ([]tricoach.Activity, error) {
	var stored []storedActivity
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	out := make([]tricoach.Activity, 0, len(stored))
	for _, item := range stored {
		activity := item.Activity
		if activity.CreatedAt == "" {
			if _, ok := tricoach.ParseISO(activity.StartTime); ok {
				activity.CreatedAt = activity.StartTime
			} else {
				activity.CreatedAt = now.UTC().Format(time.RFC3339)
			}
		}
		if activity.Notes == nil && item.Comment != nil {
			activity.Notes = item.Comment
		}
		out = append(out, activity)
	}
	return out, nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return data, nil
}

package importer

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/tormoder/fit"

	"tricoach"
)

// parseFIT extracts a draft from a FIT activity file. Session totals are
// authoritative; record-derived values are the fallback, mirroring the
// lap-over-trackpoint priority of the TCX pipeline.
func parseFIT(data []byte, meta FileMeta) (*Result, error) {
	decoded, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: FailParse, Err: fmt.Errorf("decode fit: %w", err)}
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, &ParseError{Reason: FailParse, Err: fmt.Errorf("activity fit expected: %w", err)}
	}
	if len(activity.Sessions) == 0 {
		return nil, &ParseError{Reason: FailParse, Err: errNoSession}
	}
	session := activity.Sessions[0]

	var (
		seriesStart, seriesEnd time.Time
		prevAlt                *float64

		elevGain      float64
		altitudeSum   float64
		altitudeCount int
		lastDistance  float64
		distanceCount int
		hrSum         float64
		hrCount       int
		powerSum      float64
		powerCount    int
		speedSum      float64
		speedCount    int

		points  []PointSample
		firstTS time.Time
		haveTS  bool
	)

	for i, rec := range activity.Records {
		if rec == nil {
			continue
		}
		sample := PointSample{Index: i}

		ts := fitTimeOrZero(rec.Timestamp)
		if !ts.IsZero() {
			if seriesStart.IsZero() {
				seriesStart = ts
			}
			seriesEnd = ts
			sample.TSUTCISO = ts.UTC().Format(time.RFC3339)
			if !haveTS {
				firstTS = ts
				haveTS = true
			}
			sample.ElapsedS = ts.Sub(firstTS).Seconds()
		}

		if lat := rec.PositionLat.Degrees(); !math.IsNaN(lat) {
			if lon := rec.PositionLong.Degrees(); !math.IsNaN(lon) {
				latCopy, lonCopy := lat, lon
				sample.Lat, sample.Lon = &latCopy, &lonCopy
			}
		}

		if alt := rec.GetAltitudeScaled(); isFiniteValue(alt) {
			altitudeSum += alt
			altitudeCount++
			if prevAlt != nil && alt > *prevAlt {
				elevGain += alt - *prevAlt
			}
			altCopy := alt
			prevAlt = &altCopy
			sample.AltitudeM = &altCopy
		}

		if dist := rec.GetDistanceScaled(); isFiniteValue(dist) && dist > 0 {
			lastDistance = dist
			distanceCount++
			distCopy := dist
			sample.DistanceM = &distCopy
		}

		if rec.HeartRate != math.MaxUint8 && rec.HeartRate > 0 {
			hr := float64(rec.HeartRate)
			hrSum += hr
			hrCount++
			hrCopy := hr
			sample.HRBPM = &hrCopy
		}

		if speed, ok := fitSpeed(rec); ok {
			speedSum += speed
			speedCount++
			speedCopy := speed
			sample.SpeedMPS = &speedCopy
		}

		if rec.Power != math.MaxUint16 && rec.Power > 0 {
			power := float64(rec.Power)
			powerSum += power
			powerCount++
			powerCopy := power
			sample.PowerW = &powerCopy
		}

		points = append(points, sample)
	}

	startT := fitTimeOrZero(session.StartTime)
	if startT.IsZero() {
		startT = seriesStart
	}
	endT := fitTimeOrZero(session.Timestamp)
	if endT.IsZero() {
		endT = seriesEnd
	}

	var durationSec *int
	if timer := session.GetTotalTimerTimeScaled(); isFiniteValue(timer) && timer > 0 {
		durationSec = positiveRoundedInt(timer)
	} else if !startT.IsZero() && !endT.IsZero() {
		durationSec = positiveRoundedInt(endT.Sub(startT).Seconds())
	}

	var distanceMeters *int
	if total := session.GetTotalDistanceScaled(); isFiniteValue(total) && total > 0 {
		distanceMeters = positiveRoundedInt(total)
	} else if lastDistance > 0 {
		distanceMeters = positiveRoundedInt(lastDistance)
	}

	var elevMeters *int
	if session.TotalAscent != math.MaxUint16 && session.TotalAscent > 0 {
		ascent := int(session.TotalAscent)
		elevMeters = &ascent
	} else if altitudeCount > 1 {
		rounded := int(math.Round(elevGain))
		elevMeters = &rounded
	}

	var altitudeAvgM *float64
	if altitudeCount > 0 {
		avg := altitudeSum / float64(altitudeCount)
		altitudeAvgM = &avg
	}

	avgHr := roundedAverage(hrSum, hrCount)
	if session.AvgHeartRate != math.MaxUint8 && session.AvgHeartRate > 0 {
		v := int(session.AvgHeartRate)
		avgHr = &v
	}
	avgPower := roundedAverage(powerSum, powerCount)
	if session.AvgPower != math.MaxUint16 && session.AvgPower > 0 {
		v := int(session.AvgPower)
		avgPower = &v
	}

	avgSpeed := deriveSpeedKmh(speedSum, speedCount, distanceMeters, durationSec)
	if v := session.GetEnhancedAvgSpeedScaled(); isFiniteValue(v) && v > 0 {
		kmh := tricoach.MpsToKmh(v)
		avgSpeed = &kmh
	} else if v := session.GetAvgSpeedScaled(); isFiniteValue(v) && v > 0 {
		kmh := tricoach.MpsToKmh(v)
		avgSpeed = &kmh
	}

	sportRaw := fmt.Sprint(session.Sport)
	sport := mapSport(sportRaw)
	if sport == nil {
		sport = mapSport(meta.FileName)
	}

	startTime := ""
	if !startT.IsZero() {
		startTime = startT.UTC().Format(time.RFC3339)
	}
	endTime := ""
	if !endT.IsZero() {
		endTime = endT.UTC().Format(time.RFC3339)
	}

	draft := &ImportDraft{
		ID:        newDraftID(SourceFIT),
		Source:    SourceFIT,
		FileName:  meta.name("unknown.fit"),
		FileSize:  meta.FileSize,
		DateLabel: tricoach.FormatDateLabel(startTime, time.Now()),
		Metrics: ImportMetrics{
			Time:     tricoach.FormatDuration(durationSec),
			Distance: tricoach.FormatDistance(distanceMeters),
			Elev:     tricoach.FormatElev(elevMeters),
		},
		StartTime:      strPtrOrNil(startTime),
		EndTime:        strPtrOrNil(endTime),
		DurationSec:    durationSec,
		DistanceMeters: distanceMeters,
		ElevMeters:     elevMeters,
		AltitudeAvgM:   altitudeAvgM,
		HasHr:          hrCount > 0,
		HasPower:       powerCount > 0,
		HasSpeed:       speedCount > 0,
		AvgHr:          avgHr,
		AvgPower:       avgPower,
		AvgSpeed:       avgSpeed,
		Sport:          sport,
		Debug: &ImportDebug{
			SpeedFoundAt: SpeedSourceUnknown,
			WattsFoundAt: PowerSourceUnknown,
			SportRaw:     &sportRaw,
			Samples: DebugSamples{
				HrAvgBpm:       roundedAverage(hrSum, hrCount),
				SpeedAvgKmh:    directSpeedKmh(speedSum, speedCount),
				WattsAvgW:      roundedAverage(powerSum, powerCount),
				AltitudeAvgM:   altitudeAvgM,
				DistanceTotalM: roundedTotal(lastDistance, distanceCount),
				HrCount:        hrCount,
				SpeedCount:     speedCount,
				WattsCount:     powerCount,
				AltitudeCount:  altitudeCount,
				DistanceCount:  distanceCount,
			},
		},
	}
	return &Result{Draft: draft, Points: points}, nil
}

func fitSpeed(rec *fit.RecordMsg) (float64, bool) {
	if v := rec.GetEnhancedSpeedScaled(); isFiniteValue(v) && v > 0 {
		return v, true
	}
	if v := rec.GetSpeedScaled(); isFiniteValue(v) && v > 0 {
		return v, true
	}
	return 0, false
}

func fitTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func isFiniteValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

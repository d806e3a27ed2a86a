package importer

import (
	"math"
	"time"

	"tricoach"
)

// parseTCX extracts a draft from TrainingCenterDatabase data. Lap totals
// are authoritative when declared; trackpoint-derived values are the
// fallback. The speed/watts provenance trace is a first-class output.
func parseTCX(data []byte, meta FileMeta) (*Result, error) {
	doc, err := parseXMLDocument(data)
	if err != nil {
		return nil, err
	}
	activity := firstElem(doc, "Activity")
	if activity == nil {
		return nil, &ParseError{Reason: FailParse, Err: errNoActivity}
	}

	sportRaw, hasSportRaw := attrValue(activity, "Sport")
	fileName := meta.name("unknown.tcx")
	sport := mapSport(sportRaw)
	if sport == nil {
		sport = mapSport(fileName)
	}

	var (
		startTime     string
		totalDuration float64
		totalDistance float64
		hasDuration   bool
		hasDistance   bool
	)
	for _, lap := range elemsByLocal(activity, "Lap") {
		if raw, ok := attrValue(lap, "StartTime"); ok {
			if iso := tricoach.NormalizeISO(raw); iso != "" {
				if startTime == "" || isoBefore(iso, startTime) {
					startTime = iso
				}
			}
		}
		if v, ok := firstNum(lap, "TotalTimeSeconds"); ok {
			totalDuration += v
			hasDuration = true
		}
		if v, ok := firstNum(lap, "DistanceMeters"); ok {
			totalDistance += v
			hasDistance = true
		}
	}

	if startTime == "" {
		if raw, ok := firstText(activity, "Id"); ok {
			startTime = tricoach.NormalizeISO(raw)
		}
	}

	var (
		firstTime, lastTime         string
		firstDistance, lastDistance *float64
		prevAlt                     *float64

		elevGain      float64
		altitudeSum   float64
		altitudeCount int
		distanceTotal float64
		distanceCount int
		hrSum         float64
		hrCount       int
		speedSum      float64
		speedCount    int
		wattsSum      float64
		wattsCount    int

		points  []PointSample
		firstTS time.Time
		haveTS  bool
	)

	for i, tp := range elemsByLocal(activity, "Trackpoint") {
		sample := PointSample{Index: i}

		if raw, ok := firstText(tp, "Time"); ok {
			if iso := tricoach.NormalizeISO(raw); iso != "" {
				if firstTime == "" {
					firstTime = iso
				}
				lastTime = iso
				sample.TSUTCISO = iso
				if t, ok := tricoach.ParseISO(iso); ok {
					if !haveTS {
						firstTS = t
						haveTS = true
					}
					sample.ElapsedS = t.Sub(firstTS).Seconds()
				}
			}
		}

		if dist, ok := firstNum(tp, "DistanceMeters"); ok {
			distanceCount++
			distanceTotal = dist
			distCopy := dist
			if firstDistance == nil {
				firstDistance = &distCopy
			}
			lastDistance = &distCopy
			sample.DistanceM = &distCopy
		}

		if alt, ok := firstNum(tp, "AltitudeMeters"); ok {
			altitudeSum += alt
			altitudeCount++
			if prevAlt != nil && alt > *prevAlt {
				elevGain += alt - *prevAlt
			}
			altCopy := alt
			prevAlt = &altCopy
			sample.AltitudeM = &altCopy
		}

		if hr, ok := positiveSample(nestedNum(tp, "HeartRateBpm", "Value")); ok {
			hrSum += hr
			hrCount++
			hrCopy := hr
			sample.HRBPM = &hrCopy
		}

		if speed, ok := positiveSample(tpxNum(tp, "Speed")); ok {
			speedSum += speed
			speedCount++
			speedCopy := speed
			sample.SpeedMPS = &speedCopy
		}

		if watts, ok := positiveSample(tpxNum(tp, "Watts")); ok {
			wattsSum += watts
			wattsCount++
			wattsCopy := watts
			sample.PowerW = &wattsCopy
		}

		points = append(points, sample)
	}

	if startTime == "" && firstTime != "" {
		startTime = firstTime
	}

	var durationSec *int
	switch {
	case hasDuration:
		durationSec = positiveRoundedInt(totalDuration)
	case startTime != "" && lastTime != "":
		st, okS := tricoach.ParseISO(startTime)
		lt, okL := tricoach.ParseISO(lastTime)
		if okS && okL {
			durationSec = positiveRoundedInt(lt.Sub(st).Seconds())
		}
	}

	var distanceMeters *int
	switch {
	case hasDistance:
		distanceMeters = positiveRoundedInt(totalDistance)
	case firstDistance != nil && lastDistance != nil:
		distanceMeters = positiveRoundedInt(*lastDistance - *firstDistance)
	}

	endTime := lastTime
	if endTime == "" && startTime != "" && durationSec != nil {
		if st, ok := tricoach.ParseISO(startTime); ok {
			endTime = st.Add(time.Duration(*durationSec) * time.Second).UTC().Format(time.RFC3339)
		}
	}

	avgSpeed := deriveSpeedKmh(speedSum, speedCount, distanceMeters, durationSec)

	speedFoundAt := SpeedSourceUnknown
	switch {
	case speedCount > 0:
		speedFoundAt = SpeedSourceTPX
	case speedCount == 0 && avgSpeed != nil:
		speedFoundAt = SpeedSourceDerived
	}
	wattsFoundAt := PowerSourceUnknown
	if wattsCount > 0 {
		wattsFoundAt = PowerSourceTPX
	}

	var elevMeters *int
	if altitudeCount > 1 {
		rounded := int(math.Round(elevGain))
		elevMeters = &rounded
	}
	var altitudeAvgM *float64
	if altitudeCount > 0 {
		avg := altitudeSum / float64(altitudeCount)
		altitudeAvgM = &avg
	}

	var sportRawPtr *string
	if hasSportRaw {
		sportRawPtr = &sportRaw
	}

	draft := &ImportDraft{
		ID:        newDraftID(SourceTCX),
		Source:    SourceTCX,
		FileName:  fileName,
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
		HasPower:       wattsCount > 0,
		HasSpeed:       speedCount > 0,
		AvgHr:          roundedAverage(hrSum, hrCount),
		AvgPower:       roundedAverage(wattsSum, wattsCount),
		AvgSpeed:       avgSpeed,
		Sport:          sport,
		Debug: &ImportDebug{
			SpeedFoundAt: speedFoundAt,
			WattsFoundAt: wattsFoundAt,
			SportRaw:     sportRawPtr,
			Samples: DebugSamples{
				HrAvgBpm:       roundedAverage(hrSum, hrCount),
				SpeedAvgKmh:    directSpeedKmh(speedSum, speedCount),
				WattsAvgW:      roundedAverage(wattsSum, wattsCount),
				AltitudeAvgM:   altitudeAvgM,
				DistanceTotalM: roundedTotal(distanceTotal, distanceCount),
				HrCount:        hrCount,
				SpeedCount:     speedCount,
				WattsCount:     wattsCount,
				AltitudeCount:  altitudeCount,
				DistanceCount:  distanceCount,
			},
		},
	}
	return &Result{Draft: draft, Points: points}, nil
}

func isoBefore(a, b string) bool {
	ta, okA := tricoach.ParseISO(a)
	tb, okB := tricoach.ParseISO(b)
	if !okA || !okB {
		return false
	}
	return ta.Before(tb)
}

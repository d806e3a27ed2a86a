package importer

import (
	"math"
	"time"

	"tricoach"
)

// parseGPX extracts a draft from GPX track data: haversine distance over
// valid coordinate pairs, first/last timestamps, monotonic elevation gain,
// and positive-only sensor samples from trkpt children.
func parseGPX(data []byte, meta FileMeta) (*Result, error) {
	doc, err := parseXMLDocument(data)
	if err != nil {
		return nil, err
	}
	trkpts := elemsByLocal(doc, "trkpt")

	var (
		startTime, endTime string
		prevLat, prevLon   *float64
		prevAlt            *float64

		distanceSum      float64
		distanceSegments int
		distanceCount    int
		elevGain         float64
		altitudeSum      float64
		altitudeCount    int
		hrSum            float64
		hrCount          int
		powerSum         float64
		powerCount       int
		speedSum         float64
		speedCount       int

		points  []PointSample
		firstTS time.Time
		haveTS  bool
	)

	for i, pt := range trkpts {
		sample := PointSample{Index: i}

		lat, latOK := attrNum(pt, "lat")
		lon, lonOK := attrNum(pt, "lon")
		if latOK && lonOK {
			if prevLat != nil && prevLon != nil {
				distanceSum += tricoach.HaversineMeters(*prevLat, *prevLon, lat, lon)
				distanceSegments++
			}
			distanceCount++
			latCopy, lonCopy := lat, lon
			prevLat, prevLon = &latCopy, &lonCopy
			sample.Lat, sample.Lon = &latCopy, &lonCopy
			dist := distanceSum
			sample.DistanceM = &dist
		} else {
			// Invalid coordinates break the previous-point chain; the next
			// valid point starts a fresh segment instead of bridging the gap.
			prevLat, prevLon = nil, nil
		}

		if raw, ok := firstText(pt, "time"); ok {
			if iso := tricoach.NormalizeISO(raw); iso != "" {
				if startTime == "" {
					startTime = iso
				}
				endTime = iso
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

		if alt, ok := firstNum(pt, "ele"); ok {
			altitudeSum += alt
			altitudeCount++
			if prevAlt != nil && alt > *prevAlt {
				elevGain += alt - *prevAlt
			}
			altCopy := alt
			prevAlt = &altCopy
			sample.AltitudeM = &altCopy
		}

		if hr, ok := positiveSample(firstNum(pt, "hr")); ok {
			hrSum += hr
			hrCount++
			hrCopy := hr
			sample.HRBPM = &hrCopy
		}

		if speed, ok := positiveSample(firstNum(pt, "speed")); ok {
			speedSum += speed
			speedCount++
			speedCopy := speed
			sample.SpeedMPS = &speedCopy
		}

		// First positive of power|watts wins per point.
		if power, ok := positiveSample(firstNum(pt, "power")); ok {
			powerSum += power
			powerCount++
			powerCopy := power
			sample.PowerW = &powerCopy
		} else if watts, ok := positiveSample(firstNum(pt, "watts")); ok {
			powerSum += watts
			powerCount++
			wattsCopy := watts
			sample.PowerW = &wattsCopy
		}

		points = append(points, sample)
	}

	var durationSec *int
	if startTime != "" && endTime != "" && startTime != endTime {
		st, okS := tricoach.ParseISO(startTime)
		et, okE := tricoach.ParseISO(endTime)
		if okS && okE {
			durationSec = positiveRoundedInt(et.Sub(st).Seconds())
		}
	}

	var distanceMeters *int
	if distanceSegments > 0 {
		distanceMeters = positiveRoundedInt(distanceSum)
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

	avgSpeed := deriveSpeedKmh(speedSum, speedCount, distanceMeters, durationSec)

	sportText, ok := firstText(doc, "type")
	if !ok {
		sportText, _ = firstText(doc, "sport")
	}
	sport := mapSport(sportText)

	draft := &ImportDraft{
		ID:        newDraftID(SourceGPX),
		Source:    SourceGPX,
		FileName:  meta.name("unknown.gpx"),
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
		AvgHr:          roundedAverage(hrSum, hrCount),
		AvgPower:       roundedAverage(powerSum, powerCount),
		AvgSpeed:       avgSpeed,
		Sport:          sport,
		Debug: &ImportDebug{
			SpeedFoundAt: SpeedSourceUnknown,
			WattsFoundAt: PowerSourceUnknown,
			Samples: DebugSamples{
				HrAvgBpm:       roundedAverage(hrSum, hrCount),
				SpeedAvgKmh:    directSpeedKmh(speedSum, speedCount),
				WattsAvgW:      roundedAverage(powerSum, powerCount),
				AltitudeAvgM:   altitudeAvgM,
				DistanceTotalM: roundedTotal(distanceSum, distanceCount),
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

// deriveSpeedKmh prefers the direct sample average; with zero speed samples
// it falls back to distance/duration before declaring speed unknown.
func deriveSpeedKmh(speedSumMps float64, speedCount int, distanceMeters, durationSec *int) *float64 {
	if speedCount > 0 {
		kmh := tricoach.MpsToKmh(speedSumMps / float64(speedCount))
		return &kmh
	}
	if distanceMeters != nil && durationSec != nil && *durationSec > 0 {
		kmh := tricoach.MpsToKmh(float64(*distanceMeters) / float64(*durationSec))
		return &kmh
	}
	return nil
}

func directSpeedKmh(speedSumMps float64, speedCount int) *float64 {
	if speedCount == 0 {
		return nil
	}
	kmh := tricoach.MpsToKmh(speedSumMps / float64(speedCount))
	return &kmh
}

func roundedAverage(sum float64, count int) *int {
	if count == 0 {
		return nil
	}
	v := int(math.Round(sum / float64(count)))
	return &v
}

func roundedTotal(total float64, count int) *int {
	if count == 0 {
		return nil
	}
	v := int(math.Round(total))
	return &v
}

// positiveRoundedInt rounds to the nearest integer and returns nil unless
// the result is strictly positive.
func positiveRoundedInt(v float64) *int {
	rounded := int(math.Round(v))
	if rounded <= 0 {
		return nil
	}
	return &rounded
}

func strPtrOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

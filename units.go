package tricoach

import (
	"fmt"
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two
// latitude/longitude pairs in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	rLat1 := toRad(lat1)
	rLat2 := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// MpsToKmh converts meters-per-second to kilometers-per-hour.
func MpsToKmh(v float64) float64 {
	return v * 3.6
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISO parses a timestamp in any of the accepted ISO-8601 shapes.
// The boolean is false when the value cannot be parsed.
func ParseISO(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeISO round-trips a timestamp string through parsing and returns the
// canonical RFC3339 UTC form. Unparsable input yields the empty string.
func NormalizeISO(value string) string {
	t, ok := ParseISO(value)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatDuration renders seconds as H:MM:SS. Nil or non-positive values
// render as "--".
func FormatDuration(sec *int) string {
	if sec == nil || *sec <= 0 {
		return "--"
	}
	total := *sec
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatDistance renders meters as "x.x km" above one kilometer, else "N m".
func FormatDistance(meters *int) string {
	if meters == nil {
		return "--"
	}
	if *meters >= 1000 {
		return fmt.Sprintf("%.1f km", float64(*meters)/1000.0)
	}
	return fmt.Sprintf("%d m", *meters)
}

// FormatElev renders elevation gain in meters.
func FormatElev(meters *int) string {
	if meters == nil {
		return "--"
	}
	return fmt.Sprintf("%d m", *meters)
}

// FormatDateLabel renders a human date label relative to now:
// "Today, 3:04 PM", "Yesterday, 3:04 PM", or "Jan 2, 3:04 PM".
func FormatDateLabel(iso string, now time.Time) string {
	t, ok := ParseISO(iso)
	if !ok {
		return "Unknown time"
	}
	local := t.In(now.Location())
	clock := local.Format("3:04 PM")

	y, m, d := local.Date()
	ny, nm, nd := now.Date()
	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	switch {
	case y == ny && m == nm && d == nd:
		return "Today, " + clock
	case y == yy && m == ym && d == yd:
		return "Yesterday, " + clock
	default:
		return local.Format("Jan 2") + ", " + clock
	}
}

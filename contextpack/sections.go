package contextpack

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tricoach"
)

const (
	noData     = "(no data)"
	trimMarker = "...(trimmed)"
)

func buildAlwaysBody(profile *tricoach.ProfileData, loadError bool) string {
	lines := []string{"Profile:"}
	switch {
	case loadError:
		lines = append(lines, "(error: loadProfile failed)")
	case profile == nil:
		lines = append(lines, noData)
	default:
		lines = append(lines,
			"age: "+intField(profile.Age),
			"heightCm: "+floatField(profile.HeightCm),
			"weightKg: "+floatField(profile.WeightKg),
			"ftpW: "+floatField(profile.FTPW),
			"vo2max: "+floatField(profile.VO2Max),
		)
		focus := strings.TrimSpace(strings.Join(profile.TrainingFocus, ", "))
		if focus == "" {
			focus = noData
		}
		lines = append(lines,
			"trainingFocus: "+focus,
			"trackSessionRpe: "+strconv.FormatBool(profile.TrackSessionRPE),
		)
	}
	lines = append(lines,
		"",
		"Rules:",
		"- Source of truth is DB.",
		"- Missing values are null.",
	)
	return strings.Join(lines, "\n")
}

func buildDoctrineBody(doctrine *tricoach.DoctrineData, loadError bool) string {
	if loadError {
		return "(error: loadDoctrine failed)"
	}
	if doctrine == nil {
		return noData
	}
	items := []struct{ label, value string }{
		{"Short-term goal", strings.TrimSpace(doctrine.ShortTermGoal)},
		{"Season goal", strings.TrimSpace(doctrine.SeasonGoal)},
		{"Constraints", strings.TrimSpace(doctrine.Constraints)},
		{"Doctrine / Principles", strings.TrimSpace(doctrine.Doctrine)},
	}
	var lines []string
	for _, item := range items {
		if item.value == "" {
			continue
		}
		lines = append(lines, item.label+": "+item.value)
	}
	if len(lines) == 0 {
		return noData
	}
	return strings.Join(lines, "\n")
}

// buildHistoryBody groups activities by training day, newest day first, and
// emits each activity as one budget-trimmed JSON line under its day header.
func buildHistoryBody(activities []tricoach.Activity, days int, loadError bool, trimLine func(string) string) string {
	if loadError {
		return "(error: loadActivities failed)"
	}
	if len(activities) == 0 {
		return noData
	}
	groups := groupActivitiesByDay(activities)
	if len(groups) > days {
		groups = groups[:days]
	}
	if len(groups) == 0 {
		return noData
	}
	var lines []string
	for i, group := range groups {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, group.dayKey)
		for _, activity := range group.items {
			lines = append(lines, trimLine(activityLine(activity)))
		}
	}
	return strings.Join(lines, "\n")
}

func buildRecentChatBody(turns int, recap []string, trimLine func(string) string) string {
	if turns <= 0 {
		turns = len(recap)
	}
	if turns <= 0 {
		return noData
	}
	lines := make([]string, 0, turns)
	for i := 0; i < turns; i++ {
		entry := noData
		if i < len(recap) && strings.TrimSpace(recap[i]) != "" {
			entry = recap[i]
		}
		lines = append(lines, trimLine(fmt.Sprintf("- turn %d: %s", i+1, entry)))
	}
	return strings.Join(lines, "\n")
}

type dayGroup struct {
	dayKey   string
	latestMs int64
	hasTime  bool
	items    []tricoach.Activity
}

// groupActivitiesByDay buckets activities by UTC calendar day, taking the
// first parseable timestamp of startTime, createdAt, updatedAt. Days are
// ordered newest first; activities with no usable timestamp land in an
// "unknown" bucket sorted last.
func groupActivitiesByDay(activities []tricoach.Activity) []dayGroup {
	index := map[string]int{}
	var groups []dayGroup
	for _, activity := range activities {
		var (
			ms      int64
			hasTime bool
			dayKey  = "unknown"
		)
		for _, raw := range []string{activity.StartTime, activity.CreatedAt, activity.UpdatedAt} {
			if t, ok := tricoach.ParseISO(raw); ok {
				ms = t.UnixMilli()
				hasTime = true
				dayKey = t.UTC().Format("2006-01-02")
				break
			}
		}
		i, ok := index[dayKey]
		if !ok {
			index[dayKey] = len(groups)
			groups = append(groups, dayGroup{dayKey: dayKey, latestMs: ms, hasTime: hasTime})
			i = len(groups) - 1
		}
		g := &groups[i]
		g.items = append(g.items, activity)
		if hasTime && (!g.hasTime || ms > g.latestMs) {
			g.latestMs = ms
			g.hasTime = true
		}
	}
	sort.SliceStable(groups, func(a, b int) bool {
		ga, gb := groups[a], groups[b]
		if ga.hasTime != gb.hasTime {
			return ga.hasTime
		}
		return ga.latestMs > gb.latestMs
	})
	return groups
}

func activityLine(activity tricoach.Activity) string {
	data, err := json.Marshal(activity)
	if err != nil {
		return "(error: stringify failed)"
	}
	return string(data)
}

func trimMessage(value string, limit int) (string, bool) {
	if limit <= 0 || len(value) <= limit {
		return value, false
	}
	return value[:limit] + trimMarker, true
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

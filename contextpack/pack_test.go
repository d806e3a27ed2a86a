package contextpack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tricoach"
)

type fakeSource struct {
	profile    *tricoach.ProfileData
	doctrine   *tricoach.DoctrineData
	activities []tricoach.Activity

	profileErr  error
	doctrineErr error
	historyErr  error
}

func (f *fakeSource) LoadProfile(ctx context.Context) (*tricoach.ProfileData, error) {
	return f.profile, f.profileErr
}

func (f *fakeSource) LoadDoctrine(ctx context.Context) (*tricoach.DoctrineData, error) {
	return f.doctrine, f.doctrineErr
}

func (f *fakeSource) LoadActivities(ctx context.Context) ([]tricoach.Activity, error) {
	return f.activities, f.historyErr
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func testActivity(id, startTime string) tricoach.Activity {
	return tricoach.Activity{
		ID:        id,
		Source:    tricoach.SourceGPX,
		Title:     "ride",
		StartTime: startTime,
		CreatedAt: startTime,
		UpdatedAt: startTime,
	}
}

func TestBuildEmptyStoreStillCarriesAlwaysAndDoctrine(t *testing.T) {
	b := NewBuilder(&fakeSource{})
	res := b.Build(context.Background(), Options{IncludeHistory: true, HistoryRange: History7d})

	if len(res.Errors) != 0 {
		t.Fatalf("errors: %v", res.Errors)
	}
	if !strings.Contains(res.Text, "[ALWAYS]\nProfile:\n(no data)") {
		t.Fatalf("always section missing no-data marker:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "[DOCTRINE]\n(included in ALWAYS)") {
		t.Fatalf("doctrine section must always render:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "[HISTORY: 7d]\n(no data)") {
		t.Fatalf("history section missing:\n%s", res.Text)
	}
	if !res.Meta.Sections.Doctrine || !res.Meta.Sections.History {
		t.Fatalf("meta sections: %+v", res.Meta.Sections)
	}
	if res.Meta.Sections.RestMenu || res.Meta.Sections.RecentChat {
		t.Fatalf("disabled sections must stay off: %+v", res.Meta.Sections)
	}
	if res.Meta.Chars != len(res.Text) {
		t.Fatalf("meta chars: got %d, want %d", res.Meta.Chars, len(res.Text))
	}
	if res.Meta.Trimmed {
		t.Fatalf("small pack must not be trimmed")
	}
}

func TestBuildProfileAndDoctrineLines(t *testing.T) {
	src := &fakeSource{
		profile: &tricoach.ProfileData{
			Age:             intPtr(41),
			FTPW:            floatPtr(255),
			TrainingFocus:   []string{"continuity"},
			TrackSessionRPE: true,
		},
		doctrine: &tricoach.DoctrineData{
			ShortTermGoal: "hold 3 sessions/week",
			Doctrine:      "consistency over heroics",
		},
	}
	res := NewBuilder(src).Build(context.Background(), Options{})

	for _, want := range []string{
		"age: 41",
		"heightCm: ",
		"ftpW: 255",
		"trainingFocus: continuity",
		"trackSessionRpe: true",
		"Rules:",
		"- Source of truth is DB.",
		"- Missing values are null.",
		"Short-term goal: hold 3 sessions/week",
		"Doctrine / Principles: consistency over heroics",
	} {
		if !strings.Contains(res.Text, want) {
			t.Fatalf("pack missing %q:\n%s", want, res.Text)
		}
	}
	// Empty doctrine fields are omitted entirely.
	if strings.Contains(res.Text, "Season goal:") || strings.Contains(res.Text, "Constraints:") {
		t.Fatalf("empty doctrine fields must be omitted:\n%s", res.Text)
	}
}

func TestBuildSourceFailuresDegradeToMarkers(t *testing.T) {
	src := &fakeSource{
		profileErr:  errors.New("db locked"),
		doctrineErr: errors.New("db locked"),
		historyErr:  errors.New("db locked"),
	}
	res := NewBuilder(src).Build(context.Background(), Options{IncludeHistory: true, HistoryRange: History7d})

	if len(res.Errors) != 3 {
		t.Fatalf("errors: got %d, want 3: %v", len(res.Errors), res.Errors)
	}
	for _, marker := range []string{
		"(error: loadProfile failed)",
		"(error: loadDoctrine failed)",
		"(error: loadActivities failed)",
	} {
		if !strings.Contains(res.Text, marker) {
			t.Fatalf("pack missing marker %q:\n%s", marker, res.Text)
		}
	}
}

func TestBuildHistoryGroupsByDayNewestFirst(t *testing.T) {
	src := &fakeSource{activities: []tricoach.Activity{
		testActivity("a", "2026-03-01T06:30:00Z"),
		testActivity("b", "2026-03-03T06:30:00Z"),
		testActivity("c", "2026-03-03T18:00:00Z"),
		testActivity("d", ""),
	}}
	res := NewBuilder(src).Build(context.Background(), Options{IncludeHistory: true, HistoryRange: History14d})

	first := strings.Index(res.Text, "2026-03-03")
	second := strings.Index(res.Text, "2026-03-01")
	unknown := strings.Index(res.Text, "unknown")
	if first == -1 || second == -1 || unknown == -1 {
		t.Fatalf("missing day headers:\n%s", res.Text)
	}
	if !(first < second && second < unknown) {
		t.Fatalf("day order wrong: %d %d %d\n%s", first, second, unknown, res.Text)
	}
	if strings.Count(res.Text, `"id":"c"`) != 1 {
		t.Fatalf("activity JSON line missing:\n%s", res.Text)
	}
}

func TestBuildHistoryRangeLimitsDays(t *testing.T) {
	var activities []tricoach.Activity
	days := []string{
		"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05",
		"2026-03-06", "2026-03-07", "2026-03-08", "2026-03-09",
	}
	for i, day := range days {
		activities = append(activities, testActivity(string(rune('a'+i)), day+"T06:30:00Z"))
	}
	src := &fakeSource{activities: activities}
	res := NewBuilder(src).Build(context.Background(), Options{IncludeHistory: true, HistoryRange: History7d})

	// Seven newest days survive; the two oldest fall out.
	if strings.Contains(res.Text, "2026-03-01") || strings.Contains(res.Text, "2026-03-02") {
		t.Fatalf("oldest days must be dropped:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "2026-03-03") || !strings.Contains(res.Text, "2026-03-09") {
		t.Fatalf("recent days missing:\n%s", res.Text)
	}
}

func TestBuildPerLineTrim(t *testing.T) {
	activity := testActivity("long", "2026-03-01T06:30:00Z")
	long := strings.Repeat("x", 700)
	activity.Notes = &long
	src := &fakeSource{activities: []tricoach.Activity{activity}}

	b := NewBuilder(src)
	res := b.Build(context.Background(), Options{IncludeHistory: true, HistoryRange: History7d})

	if !res.Meta.Trimmed {
		t.Fatalf("long line must set trimmed")
	}
	if !strings.Contains(res.Text, "...(trimmed)") {
		t.Fatalf("trim marker missing:\n%s", res.Text)
	}
	for _, line := range strings.Split(res.Debug.HistoryText, "\n") {
		if len(line) > 600+len("...(trimmed)") {
			t.Fatalf("history line exceeds per-message budget: %d chars", len(line))
		}
	}
}

func TestBuildTotalBudgetDropsSectionsInOrder(t *testing.T) {
	var activities []tricoach.Activity
	for i := 0; i < 40; i++ {
		act := testActivity("act", "2026-03-01T06:30:00Z")
		notes := strings.Repeat("z", 400)
		act.Notes = &notes
		activities = append(activities, act)
	}
	src := &fakeSource{activities: activities}

	b := NewBuilder(src)
	b.Budget = Budget{MaxMessageChars: 600, MaxTotalChars: 1500}
	res := b.Build(context.Background(), Options{
		IncludeHistory:    true,
		HistoryRange:      History7d,
		IncludeRestMenu:   true,
		IncludeRecentChat: true,
		RecentTurns:       2,
	})

	if !res.Meta.Trimmed {
		t.Fatalf("oversized pack must report trimmed")
	}
	// recentChat and restmenu go before history; ALWAYS and DOCTRINE stay.
	if res.Meta.Sections.RecentChat || res.Meta.Sections.RestMenu || res.Meta.Sections.History {
		t.Fatalf("sections not dropped in order: %+v", res.Meta.Sections)
	}
	if !res.Meta.Sections.Doctrine {
		t.Fatalf("doctrine flag must survive")
	}
	if !strings.Contains(res.Text, "[ALWAYS]") {
		t.Fatalf("always section must survive:\n%s", res.Text)
	}
	if len(res.Text) > 1500+len("...(trimmed)") {
		t.Fatalf("text exceeds budget: %d chars", len(res.Text))
	}
}

func TestBuildDropStopsOnceUnderBudget(t *testing.T) {
	src := &fakeSource{activities: []tricoach.Activity{
		testActivity("a", "2026-03-01T06:30:00Z"),
	}}

	b := NewBuilder(src)
	b.Budget = Budget{MaxMessageChars: 600, MaxTotalChars: 900}
	res := b.Build(context.Background(), Options{
		IncludeHistory:    true,
		HistoryRange:      History7d,
		IncludeRestMenu:   true,
		IncludeRecentChat: true,
		RecentTurns:       3,
		RecentChat: []string{
			strings.Repeat("a", 500),
			strings.Repeat("b", 500),
			strings.Repeat("c", 500),
		},
	})

	// Dropping recent chat alone brings the pack under budget; the later
	// sections in the removal order must survive untouched.
	if res.Meta.Sections.RecentChat {
		t.Fatalf("recentChat must be dropped first: %+v", res.Meta.Sections)
	}
	if !res.Meta.Sections.RestMenu || !res.Meta.Sections.History {
		t.Fatalf("restmenu/history dropped too eagerly: %+v", res.Meta.Sections)
	}
	if !res.Meta.Trimmed {
		t.Fatalf("a dropped section must report trimmed")
	}
	if len(res.Text) > 900 {
		t.Fatalf("text still over budget: %d chars", len(res.Text))
	}
}

func TestBuildRecentChatOverride(t *testing.T) {
	res := NewBuilder(&fakeSource{}).Build(context.Background(), Options{
		IncludeRecentChat: true,
		RecentTurns:       2,
		RecentChat:        []string{"user: how was my week?"},
	})
	if !strings.Contains(res.Text, "- turn 1: user: how was my week?") {
		t.Fatalf("override turn missing:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "- turn 2: (no data)") {
		t.Fatalf("placeholder turn missing:\n%s", res.Text)
	}
}

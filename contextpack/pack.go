// Package contextpack assembles the context text sent alongside every
// coaching request: athlete profile, doctrine, recent training history and
// chat recap, flattened into labeled sections under a hard character budget.
package contextpack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tricoach"
)

// HistoryRange selects how many distinct training days the history section
// may cover.
type HistoryRange string

const (
	History7d  HistoryRange = "7d"
	History14d HistoryRange = "14d"
)

// Days returns the day count for the range. Anything unrecognized falls
// back to seven days.
func (r HistoryRange) Days() int {
	if r == History14d {
		return 14
	}
	return 7
}

// Options selects which sections the pack carries.
type Options struct {
	IncludeHistory    bool
	HistoryRange      HistoryRange
	IncludeRestMenu   bool
	IncludeRecentChat bool
	// RecentTurns is how many recap lines the recent-chat section holds.
	RecentTurns int
	// RecentChat overrides the recap lines; when empty, placeholder turns
	// are emitted.
	RecentChat []string
}

// Budget bounds the assembled pack. MaxMessageChars caps a single history or
// chat line; MaxTotalChars caps the whole text.
type Budget struct {
	MaxMessageChars int
	MaxTotalChars   int
}

// DefaultBudget is the production budget: 600 chars per message line,
// 6000 chars total.
func DefaultBudget() Budget {
	return Budget{MaxMessageChars: 600, MaxTotalChars: 6000}
}

// SectionFlags reports which sections survived assembly.
type SectionFlags struct {
	Doctrine   bool `json:"doctrine"`
	History    bool `json:"history"`
	RestMenu   bool `json:"restmenu"`
	RecentChat bool `json:"recentChat"`
}

// Meta describes the assembled pack.
type Meta struct {
	Chars    int          `json:"chars"`
	Sections SectionFlags `json:"sections"`
	Trimmed  bool         `json:"trimmed"`
}

// Debug exposes each section body before budget enforcement.
type Debug struct {
	DoctrineText   string `json:"doctrineText"`
	HistoryText    string `json:"historyText"`
	RestText       string `json:"restText"`
	RecentChatText string `json:"recentChatText"`
}

// Result is the assembled pack. Errors holds per-source load failures; a
// failed source degrades its section to an error marker instead of failing
// the build.
type Result struct {
	Text   string
	Meta   Meta
	Debug  Debug
	Errors []error
}

// DataSource loads the three inputs a pack is built from. A nil profile or
// doctrine means the athlete has not filled it in yet.
type DataSource interface {
	LoadProfile(ctx context.Context) (*tricoach.ProfileData, error)
	LoadDoctrine(ctx context.Context) (*tricoach.DoctrineData, error)
	LoadActivities(ctx context.Context) ([]tricoach.Activity, error)
}

// Builder assembles context packs from one data source.
type Builder struct {
	Source DataSource
	Budget Budget
}

func NewBuilder(src DataSource) *Builder {
	return &Builder{Source: src, Budget: DefaultBudget()}
}

type section struct {
	title   string
	body    string
	enabled bool
}

// Build assembles a pack. It never fails: each source is fetched
// independently and a load error surfaces as an "(error: ...)" marker in the
// affected section plus an entry in Result.Errors.
func (b *Builder) Build(ctx context.Context, opts Options) *Result {
	var (
		profile     *tricoach.ProfileData
		doctrine    *tricoach.DoctrineData
		activities  []tricoach.Activity
		profileErr  error
		doctrineErr error
		historyErr  error
	)

	// Each fetch is isolated: one failing source must not cancel the
	// others, so this is a plain fan-out rather than fail-fast.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		profile, profileErr = b.Source.LoadProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		doctrine, doctrineErr = b.Source.LoadDoctrine(ctx)
	}()
	go func() {
		defer wg.Done()
		activities, historyErr = b.Source.LoadActivities(ctx)
	}()
	wg.Wait()

	var errs []error
	if profileErr != nil {
		errs = append(errs, fmt.Errorf("loadProfile: %w", profileErr))
	}
	if doctrineErr != nil {
		errs = append(errs, fmt.Errorf("loadDoctrine: %w", doctrineErr))
	}
	if historyErr != nil {
		errs = append(errs, fmt.Errorf("loadActivities: %w", historyErr))
	}

	trimmed := false
	trimLine := func(v string) string {
		next, didTrim := trimMessage(v, b.Budget.MaxMessageChars)
		if didTrim {
			trimmed = true
		}
		return next
	}

	doctrineBody := buildDoctrineBody(doctrine, doctrineErr != nil)
	alwaysBody := buildAlwaysBody(profile, profileErr != nil) + "\n\n" + doctrineBody

	historyBody := noData
	if opts.IncludeHistory {
		historyBody = buildHistoryBody(activities, opts.HistoryRange.Days(), historyErr != nil, trimLine)
	}
	restMenuBody := noData
	recentChatBody := noData
	if opts.IncludeRecentChat {
		recentChatBody = buildRecentChatBody(opts.RecentTurns, opts.RecentChat, trimLine)
	}

	sections := []*section{
		{title: "ALWAYS", body: alwaysBody, enabled: true},
		{title: "DOCTRINE", body: "(included in ALWAYS)", enabled: true},
		{title: "HISTORY: " + string(opts.HistoryRange), body: historyBody, enabled: opts.IncludeHistory},
		{title: "RESTMENU", body: restMenuBody, enabled: opts.IncludeRestMenu},
		{title: "RECENT CHAT", body: recentChatBody, enabled: opts.IncludeRecentChat},
	}
	history, restmenu, recentChat := sections[2], sections[3], sections[4]

	text := assembleSections(sections)
	if len(text) > b.Budget.MaxTotalChars {
		trimmed = true
		// Lowest-value sections go first; ALWAYS and DOCTRINE are never
		// dropped.
		for _, sec := range []*section{recentChat, restmenu, history} {
			if !sec.enabled {
				continue
			}
			sec.enabled = false
			text = assembleSections(sections)
			if len(text) <= b.Budget.MaxTotalChars {
				break
			}
		}
		if len(text) > b.Budget.MaxTotalChars {
			text = text[:b.Budget.MaxTotalChars] + trimMarker
		}
	}

	return &Result{
		Text: text,
		Meta: Meta{
			Chars: len(text),
			Sections: SectionFlags{
				Doctrine:   true,
				History:    history.enabled,
				RestMenu:   restmenu.enabled,
				RecentChat: recentChat.enabled,
			},
			Trimmed: trimmed,
		},
		Debug: Debug{
			DoctrineText:   doctrineBody,
			HistoryText:    historyBody,
			RestText:       restMenuBody,
			RecentChatText: recentChatBody,
		},
		Errors: errs,
	}
}

func assembleSections(sections []*section) string {
	var parts []string
	for _, sec := range sections {
		if !sec.enabled {
			continue
		}
		body := sec.body
		if body == "" {
			body = noData
		}
		parts = append(parts, "["+sec.title+"]\n"+body)
	}
	return strings.Join(parts, "\n\n")
}

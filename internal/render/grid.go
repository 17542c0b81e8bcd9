// Package render lays out a month of calendar events as a grid of day
// cells and turns that grid into HTML.
package render

import (
	"fmt"
	"time"

	"studycal/internal/dateutil"
	"studycal/internal/model"
	"studycal/internal/schedule"
)

const (
	DefaultMaxPerDay  = 3
	DefaultTitleLimit = 20
)

// Weekdays is the Monday-first header row.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Options controls layout. Zero values fall back to the defaults.
type Options struct {
	MaxPerDay  int
	TitleLimit int
	// Location is the viewer's zone; placement and labels use it.
	Location *time.Location
}

func (o Options) normalized() Options {
	if o.MaxPerDay <= 0 {
		o.MaxPerDay = DefaultMaxPerDay
	}
	if o.TitleLimit <= 0 {
		o.TitleLimit = DefaultTitleLimit
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Grid is one rendered month.
type Grid struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	Label    string   `json:"label"`
	Weekdays []string `json:"weekdays"`
	Cells    []Cell   `json:"cells"`
}

// Cell is a grid slot. Filler cells pad the first week and carry no date.
type Cell struct {
	Filler  bool    `json:"filler,omitempty"`
	Day     int     `json:"day,omitempty"`
	Date    string  `json:"date,omitempty"`
	Today   bool    `json:"today,omitempty"`
	Entries []Entry `json:"entries,omitempty"`
	// More counts entries hidden behind the "+N" affordance.
	More int `json:"more,omitempty"`
}

// Entry is a single event line inside a cell or the day panel.
type Entry struct {
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	Label    string `json:"label"`
	TimeText string `json:"time_text,omitempty"`
	Category string `json:"category"`
	Style    string `json:"style"`
	Editable bool   `json:"editable"`
}

// Render lays out the month containing month. The grid has exactly
// FirstWeekdayOffset filler cells followed by one cell per day, with no
// trailing filler. Calling it twice with the same input yields the same grid.
func Render(month time.Time, events []model.CalendarEvent, now time.Time, opts Options) Grid {
	opts = opts.normalized()
	first := dateutil.MonthStart(month, opts.Location)
	offset := dateutil.FirstWeekdayOffset(first)
	days := dateutil.DaysInMonth(first.Year(), first.Month())
	today := dateutil.FormatDate(now.In(opts.Location))
	byDay := schedule.GroupByDay(events, opts.Location)

	g := Grid{
		Year:     first.Year(),
		Month:    int(first.Month()),
		Label:    fmt.Sprintf("%s %d", first.Month(), first.Year()),
		Weekdays: Weekdays,
		Cells:    make([]Cell, 0, offset+days),
	}

	for i := 0; i < offset; i++ {
		g.Cells = append(g.Cells, Cell{Filler: true})
	}

	for day := 1; day <= days; day++ {
		date := dateutil.FormatDate(time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, opts.Location))
		dayEvents := byDay[date]

		cell := Cell{
			Day:   day,
			Date:  date,
			Today: date == today,
		}
		shown := dayEvents
		if len(shown) > opts.MaxPerDay {
			shown = shown[:opts.MaxPerDay]
			cell.More = len(dayEvents) - opts.MaxPerDay
		}
		for _, ev := range shown {
			cell.Entries = append(cell.Entries, entryFor(ev, opts))
		}
		g.Cells = append(g.Cells, cell)
	}

	return g
}

// DayEntries returns every entry of date, uncapped, for the overflow panel.
func DayEntries(date string, events []model.CalendarEvent, opts Options) []Entry {
	opts = opts.normalized()
	dayEvents := schedule.GroupByDay(events, opts.Location)[date]
	out := make([]Entry, 0, len(dayEvents))
	for _, ev := range dayEvents {
		out = append(out, entryFor(ev, opts))
	}
	return out
}

// EntryFor builds the line shown for ev in a cell, the day panel or the
// detail modal.
func EntryFor(ev model.CalendarEvent, opts Options) Entry {
	return entryFor(ev, opts.normalized())
}

func entryFor(ev model.CalendarEvent, opts Options) Entry {
	timeText := TimeText(ev, opts.Location)
	label := Elide(ev.Title, opts.TitleLimit)
	if timeText != "" {
		label += " " + timeText
	}
	return Entry{
		EventID:  ev.Key(),
		Title:    ev.Title,
		Label:    label,
		TimeText: timeText,
		Category: string(ev.Category),
		Style:    ev.Category.Style(),
		Editable: ev.Editable,
	}
}

// TimeText formats "HH:MM" or "HH:MM–HH:MM" in loc; all-day events have none.
func TimeText(ev model.CalendarEvent, loc *time.Location) string {
	if ev.AllDay {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	s := dateutil.FormatClock(ev.Start.In(loc))
	if ev.HasEnd() {
		s += "–" + dateutil.FormatClock(ev.End.In(loc))
	}
	return s
}

// Elide shortens s to limit runes, marking the cut with "…".
func Elide(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(r[:limit-1]) + "…"
}

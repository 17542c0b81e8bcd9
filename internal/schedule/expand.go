package schedule

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const defaultMaxOccurrences = 5000

// ExpandOptions bounds recurrence expansion.
type ExpandOptions struct {
	// From / To form the inclusive window occurrences must start in.
	From time.Time
	To   time.Time

	// Location is the viewer's zone. Rules repeat at the same wall-clock
	// time there, across DST changes. Nil means the template's own zone.
	Location *time.Location

	// MaxOccurrencesPerEvent caps runaway rules. Zero means 5000.
	MaxOccurrencesPerEvent int
}

// Expand replaces every event carrying a recurrence rule with its concrete
// occurrences inside the window. Events without a rule pass through
// untouched, whether or not they fall inside the window.
//
// Occurrences keep the template's ID so edits and deletes address the whole
// series; InstanceKey tells them apart for rendering.
func Expand(events []model.CalendarEvent, opts ExpandOptions) ([]model.CalendarEvent, error) {
	if opts.To.Before(opts.From) {
		return nil, errors.New("expand: window end is before start")
	}
	if opts.MaxOccurrencesPerEvent <= 0 {
		opts.MaxOccurrencesPerEvent = defaultMaxOccurrences
	}

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Recurrence == "" {
			out = append(out, ev)
			continue
		}
		occ, err := expandOne(ev, opts)
		if err != nil {
			// A broken rule still shows the template once.
			appLog.Error("expand: bad recurrence rule", err, "id", ev.ID, "rrule", ev.Recurrence)
			ev.Recurrence = ""
			out = append(out, ev)
			continue
		}
		out = append(out, occ...)
	}
	return out, nil
}

func expandOne(ev model.CalendarEvent, opts ExpandOptions) ([]model.CalendarEvent, error) {
	rule := strings.TrimPrefix(strings.TrimSpace(ev.Recurrence), "RRULE:")
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}
	loc := opts.Location
	if loc == nil {
		loc = ev.Start.Location()
	}
	r.DTStart(ev.Start.In(loc))

	times := r.Between(opts.From.In(loc), opts.To.In(loc), true)
	if len(times) > opts.MaxOccurrencesPerEvent {
		appLog.Warn("expand: truncated occurrences", "id", ev.ID, "cap", opts.MaxOccurrencesPerEvent)
		times = times[:opts.MaxOccurrencesPerEvent]
	}

	var dur time.Duration
	if ev.HasEnd() {
		dur = ev.End.Sub(ev.Start)
	}

	out := make([]model.CalendarEvent, 0, len(times))
	for _, start := range times {
		occ := ev
		occ.Start = start
		if ev.HasEnd() {
			occ.End = start.Add(dur)
		}
		occ.InstanceKey = start.UTC().Format(time.RFC3339)
		out = append(out, occ)
	}
	return out, nil
}
